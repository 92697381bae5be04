package models

import (
	"context"
	"errors"
	"strings"

	"bitbucket.org/mmdatafocus/docs_backend/config"
	"bitbucket.org/mmdatafocus/docs_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Store is the metadata-store collaborator handed to the filing core. It
// owns a connection pool; nothing in here caches rows across calls.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func (s *Store) InsertDocument(ctx context.Context, doc *DocumentRecord) error {
	return s.db.WithContext(ctx).Create(doc).Error
}

func (s *Store) DocumentsByEntity(ctx context.Context, entityName string, limit int) ([]*DocumentRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	var docs []*DocumentRecord
	err := s.db.WithContext(ctx).
		Where("entity_name = ?", entityName).
		Order("created_at DESC").
		Limit(limit).
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) DocumentByID(ctx context.Context, id string) (*DocumentRecord, error) {
	var doc DocumentRecord
	if err := s.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (s *Store) UpdateDocument(ctx context.Context, id string, patch map[string]interface{}) error {
	return s.db.WithContext(ctx).
		Model(&DocumentRecord{}).
		Where("id = ?", id).
		Updates(patch).Error
}

// escapeLike neutralizes LIKE wildcards in user input before it is wrapped
// in %...%.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// SearchFilters narrows a metadata search.
type SearchFilters struct {
	EntityName string
	Category   string
}

func (s *Store) SearchDocuments(ctx context.Context, query string, filters SearchFilters) ([]*DocumentRecord, error) {
	q := s.db.WithContext(ctx).Model(&DocumentRecord{})

	if filters.EntityName != "" {
		q = q.Where("entity_name = ?", filters.EntityName)
	}
	if filters.Category != "" {
		q = q.Where("category = ?", filters.Category)
	}

	query = strings.TrimSpace(query)
	if query != "" {
		like := "%" + escapeLike(query) + "%"
		or := s.db.Where("file_name LIKE ?", like).
			Or("original_file_name LIKE ?", like).
			Or("ocr_text LIKE ?", like).
			Or("tags LIKE ?", like).
			Or("description LIKE ?", like).
			Or("entity_name LIKE ?", like).
			Or("category LIKE ?", like)

		// A month name or a year fragment in the query also matches the
		// classification fields, so "march 2024" finds GST/2024-25/March
		// filings whose file names never mention either.
		if month := MonthFromQuery(query); month > 0 {
			or = or.Or("month = ?", month)
		}
		if yearPattern := YearFragmentFromQuery(query); yearPattern != "" {
			or = or.Or("financial_year LIKE ?", "%"+escapeLike(yearPattern)+"%")
		}
		q = q.Where(or)
	}

	var docs []*DocumentRecord
	err := q.Order("created_at DESC").Limit(config.SearchLimit).Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// UpsertEntity inserts the entity row or refreshes it when the name is
// already registered.
func (s *Store) UpsertEntity(ctx context.Context, entity *Entity) error {
	err := s.db.WithContext(ctx).Create(entity).Error
	if err == nil {
		return nil
	}
	if !isDuplicateKeyErr(err) {
		return err
	}
	return s.db.WithContext(ctx).
		Model(&Entity{}).
		Where("entity_name = ?", entity.EntityName).
		Updates(map[string]interface{}{
			"entity_type":      entity.EntityType,
			"remote_folder_id": entity.RemoteFolderID,
		}).Error
}

func (s *Store) Entities(ctx context.Context) ([]*Entity, error) {
	var entities []*Entity
	if err := s.db.WithContext(ctx).Order("entity_name").Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

func (s *Store) InsertActivity(ctx context.Context, activity *ActivityLog) error {
	return s.db.WithContext(ctx).Create(activity).Error
}

func (s *Store) RecentActivity(ctx context.Context, limit int) ([]*ActivityLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []*ActivityLog
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}
