package filing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/docs_backend/models"
	"bitbucket.org/mmdatafocus/docs_backend/utils"
)

type fakeStore struct {
	mu           sync.Mutex
	seq          int
	docs         []*models.DocumentRecord
	entities     map[string]*models.Entity
	activity     []*models.ActivityLog
	insertDocErr error
	upsertErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entities: map[string]*models.Entity{}}
}

func (s *fakeStore) InsertDocument(ctx context.Context, doc *models.DocumentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertDocErr != nil {
		return s.insertDocErr
	}
	s.seq++
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%d", s.seq)
	}
	s.docs = append(s.docs, doc)
	return nil
}

func (s *fakeStore) DocumentsByEntity(ctx context.Context, entityName string, limit int) ([]*models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.DocumentRecord
	for _, d := range s.docs {
		if d.EntityName == entityName {
			out = append(out, d)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) DocumentByID(ctx context.Context, id string) (*models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, utils.ErrorRecordNotFound
}

func (s *fakeStore) SearchDocuments(ctx context.Context, query string, filters models.SearchFilters) ([]*models.DocumentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	query = strings.ToLower(query)
	var out []*models.DocumentRecord
	for _, d := range s.docs {
		if filters.EntityName != "" && d.EntityName != filters.EntityName {
			continue
		}
		if filters.Category != "" && d.Category != filters.Category {
			continue
		}
		haystack := strings.ToLower(strings.Join([]string{d.FileName, d.OriginalFileName, d.Tags, d.Description, d.OCRText}, " "))
		if strings.Contains(haystack, query) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) UpsertEntity(ctx context.Context, entity *models.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.entities[entity.EntityName] = entity
	return nil
}

func (s *fakeStore) Entities(ctx context.Context) ([]*models.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Entity
	for _, e := range s.entities {
		out = append(out, e)
	}
	return out, nil
}

func (s *fakeStore) InsertActivity(ctx context.Context, activity *models.ActivityLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, activity)
	return nil
}

var _ MetadataStore = (*fakeStore)(nil)
