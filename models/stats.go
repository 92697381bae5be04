package models

import (
	"context"
	"time"
)

// DocumentStats is the dashboard headline row.
type DocumentStats struct {
	TotalDocuments int64 `json:"totalDocuments"`
	TotalSize      int64 `json:"totalSize"`
	ActiveEntities int64 `json:"activeEntities"`
}

// CategoryStat is one per-category aggregate for an entity.
type CategoryStat struct {
	Category       string     `json:"category"`
	Count          int64      `json:"count"`
	TotalSize      int64      `json:"totalSize"`
	LatestDocument *time.Time `json:"latestDocument"`
}

// EntityStats aggregates one entity's documents by category.
type EntityStats struct {
	EntityName     string         `json:"entityName"`
	TotalDocuments int64          `json:"totalDocuments"`
	Categories     []CategoryStat `json:"categories"`
}

func (s *Store) GetDocumentStats(ctx context.Context) (*DocumentStats, error) {
	var stats DocumentStats

	sql := `
SELECT
    COUNT(*) AS total_documents,
    COALESCE(SUM(file_size), 0) AS total_size,
    COUNT(DISTINCT entity_name) AS active_entities
FROM document_records
`
	if err := s.db.WithContext(ctx).Raw(sql).Scan(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Store) GetEntityStats(ctx context.Context, entityName string) (*EntityStats, error) {
	sql := `
SELECT
    category,
    COUNT(*) AS count,
    COALESCE(SUM(file_size), 0) AS total_size,
    MAX(created_at) AS latest_document
FROM document_records
WHERE entity_name = ?
GROUP BY category
ORDER BY count DESC
`
	var categories []CategoryStat
	if err := s.db.WithContext(ctx).Raw(sql, entityName).Scan(&categories).Error; err != nil {
		return nil, err
	}

	var total int64
	if err := s.db.WithContext(ctx).
		Model(&DocumentRecord{}).
		Where("entity_name = ?", entityName).
		Count(&total).Error; err != nil {
		return nil, err
	}

	return &EntityStats{
		EntityName:     entityName,
		TotalDocuments: total,
		Categories:     categories,
	}, nil
}
