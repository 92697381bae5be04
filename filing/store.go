package filing

import (
	"context"

	"bitbucket.org/mmdatafocus/docs_backend/models"
)

// MetadataStore is the document-database collaborator. *models.Store is
// the production implementation; tests substitute an in-memory fake.
type MetadataStore interface {
	InsertDocument(ctx context.Context, doc *models.DocumentRecord) error
	DocumentsByEntity(ctx context.Context, entityName string, limit int) ([]*models.DocumentRecord, error)
	DocumentByID(ctx context.Context, id string) (*models.DocumentRecord, error)
	SearchDocuments(ctx context.Context, query string, filters models.SearchFilters) ([]*models.DocumentRecord, error)
	UpsertEntity(ctx context.Context, entity *models.Entity) error
	Entities(ctx context.Context) ([]*models.Entity, error)
	InsertActivity(ctx context.Context, activity *models.ActivityLog) error
}

var _ MetadataStore = (*models.Store)(nil)
