package models

import (
	"time"
)

// Entity is the registry row for a tenant namespace (a business or a
// person). The remote folder ID is informational: path resolution always
// re-queries the provider rather than trusting a stored ID (folders can be
// renamed or trashed out-of-band).
type Entity struct {
	ID             int       `gorm:"primaryKey" json:"id"`
	EntityName     string    `gorm:"size:255;uniqueIndex" json:"entityName"`
	EntityType     string    `gorm:"size:16" json:"entityType"`
	RemoteFolderID string    `gorm:"size:128" json:"remoteFolderId"`
	CreatedBy      string    `gorm:"size:255" json:"createdBy"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// ActivityLog is a best-effort audit row. Failures to write one never fail
// the operation being logged.
type ActivityLog struct {
	ID         int       `gorm:"primaryKey" json:"id"`
	Action     string    `gorm:"size:64;index" json:"action"`
	EntityName string    `gorm:"size:255;index" json:"entityName"`
	DocumentID string    `gorm:"size:36" json:"documentId"`
	FileName   string    `gorm:"size:512" json:"fileName"`
	Category   string    `gorm:"size:64" json:"category"`
	UserEmail  string    `gorm:"size:255" json:"userEmail"`
	UserName   string    `gorm:"size:255" json:"userName"`
	CreatedAt  time.Time `json:"createdAt"`
}
