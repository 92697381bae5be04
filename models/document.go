package models

import (
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/docs_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentRecord is the persisted metadata for one uploaded file. The
// classification fields are a denormalized copy of the key used to place
// it; FilePath is the "/"-joined segment sequence including the file name
// and must always agree with the remote placement.
type DocumentRecord struct {
	ID               string `gorm:"primaryKey;size:36" json:"id"`
	FileName         string `gorm:"size:512" json:"fileName"`
	OriginalFileName string `gorm:"size:512" json:"originalFileName"`
	FilePath         string `gorm:"size:2048" json:"filePath"`
	RemoteFileID     string `gorm:"size:128;index" json:"remoteFileId"`
	ThumbnailFileID  string `gorm:"size:128" json:"thumbnailFileId,omitempty"`

	EntityName    string `gorm:"size:255;index" json:"entityName"`
	Category      string `gorm:"size:64;index" json:"category"`
	FinancialYear string `gorm:"size:16" json:"financialYear"`
	Month         int    `json:"month"`

	MimeType    string `gorm:"size:128" json:"mimeType"`
	FileSize    int64  `json:"fileSize"`
	Description string `gorm:"size:1024" json:"description"`
	Tags        string `gorm:"size:1024" json:"-"`
	OCRText     string `gorm:"column:ocr_text;type:text" json:"ocrText,omitempty"`

	UploadedBy     string `gorm:"size:255" json:"uploadedBy"`
	UploadedByName string `gorm:"size:255" json:"uploadedByName"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (d *DocumentRecord) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// TagList splits the stored comma-separated tags.
func (d *DocumentRecord) TagList() []string {
	if strings.TrimSpace(d.Tags) == "" {
		return nil
	}
	return utils.SplitAndTrim(d.Tags)
}

// SetTags stores tags as a comma-separated list.
func (d *DocumentRecord) SetTags(tags []string) {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	d.Tags = strings.Join(cleaned, ",")
}
