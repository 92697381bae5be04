package filing

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/docs_backend/config"
	"bitbucket.org/mmdatafocus/docs_backend/models"
	"github.com/sirupsen/logrus"
)

// PlacedFile describes a leaf that already landed in the remote store.
type PlacedFile struct {
	RemoteFileID    string
	ThumbnailFileID string
	FileName        string
	OriginalName    string
	MimeType        string
	Size            int64
}

// UploadExtras is the optional caller-supplied metadata.
type UploadExtras struct {
	Description string
	Tags        []string
	OCRText     string
}

// Recorder persists one DocumentRecord per successfully placed file.
type Recorder struct {
	store  MetadataStore
	logger *logrus.Logger
}

func NewRecorder(store MetadataStore, logger *logrus.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

// Record builds and persists the metadata record. The file path is
// recomputed from the classification key rather than threaded through from
// the materializer, so it always equals the segment sequence that actually
// resolved, plus the final file name.
//
// When the insert fails the record is still returned together with a
// MetadataPersistFailure error: the file exists in storage, it is only
// invisible to search and listings until a reconciliation pass. Callers
// must surface that as a flagged partial success, not a hard failure.
func (r *Recorder) Record(ctx context.Context, placed PlacedFile, key ClassificationKey, uploadedBy, uploadedByName string, extras UploadExtras) (*models.DocumentRecord, error) {
	key = key.Normalize()

	doc := &models.DocumentRecord{
		FileName:         placed.FileName,
		OriginalFileName: placed.OriginalName,
		FilePath:         FilePath(key, placed.FileName),
		RemoteFileID:     placed.RemoteFileID,
		ThumbnailFileID:  placed.ThumbnailFileID,
		EntityName:       key.EntityName,
		Category:         key.Category,
		FinancialYear:    recordedFinancialYear(key),
		Month:            recordedMonth(key),
		MimeType:         placed.MimeType,
		FileSize:         placed.Size,
		Description:      extras.Description,
		OCRText:          extras.OCRText,
		UploadedBy:       uploadedBy,
		UploadedByName:   uploadedByName,
	}
	doc.SetTags(extras.Tags)

	if err := r.store.InsertDocument(ctx, doc); err != nil {
		if r.logger != nil {
			config.LogError(r.logger, "filing/record.go", "Record", "document placed but metadata insert failed", map[string]interface{}{
				"remoteFileId": placed.RemoteFileID,
				"filePath":     doc.FilePath,
			}, err)
		}
		return doc, &Error{
			Kind:   KindMetadataPersist,
			Detail: fmt.Sprintf("file %s stored remotely but its metadata was not persisted", placed.FileName),
			Err:    err,
		}
	}
	return doc, nil
}

// recordedFinancialYear mirrors the Plan gating: a year that never became
// a path segment is not denormalized onto the record either.
func recordedFinancialYear(key ClassificationKey) string {
	if key.Category == "" || key.Category == CategoryOthers {
		return ""
	}
	return key.FinancialYear
}

func recordedMonth(key ClassificationKey) int {
	if recordedFinancialYear(key) == "" || !monthlyFilingCategories[key.Category] {
		return 0
	}
	if _, ok := MonthName(key.Month); !ok {
		return 0
	}
	return key.Month
}
