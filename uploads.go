package main

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/docs_backend/config"
	"bitbucket.org/mmdatafocus/docs_backend/filing"
	"bitbucket.org/mmdatafocus/docs_backend/utils"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
)

const maxUploadSizeBytes int64 = 50 * 1024 * 1024

var thumbnailMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

// makeThumbnail renders a 200px-wide JPEG preview. Failures are non-fatal;
// the document is filed without a preview.
func makeThumbnail(data []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return nil
	}
	return buf.Bytes()
}

func readUpload(header *multipart.FileHeader) ([]byte, string, error) {
	f, err := header.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadSizeBytes+1))
	if err != nil {
		return nil, "", err
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	return data, mimeType, nil
}

// uploadDocumentsHandler accepts a multipart batch under "documents" plus
// the classification fields, and files every document through the planner.
// The response carries one outcome per file; a metadata failure after the
// file landed in storage comes back flagged, not as an error status.
func uploadDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), "uploadDocuments")
		defer span.End()

		form, err := c.MultipartForm()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
			return
		}
		headers := form.File["documents"]
		if len(headers) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no documents in request"})
			return
		}

		month := 0
		if v := strings.TrimSpace(c.PostForm("month")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				month = n
			} else {
				c.JSON(http.StatusBadRequest, gin.H{"error": "month must be numeric"})
				return
			}
		}
		key := filing.ClassificationKey{
			EntityName:    c.PostForm("entityName"),
			Category:      c.PostForm("category"),
			FinancialYear: c.PostForm("financialYear"),
			Month:         month,
		}

		customFileName := strings.TrimSpace(c.PostForm("customFileName"))
		if customFileName != "" && len(headers) > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "customFileName is only allowed for a single file"})
			return
		}

		files := make([]filing.UploadFile, 0, len(headers))
		for _, header := range headers {
			if header.Size > maxUploadSizeBytes {
				c.JSON(http.StatusBadRequest, gin.H{"error": header.Filename + " exceeds the 50MB limit"})
				return
			}
			data, mimeType, err := readUpload(header)
			if err != nil {
				config.LogError(config.GetLogger(), "uploads.go", "uploadDocumentsHandler", "read multipart file", header.Filename, err)
				c.JSON(http.StatusBadRequest, gin.H{"error": "could not read " + header.Filename})
				return
			}

			fileName := header.Filename
			if customFileName != "" {
				// customFileName replaces the base name only; the extension
				// stays the original's.
				fileName = customFileName + filepath.Ext(header.Filename)
			}

			file := filing.UploadFile{
				FileName:     fileName,
				OriginalName: header.Filename,
				MimeType:     mimeType,
				Data:         data,
			}
			if thumbnailMimeTypes[mimeType] {
				file.Thumbnail = makeThumbnail(data)
			}
			files = append(files, file)
		}

		svc, err := buildService(c)
		if err != nil {
			abortWithError(c, err)
			return
		}

		outcomes, err := svc.UploadAndFile(ctx, key, files, filing.UploadExtras{
			Description: c.PostForm("description"),
			Tags:        utils.SplitAndTrim(c.PostForm("tags")),
			OCRText:     c.PostForm("ocrText"),
		})
		if err != nil {
			abortWithError(c, err)
			return
		}

		status := http.StatusOK
		for _, outcome := range outcomes {
			if outcome.Error != "" && !outcome.Degraded {
				status = http.StatusMultiStatus
				break
			}
		}
		c.JSON(status, gin.H{"files": outcomes})
	}
}
