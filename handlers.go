package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"bitbucket.org/mmdatafocus/docs_backend/config"
	"bitbucket.org/mmdatafocus/docs_backend/filing"
	"bitbucket.org/mmdatafocus/docs_backend/models"
	"bitbucket.org/mmdatafocus/docs_backend/models/reports"
	"bitbucket.org/mmdatafocus/docs_backend/storage"
	"bitbucket.org/mmdatafocus/docs_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// folderLocks is shared across all requests of this instance so that two
// concurrent requests resolving the same (parent, name) tuple serialize on
// the same mutex even though each request builds its own provider.
var folderLocks = filing.NewLockRegistry()

var validate = validator.New()

// buildProvider returns the storage backend for this request. Drive acts
// on the caller's delegated OAuth token; GCS uses the service credential.
func buildProvider(c *gin.Context) (storage.Provider, error) {
	ctx := c.Request.Context()
	root := os.Getenv("MAIN_DRIVE_FOLDER_ID")

	switch storage.GetStorageProvider() {
	case storage.StorageProviderGCS:
		return storage.NewGCSProvider(ctx, os.Getenv("GCS_ROOT_PREFIX"))
	default:
		token, ok := utils.GetDriveTokenFromContext(ctx)
		if !ok || token == "" {
			return nil, errors.New("session has no storage credential")
		}
		return storage.NewDriveProvider(ctx, token, root)
	}
}

func buildService(c *gin.Context) (*filing.Service, error) {
	provider, err := buildProvider(c)
	if err != nil {
		return nil, err
	}
	return filing.NewService(filing.Config{
		Provider: provider,
		Store:    models.NewStore(config.GetDB()),
		Locks:    folderLocks,
		Locker:   config.GetRedisLock(),
		Logger:   config.GetLogger(),
		Publish: func(ctx context.Context, msg config.ActivityMessage) {
			if _, err := config.PublishActivity(ctx, msg); err != nil {
				config.LogError(config.GetLogger(), "handlers.go", "buildService", "publish activity", msg.Action, err)
			}
		},
	}), nil
}

// httpStatus maps the filing error taxonomy onto response codes.
func httpStatus(err error) int {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return http.StatusNotFound
	}
	switch filing.KindOf(err) {
	case filing.KindInvalidClassification:
		return http.StatusBadRequest
	case filing.KindStorageUnavailable:
		return http.StatusBadGateway
	case filing.KindDuplicateFolder:
		return http.StatusConflict
	case filing.KindPermissionOperation:
		return http.StatusBadGateway
	case filing.KindMetadataPersist:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(httpStatus(err), gin.H{"error": err.Error()})
}

type sessionRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Name       string `json:"name" validate:"required"`
	DriveToken string `json:"driveToken" validate:"required"`
}

// createSessionHandler exchanges a verified identity plus a delegated
// Drive token for a session JWT. Identity verification (Google OAuth)
// happens upstream; this endpoint only mints the session.
func createSessionHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sessionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := validate.Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		token, err := utils.JwtGenerate(req.Email, req.Name, req.DriveToken)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

type createEntityRequest struct {
	EntityName string `json:"entityName" validate:"required,max=255"`
	EntityType string `json:"entityType" validate:"required,oneof=business personal"`
}

func createEntityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createEntityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := validate.Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		svc, err := buildService(c)
		if err != nil {
			abortWithError(c, err)
			return
		}

		ctx, span := tracer.Start(c.Request.Context(), "provisionEntity")
		defer span.End()
		structure, err := svc.CreateEntity(ctx, req.EntityName, filing.EntityType(req.EntityType))
		if err != nil {
			// Folders may exist even though the registry write failed;
			// surface that as a flagged success rather than losing the IDs.
			if filing.KindOf(err) == filing.KindMetadataPersist && structure != nil {
				c.JSON(http.StatusOK, gin.H{"structure": structure, "degraded": true})
				return
			}
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"structure": structure})
	}
}

func listEntitiesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := buildService(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		names, err := svc.ListEntities(c.Request.Context())
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"entities": names})
	}
}

func reconcileEntityHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := buildService(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		merges, err := svc.ReconcileEntity(c.Request.Context(), c.Param("entityName"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"merges": merges})
	}
}

func documentStructureHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entityName := c.Query("entityName")
		if entityName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "entityName is required"})
			return
		}

		svc, err := buildService(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		tree, err := svc.GetStructure(c.Request.Context(), entityName, c.Query("mode"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"structure": tree})
	}
}

type updateDocumentRequest struct {
	Description *string `json:"description"`
	Tags        *string `json:"tags"`
}

// updateDocumentHandler patches the caller-editable metadata fields. The
// placement fields (path, classification) are immutable through this
// endpoint; refiling a document means uploading it again.
func updateDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req updateDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		patch := map[string]interface{}{}
		if req.Description != nil {
			patch["description"] = *req.Description
		}
		if req.Tags != nil {
			patch["tags"] = strings.Join(utils.SplitAndTrim(*req.Tags), ",")
		}
		if len(patch) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
			return
		}

		ctx := c.Request.Context()
		store := models.NewStore(config.GetDB())
		if _, err := store.DocumentByID(ctx, c.Param("id")); err != nil {
			abortWithError(c, err)
			return
		}
		if err := store.UpdateDocument(ctx, c.Param("id"), patch); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": c.Param("id")})
	}
}

func documentPermissionsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		svc, err := buildService(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		doc, perms, err := svc.DocumentPermissions(c.Request.Context(), c.Param("id"))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"document":    gin.H{"id": doc.ID, "fileName": doc.FileName},
			"permissions": perms,
		})
	}
}

type revokeAccessRequest struct {
	DocumentID string `json:"documentId" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
}

func revokeAccessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req revokeAccessRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := validate.Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		svc, err := buildService(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if err := svc.RevokeAccess(c.Request.Context(), req.DocumentID, req.Email); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"revoked": req.Email})
	}
}

type shareFolderRequest struct {
	FolderID string `json:"folderId" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Role     string `json:"role"`
}

func shareFolderHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req shareFolderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if err := validate.Struct(req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		svc, err := buildService(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if err := svc.ShareFolder(c.Request.Context(), req.FolderID, req.Email, req.Role); err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"shared": req.Email, "role": storage.NormalizeRole(req.Role)})
	}
}

func searchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		query := c.Query("q")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
			return
		}

		svc, err := buildService(c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		docs, err := svc.Search(c.Request.Context(), query, models.SearchFilters{
			EntityName: c.Query("entityName"),
			Category:   c.Query("category"),
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": docs, "count": len(docs)})
	}
}

func dashboardHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		store := models.NewStore(config.GetDB())

		if entityName := c.Query("entityName"); entityName != "" {
			stats, err := store.GetEntityStats(ctx, entityName)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"entity": stats})
			return
		}

		stats, err := store.GetDocumentStats(ctx)
		if err != nil {
			abortWithError(c, err)
			return
		}
		limit := 20
		if v := c.Query("activityLimit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		activity, err := store.RecentActivity(ctx, limit)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats, "recentActivity": activity})
	}
}

func documentRegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		entityName := c.Query("entityName")
		if err := reports.ExportDocumentRegister(c.Request.Context(), c.Writer, entityName); err != nil {
			abortWithError(c, err)
			return
		}
	}
}
