package filing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/docs_backend/config"
	"bitbucket.org/mmdatafocus/docs_backend/models"
	"bitbucket.org/mmdatafocus/docs_backend/storage"
	"bitbucket.org/mmdatafocus/docs_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const entityListCacheKey = "entities:list"
const entityListCacheTTL = 5 * time.Minute

// ActivityPublisher emits one activity event. Publishing is best-effort;
// implementations must not block the caller for long.
type ActivityPublisher func(ctx context.Context, msg config.ActivityMessage)

// Cache is the small caching surface the facade needs. The default is the
// shared Redis client; tests substitute an in-memory map.
type Cache interface {
	Get(key string, dest interface{}) (bool, error)
	Set(key string, value interface{}, ttl time.Duration) error
	Remove(keys ...string) error
}

// redisCache adapts the config Redis helpers, which tolerate a nil client.
type redisCache struct{}

func (redisCache) Get(key string, dest interface{}) (bool, error) {
	return config.GetRedisObject(key, dest)
}

func (redisCache) Set(key string, value interface{}, ttl time.Duration) error {
	return config.SetRedisObject(key, value, ttl)
}

func (redisCache) Remove(keys ...string) error {
	return config.RemoveRedisKey(keys...)
}

// Config wires a Service. Provider is per-request (it carries the caller's
// delegated credential); Locks must be the process-wide registry so
// concurrent requests serialize on the same tuples.
type Config struct {
	Provider     storage.Provider
	Store        MetadataStore
	Locks        *LockRegistry
	Locker       *redislock.Client
	Logger       *logrus.Logger
	Publish      ActivityPublisher
	Cache        Cache
	MaxTreeDepth int
	Now          func() time.Time
}

// Service is the filing core's facade consumed by the API layer. All
// collaborators are injected; there is no ambient client state in here.
type Service struct {
	provider  storage.Provider
	store     MetadataStore
	resolver  *Resolver
	projector *Projector
	recorder  *Recorder
	logger    *logrus.Logger
	publish   ActivityPublisher
	cache     Cache
	maxDepth  int
	now       func() time.Time
}

func NewService(cfg Config) *Service {
	if cfg.Locks == nil {
		cfg.Locks = NewLockRegistry()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Cache == nil {
		cfg.Cache = redisCache{}
	}
	if cfg.MaxTreeDepth <= 0 {
		cfg.MaxTreeDepth = DefaultMaxTreeDepth
	}
	resolver := NewResolver(cfg.Provider, cfg.Locks, cfg.Locker, cfg.Logger)
	return &Service{
		provider:  cfg.Provider,
		store:     cfg.Store,
		resolver:  resolver,
		projector: NewProjector(cfg.Provider, cfg.Store, cfg.MaxTreeDepth),
		recorder:  NewRecorder(cfg.Store, cfg.Logger),
		logger:    cfg.Logger,
		publish:   cfg.Publish,
		cache:     cfg.Cache,
		maxDepth:  cfg.MaxTreeDepth,
		now:       cfg.Now,
	}
}

// Resolver exposes the underlying resolver for operational tooling
// (reconciliation jobs).
func (s *Service) Resolver() *Resolver {
	return s.resolver
}

// CreateEntity provisions the full folder tree for a new entity and
// registers it in the metadata store. Re-running it for an existing entity
// is safe: every folder resolves to its existing instance.
func (s *Service) CreateEntity(ctx context.Context, entityName string, entityType EntityType) (*EntityFolderStructure, error) {
	entityName = strings.TrimSpace(entityName)
	if entityName == "" {
		return nil, invalidf("entity name is required")
	}
	if !entityType.Valid() {
		return nil, invalidf("entity type must be %s or %s", EntityTypeBusiness, EntityTypePersonal)
	}

	structure, err := s.resolver.ProvisionEntity(ctx, entityName, entityType, s.now())
	if err != nil {
		return nil, err
	}

	userEmail, _ := utils.GetUserEmailFromContext(ctx)
	entity := &models.Entity{
		EntityName:     entityName,
		EntityType:     string(entityType),
		RemoteFolderID: structure.EntityFolder.ID,
		CreatedBy:      userEmail,
	}
	if err := s.store.UpsertEntity(ctx, entity); err != nil {
		// Folders exist; only the registry row is missing. Degraded success,
		// same policy as a failed document-metadata insert.
		if s.logger != nil {
			config.LogError(s.logger, "filing/service.go", "CreateEntity", "entity provisioned but registry upsert failed", entityName, err)
		}
		return structure, &Error{Kind: KindMetadataPersist, Detail: "entity folders created but registry row was not persisted", Err: err}
	}

	_ = s.cache.Remove(entityListCacheKey)
	s.logActivity(ctx, models.ActivityLog{
		Action:     "entity_create",
		EntityName: entityName,
	})
	return structure, nil
}

// UploadFile is one file of an upload batch. Thumbnail, when set, is a
// pre-rendered preview placed next to the original.
type UploadFile struct {
	FileName     string
	OriginalName string
	MimeType     string
	Data         []byte
	Thumbnail    []byte
}

// FileOutcome reports one file's result. A multi-file batch never
// collapses into all-or-nothing: each file succeeds, fails, or lands in
// storage without metadata (Degraded).
type FileOutcome struct {
	DocumentID   string `json:"id,omitempty"`
	FileName     string `json:"fileName"`
	RemoteFileID string `json:"remoteFileId,omitempty"`
	FilePath     string `json:"path,omitempty"`
	Size         int64  `json:"size,omitempty"`
	Degraded     bool   `json:"degraded,omitempty"`
	Error        string `json:"error,omitempty"`
}

// UploadAndFile plans the classification path once, then files every
// upload in the batch: materialize the folder chain, place the file,
// persist its metadata. Validation happens before any remote call; after
// the file is placed, failures degrade instead of rolling back.
func (s *Service) UploadAndFile(ctx context.Context, key ClassificationKey, files []UploadFile, extras UploadExtras) ([]FileOutcome, error) {
	key = key.Normalize()
	if err := key.Validate(); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, invalidf("no files to upload")
	}

	userEmail, _ := utils.GetUserEmailFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	segments := Plan(key)

	outcomes := make([]FileOutcome, 0, len(files))
	for _, file := range files {
		outcome := FileOutcome{FileName: file.FileName}

		if strings.TrimSpace(file.FileName) == "" || len(file.Data) == 0 {
			outcome.Error = "empty file"
			outcomes = append(outcomes, outcome)
			continue
		}

		// Re-materialize per file: resolution is idempotent, and a batch
		// must not share folder refs across files that may race with other
		// requests mutating the tree.
		folder, err := s.resolver.Materialize(ctx, segments, s.provider.Root())
		if err != nil {
			outcome.Error = err.Error()
			outcomes = append(outcomes, outcome)
			continue
		}

		fileRef, err := s.provider.CreateFile(ctx, file.FileName, folder.ID, file.Data, file.MimeType)
		if err != nil {
			outcome.Error = storageErr("store file "+file.FileName, err).Error()
			outcomes = append(outcomes, outcome)
			continue
		}

		placed := PlacedFile{
			RemoteFileID: fileRef.ID,
			FileName:     file.FileName,
			OriginalName: file.OriginalName,
			MimeType:     file.MimeType,
			Size:         int64(len(file.Data)),
		}
		if len(file.Thumbnail) > 0 {
			if thumbRef, terr := s.provider.CreateFile(ctx, file.FileName+".thumb.jpg", folder.ID, file.Thumbnail, "image/jpeg"); terr == nil {
				placed.ThumbnailFileID = thumbRef.ID
			} else if s.logger != nil {
				config.LogError(s.logger, "filing/service.go", "UploadAndFile", "thumbnail upload failed", file.FileName, terr)
			}
		}

		doc, err := s.recorder.Record(ctx, placed, key, userEmail, userName, extras)
		outcome.RemoteFileID = fileRef.ID
		outcome.FilePath = doc.FilePath
		outcome.Size = placed.Size
		if err != nil {
			var fe *Error
			if errors.As(err, &fe) && fe.Kind == KindMetadataPersist {
				outcome.Degraded = true
				outcome.Error = fe.Detail
			} else {
				outcome.Error = err.Error()
			}
		} else {
			outcome.DocumentID = doc.ID
		}
		outcomes = append(outcomes, outcome)

		s.logActivity(ctx, models.ActivityLog{
			Action:     "document_upload",
			EntityName: key.EntityName,
			DocumentID: outcome.DocumentID,
			FileName:   file.FileName,
			Category:   key.Category,
		})
		if s.publish != nil {
			correlationID, _ := utils.GetCorrelationIdFromContext(ctx)
			s.publish(ctx, config.ActivityMessage{
				Action:        "document_filed",
				EntityName:    key.EntityName,
				DocumentID:    outcome.DocumentID,
				RemoteFileID:  fileRef.ID,
				FileName:      file.FileName,
				Category:      key.Category,
				FilePath:      outcome.FilePath,
				UserEmail:     userEmail,
				UserName:      userName,
				CorrelationId: correlationID,
				Timestamp:     s.now(),
			})
		}
	}
	return outcomes, nil
}

// GetStructure projects the entity's folder tree. mode is "live" or
// "metadata"; live reflects the provider's current contents, metadata
// reflects the database's view.
func (s *Service) GetStructure(ctx context.Context, entityName, mode string) (*TreeNode, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "live":
		return s.projector.Live(ctx, entityName)
	case "metadata":
		return s.projector.Metadata(ctx, entityName)
	default:
		return nil, invalidf("unknown structure mode %q", mode)
	}
}

// ListEntities lists entity names from the provider's root, cached briefly
// in Redis. When the provider is unreachable the metadata registry serves
// as the fallback view.
func (s *Service) ListEntities(ctx context.Context) ([]string, error) {
	var cached []string
	if found, err := s.cache.Get(entityListCacheKey, &cached); err == nil && found {
		return cached, nil
	}

	children, err := s.provider.ListChildren(ctx, s.provider.Root(), storage.ListFilter{FoldersOnly: true})
	if err != nil {
		entities, derr := s.store.Entities(ctx)
		if derr != nil {
			return nil, storageErr("list entities", err)
		}
		names := make([]string, 0, len(entities))
		for _, e := range entities {
			names = append(names, e.EntityName)
		}
		return names, nil
	}

	names := make([]string, 0, len(children))
	for _, c := range children {
		names = append(names, c.Name)
	}
	_ = s.cache.Set(entityListCacheKey, names, entityListCacheTTL)
	return names, nil
}

// Search queries the metadata store.
func (s *Service) Search(ctx context.Context, query string, filters models.SearchFilters) ([]*models.DocumentRecord, error) {
	return s.store.SearchDocuments(ctx, query, filters)
}

// ShareFolder grants a principal access to a folder (or file) node.
func (s *Service) ShareFolder(ctx context.Context, nodeID, email, role string) error {
	if nodeID == "" {
		return permissionErr("node id is required", nil)
	}
	if !utils.IsValidEmail(email) {
		return permissionErr(fmt.Sprintf("invalid email %q", email), nil)
	}

	userName, _ := utils.GetUserNameFromContext(ctx)
	message := fmt.Sprintf("%s has shared a folder with you from Business DocCenter.", userName)
	if err := s.provider.Share(ctx, nodeID, email, storage.NormalizeRole(role), message); err != nil {
		return permissionErr("share "+nodeID+" with "+email, err)
	}

	s.logActivity(ctx, models.ActivityLog{
		Action:   "folder_share",
		FileName: nodeID,
	})
	return nil
}

// DocumentPermissions lists non-owner user grants on a document's remote
// file.
func (s *Service) DocumentPermissions(ctx context.Context, documentID string) (*models.DocumentRecord, []storage.Permission, error) {
	doc, err := s.store.DocumentByID(ctx, documentID)
	if err != nil {
		return nil, nil, err
	}
	perms, err := s.provider.ListPermissions(ctx, doc.RemoteFileID)
	if err != nil {
		return nil, nil, permissionErr("list permissions of "+doc.RemoteFileID, err)
	}
	shared := make([]storage.Permission, 0, len(perms))
	for _, p := range perms {
		if p.Type == "user" && p.Role != "owner" {
			shared = append(shared, p)
		}
	}
	return doc, shared, nil
}

// RevokeAccess removes a principal's grant on a document's remote file. No
// local state changes; there is no local permission cache to roll back.
func (s *Service) RevokeAccess(ctx context.Context, documentID, email string) error {
	doc, err := s.store.DocumentByID(ctx, documentID)
	if err != nil {
		return err
	}

	perms, err := s.provider.ListPermissions(ctx, doc.RemoteFileID)
	if err != nil {
		return permissionErr("list permissions of "+doc.RemoteFileID, err)
	}
	for _, p := range perms {
		if p.EmailAddress == email {
			if err := s.provider.DeletePermission(ctx, doc.RemoteFileID, p.ID); err != nil {
				return permissionErr("revoke "+email+" on "+doc.FileName, err)
			}
			s.logActivity(ctx, models.ActivityLog{
				Action:     "access_revoke",
				EntityName: doc.EntityName,
				DocumentID: doc.ID,
				FileName:   doc.FileName,
			})
			return nil
		}
	}
	return permissionErr("no permission found for "+email, nil)
}

// ReconcileEntity merges duplicate same-named sibling folders across the
// entity's subtree, bounded by the configured tree depth.
func (s *Service) ReconcileEntity(ctx context.Context, entityName string) ([]DuplicateMerge, error) {
	matches, err := s.provider.ListChildren(ctx, s.provider.Root(), storage.ListFilter{
		Name:        strings.TrimSpace(entityName),
		FoldersOnly: true,
	})
	if err != nil {
		return nil, storageErr("find entity folder", err)
	}
	if len(matches) == 0 {
		return nil, invalidf("entity %q has no folder", entityName)
	}

	var merges []DuplicateMerge
	frontier := []string{matches[0].ID}
	for depth := 0; depth < s.maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, parentID := range frontier {
			found, err := s.resolver.ReconcileSiblings(ctx, parentID)
			if err != nil {
				return merges, err
			}
			merges = append(merges, found...)

			children, err := s.provider.ListChildren(ctx, parentID, storage.ListFilter{FoldersOnly: true})
			if err != nil {
				return merges, storageErr("list children of "+parentID, err)
			}
			for _, c := range children {
				next = append(next, c.ID)
			}
		}
		frontier = next
	}
	return merges, nil
}

func (s *Service) logActivity(ctx context.Context, activity models.ActivityLog) {
	userEmail, _ := utils.GetUserEmailFromContext(ctx)
	userName, _ := utils.GetUserNameFromContext(ctx)
	activity.UserEmail = userEmail
	activity.UserName = userName
	if err := s.store.InsertActivity(ctx, &activity); err != nil && s.logger != nil {
		config.LogError(s.logger, "filing/service.go", "logActivity", "activity insert failed", activity.Action, err)
	}
}
