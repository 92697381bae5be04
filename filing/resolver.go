package filing

import (
	"context"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/docs_backend/config"
	"bitbucket.org/mmdatafocus/docs_backend/storage"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

// LockRegistry serializes check-then-create per (parentID, name) tuple.
// The provider enforces no uniqueness on (name, parent), so without this
// two concurrent uploads hitting the same fresh path both observe "no
// folder" and both create one. One registry per process, shared across
// requests; it outlives any single provider instance.
type LockRegistry struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLockRegistry() *LockRegistry {
	return &LockRegistry{locks: map[string]*sync.Mutex{}}
}

// Acquire locks the tuple and returns the release func. Tuple mutexes are
// retained for the life of the process; the key space is bounded by the
// folder hierarchy, which is small.
func (r *LockRegistry) Acquire(key string) func() {
	r.mu.Lock()
	m := r.locks[key]
	if m == nil {
		m = &sync.Mutex{}
		r.locks[key] = m
	}
	r.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Resolver finds or creates one named child container under a parent.
type Resolver struct {
	provider storage.Provider
	locks    *LockRegistry
	locker   *redislock.Client
	logger   *logrus.Logger
}

func NewResolver(provider storage.Provider, locks *LockRegistry, locker *redislock.Client, logger *logrus.Logger) *Resolver {
	return &Resolver{
		provider: provider,
		locks:    locks,
		locker:   locker,
		logger:   logger,
	}
}

// Resolve returns the existing child folder named name under parentID, or
// creates it. Idempotent: a second call returns the same folder ID.
//
// When more than one same-named sibling exists (a race that slipped past
// an earlier deployment, or out-of-band creation), the earliest-created
// one wins deterministically and the duplicate is reported for
// reconciliation.
func (r *Resolver) Resolve(ctx context.Context, name, parentID string) (storage.FolderRef, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return storage.FolderRef{}, invalidf("folder name is required")
	}
	// An empty parent is valid only when it is the provider's own root
	// sentinel (the GCS provider uses an empty key prefix as its root).
	if parentID == "" && r.provider.Root() != "" {
		return storage.FolderRef{}, invalidf("parent folder id is required")
	}

	key := parentID + "/" + name
	release := r.locks.Acquire(key)
	defer release()

	// Cross-instance serialization is best-effort: if Redis is down or the
	// lock is contended, resolution proceeds under the in-process lock and
	// the reconciler merges any duplicate that slips through.
	if r.locker != nil {
		if lock, err := r.locker.Obtain(ctx, "folder:"+key, 30*time.Second, nil); err == nil {
			defer func() { _ = lock.Release(ctx) }()
		}
	}

	if ref, found, err := r.lookup(ctx, name, parentID); err != nil {
		return storage.FolderRef{}, err
	} else if found {
		return ref, nil
	}

	ref, err := r.provider.CreateFolder(ctx, name, parentID)
	if err == nil {
		return ref, nil
	}

	// The create call is not idempotent at the provider: a timeout may mean
	// the folder was created anyway. Re-check existence once instead of
	// retrying the create, which could mint a duplicate sibling.
	if ref, found, lerr := r.lookup(ctx, name, parentID); lerr == nil && found {
		return ref, nil
	}
	return storage.FolderRef{}, storageErr("create folder "+name, err)
}

func (r *Resolver) lookup(ctx context.Context, name, parentID string) (storage.FolderRef, bool, error) {
	children, err := r.provider.ListChildren(ctx, parentID, storage.ListFilter{
		Name:        name,
		FoldersOnly: true,
	})
	if err != nil {
		return storage.FolderRef{}, false, storageErr("list children of "+parentID, err)
	}
	if len(children) == 0 {
		return storage.FolderRef{}, false, nil
	}

	best := children[0]
	for _, c := range children[1:] {
		if c.CreatedAt.Before(best.CreatedAt) {
			best = c
		}
	}
	if len(children) > 1 && r.logger != nil {
		config.LogError(r.logger, "filing/resolver.go", "lookup", "duplicate same-named siblings", map[string]interface{}{
			"parentId": parentID,
			"name":     name,
			"count":    len(children),
		}, &Error{Kind: KindDuplicateFolder, Detail: name})
	}

	return storage.FolderRef{ID: best.ID, Name: best.Name, CreatedAt: best.CreatedAt}, true, nil
}
