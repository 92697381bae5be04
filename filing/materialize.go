package filing

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/docs_backend/storage"
)

// Materialize folds the resolver over an ordered segment sequence,
// threading each resolved folder's ID as the next call's parent. The fold
// is strictly sequential: each step depends on the previous step's ID.
// Independent paths (other entities, other categories) are free to
// materialize concurrently.
func (r *Resolver) Materialize(ctx context.Context, segments []string, rootID string) (storage.FolderRef, error) {
	if len(segments) == 0 {
		return storage.FolderRef{}, invalidf("no path segments to materialize")
	}

	current := storage.FolderRef{ID: rootID}
	for _, segment := range segments {
		ref, err := r.Resolve(ctx, segment, current.ID)
		if err != nil {
			return storage.FolderRef{}, err
		}
		current = ref
	}
	return current, nil
}

// EntityFolderStructure is the result of provisioning a new entity.
type EntityFolderStructure struct {
	EntityFolder    storage.FolderRef            `json:"entityFolder"`
	CategoryFolders map[string]storage.FolderRef `json:"categoryFolders"`
	EntityType      EntityType                   `json:"entityType"`
}

// provisionWorkers bounds the fan-out across independent year/month
// subtrees during entity provisioning.
const provisionWorkers = 4

// ProvisionEntity pre-creates the entity's full folder tree: one folder
// per category, and for business entities the current and next financial
// year under the yearly categories, with all twelve months under the
// monthly-filing ones. Each year/month subtree is an independent
// materialization, so those run with bounded concurrency; the shared
// per-tuple locks keep overlapping runs (a retried request, a concurrent
// upload) from minting duplicates.
func (r *Resolver) ProvisionEntity(ctx context.Context, entityName string, entityType EntityType, now time.Time) (*EntityFolderStructure, error) {
	entityFolder, err := r.Resolve(ctx, entityName, r.provider.Root())
	if err != nil {
		return nil, err
	}

	result := &EntityFolderStructure{
		EntityFolder:    entityFolder,
		CategoryFolders: map[string]storage.FolderRef{},
		EntityType:      entityType,
	}

	var (
		wg       sync.WaitGroup
		sem      = make(chan struct{}, provisionWorkers)
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for _, category := range Categories(entityType) {
		categoryFolder, err := r.Resolve(ctx, category, entityFolder.ID)
		if err != nil {
			return nil, err
		}
		result.CategoryFolders[category] = categoryFolder

		if entityType != EntityTypeBusiness || !yearedCategories[category] {
			continue
		}

		for _, fy := range ProvisionYears(now) {
			segments := []string{fy}
			if monthlyFilingCategories[category] {
				segments = append(segments, monthNames...)
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(parentID string, segments []string) {
				defer wg.Done()
				defer func() { <-sem }()

				yearFolder, err := r.Resolve(ctx, segments[0], parentID)
				if err != nil {
					fail(err)
					return
				}
				for _, month := range segments[1:] {
					if _, err := r.Resolve(ctx, month, yearFolder.ID); err != nil {
						fail(err)
						return
					}
				}
			}(categoryFolder.ID, segments)
		}
	}

	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return result, nil
}
