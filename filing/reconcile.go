package filing

import (
	"context"

	"bitbucket.org/mmdatafocus/docs_backend/config"
	"bitbucket.org/mmdatafocus/docs_backend/storage"
)

// DuplicateMerge is the audit record for one merged duplicate-sibling
// group.
type DuplicateMerge struct {
	ParentID      string            `json:"parentId"`
	Name          string            `json:"name"`
	Canonical     storage.FolderRef `json:"canonical"`
	MergedFolders []string          `json:"mergedFolders"`
	MovedChildren int               `json:"movedChildren"`
}

// ReconcileSiblings merges duplicate same-named folders under one parent:
// children of each duplicate move into the earliest-created sibling, then
// the emptied duplicate is trashed. This backstops the per-tuple lock for
// duplicates minted before the lock existed or by out-of-band writers; it
// is a supplement to the lock, never the primary defense.
func (r *Resolver) ReconcileSiblings(ctx context.Context, parentID string) ([]DuplicateMerge, error) {
	children, err := r.provider.ListChildren(ctx, parentID, storage.ListFilter{FoldersOnly: true})
	if err != nil {
		return nil, storageErr("list children of "+parentID, err)
	}

	byName := map[string][]storage.Entry{}
	for _, c := range children {
		byName[c.Name] = append(byName[c.Name], c)
	}

	var merges []DuplicateMerge
	for name, group := range byName {
		if len(group) < 2 {
			continue
		}

		canonical := group[0]
		for _, c := range group[1:] {
			if c.CreatedAt.Before(canonical.CreatedAt) {
				canonical = c
			}
		}

		merge := DuplicateMerge{
			ParentID: parentID,
			Name:     name,
			Canonical: storage.FolderRef{
				ID:        canonical.ID,
				Name:      canonical.Name,
				CreatedAt: canonical.CreatedAt,
			},
		}

		for _, dup := range group {
			if dup.ID == canonical.ID {
				continue
			}
			moved, err := r.mergeInto(ctx, dup.ID, canonical.ID)
			if err != nil {
				return merges, err
			}
			merge.MovedChildren += moved
			merge.MergedFolders = append(merge.MergedFolders, dup.ID)
		}

		if r.logger != nil {
			config.LogError(r.logger, "filing/reconcile.go", "ReconcileSiblings", "merged duplicate siblings", merge,
				&Error{Kind: KindDuplicateFolder, Detail: name})
		}
		merges = append(merges, merge)
	}
	return merges, nil
}

func (r *Resolver) mergeInto(ctx context.Context, dupID, canonicalID string) (int, error) {
	children, err := r.provider.ListChildren(ctx, dupID, storage.ListFilter{})
	if err != nil {
		return 0, storageErr("list children of duplicate "+dupID, err)
	}
	moved := 0
	for _, c := range children {
		if err := r.provider.MoveChild(ctx, c.ID, dupID, canonicalID); err != nil {
			return moved, storageErr("move child out of duplicate", err)
		}
		moved++
	}
	if err := r.provider.Trash(ctx, dupID); err != nil {
		return moved, storageErr("trash duplicate folder", err)
	}
	return moved, nil
}
