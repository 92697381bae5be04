package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSProvider maps the hierarchical provider contract onto a flat GCS
// bucket. A folder is a zero-byte marker object whose name ends in "/";
// node IDs are object names, so the ID itself encodes the full path.
//
// This keeps a second provider wired the same way the books backend kept
// GCS next to its other storage targets; Drive remains the default.
type GCSProvider struct {
	client *gcs.Client
	bucket string
	root   string
}

// NewGCSProvider opens a client against GCS_BUCKET. root is a key prefix
// (may be empty) acting as the well-known root container.
func NewGCSProvider(ctx context.Context, root string) (*GCSProvider, error) {
	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("GCS_BUCKET is required")
	}

	var (
		client *gcs.Client
		err    error
	)
	if credJSON := strings.TrimSpace(os.Getenv("GCS_CREDENTIALS_JSON")); credJSON != "" {
		client, err = gcs.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	} else {
		client, err = gcs.NewClient(ctx)
	}
	if err != nil {
		return nil, err
	}

	if root != "" && !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return &GCSProvider{client: client, bucket: bucket, root: root}, nil
}

func (p *GCSProvider) Root() string {
	return p.root
}

func (p *GCSProvider) Close() error {
	return p.client.Close()
}

func baseName(objectName string) string {
	trimmed := strings.TrimSuffix(objectName, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

func (p *GCSProvider) ListChildren(ctx context.Context, parentID string, filter ListFilter) ([]Entry, error) {
	it := p.client.Bucket(p.bucket).Objects(ctx, &gcs.Query{
		Prefix:    parentID,
		Delimiter: "/",
	})

	var entries []Entry
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var e Entry
		switch {
		case attrs.Prefix != "":
			e = Entry{ID: attrs.Prefix, Name: baseName(attrs.Prefix), IsFolder: true}
			// The marker object, when present, carries the creation time.
			if marker, merr := p.client.Bucket(p.bucket).Object(attrs.Prefix).Attrs(ctx); merr == nil {
				e.CreatedAt = marker.Created
			}
		case attrs.Name == parentID:
			// The parent's own marker object, not a child.
			continue
		default:
			e = Entry{
				ID:        attrs.Name,
				Name:      baseName(attrs.Name),
				MimeType:  attrs.ContentType,
				Size:      attrs.Size,
				CreatedAt: attrs.Created,
			}
		}

		if filter.Name != "" && e.Name != filter.Name {
			continue
		}
		if filter.FoldersOnly && !e.IsFolder {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (p *GCSProvider) CreateFolder(ctx context.Context, name, parentID string) (FolderRef, error) {
	objectName := parentID + name + "/"
	w := p.client.Bucket(p.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/x-directory"
	if err := w.Close(); err != nil {
		return FolderRef{}, err
	}
	attrs, err := p.client.Bucket(p.bucket).Object(objectName).Attrs(ctx)
	if err != nil {
		return FolderRef{ID: objectName, Name: name}, nil
	}
	return FolderRef{ID: objectName, Name: name, CreatedAt: attrs.Created}, nil
}

func (p *GCSProvider) CreateFile(ctx context.Context, name, parentID string, data []byte, mimeType string) (FileRef, error) {
	objectName := parentID + name
	w := p.client.Bucket(p.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return FileRef{}, err
	}
	if err := w.Close(); err != nil {
		return FileRef{}, err
	}
	attrs, err := p.client.Bucket(p.bucket).Object(objectName).Attrs(ctx)
	if err != nil {
		return FileRef{ID: objectName, Name: name, MimeType: mimeType, Size: int64(len(data))}, nil
	}
	return FileRef{
		ID:        objectName,
		Name:      name,
		MimeType:  attrs.ContentType,
		Size:      attrs.Size,
		CreatedAt: attrs.Created,
	}, nil
}

// MoveChild rewrites objects from one key prefix to another. Folder
// children (IDs ending in "/") are moved recursively since a GCS "folder"
// is just every object sharing the prefix.
func (p *GCSProvider) MoveChild(ctx context.Context, childID, fromParentID, toParentID string) error {
	if !strings.HasPrefix(childID, fromParentID) {
		return fmt.Errorf("object %q is not under parent %q", childID, fromParentID)
	}
	rel := strings.TrimPrefix(childID, fromParentID)

	if !strings.HasSuffix(childID, "/") {
		return p.rewriteObject(ctx, childID, toParentID+rel)
	}

	it := p.client.Bucket(p.bucket).Objects(ctx, &gcs.Query{Prefix: childID})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		dst := toParentID + rel + strings.TrimPrefix(attrs.Name, childID)
		if err := p.rewriteObject(ctx, attrs.Name, dst); err != nil {
			return err
		}
	}
}

func (p *GCSProvider) rewriteObject(ctx context.Context, src, dst string) error {
	bucket := p.client.Bucket(p.bucket)
	if _, err := bucket.Object(dst).CopierFrom(bucket.Object(src)).Run(ctx); err != nil {
		return err
	}
	return bucket.Object(src).Delete(ctx)
}

// Trash deletes the node. GCS has no trash; the reconciler only calls this
// after the duplicate's children have been moved out.
func (p *GCSProvider) Trash(ctx context.Context, id string) error {
	if !strings.HasSuffix(id, "/") {
		return p.client.Bucket(p.bucket).Object(id).Delete(ctx)
	}
	it := p.client.Bucket(p.bucket).Objects(ctx, &gcs.Query{Prefix: id})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return err
		}
		if err := p.client.Bucket(p.bucket).Object(attrs.Name).Delete(ctx); err != nil {
			return err
		}
	}
}

func gcsACLRole(role Role) gcs.ACLRole {
	// GCS has no commenter concept; commenter degrades to reader.
	if role == RoleWriter {
		return gcs.RoleWriter
	}
	return gcs.RoleReader
}

func (p *GCSProvider) Share(ctx context.Context, id, email string, role Role, _ string) error {
	entity := gcs.ACLEntity("user-" + email)
	return p.client.Bucket(p.bucket).Object(id).ACL().Set(ctx, entity, gcsACLRole(role))
}

func (p *GCSProvider) ListPermissions(ctx context.Context, id string) ([]Permission, error) {
	rules, err := p.client.Bucket(p.bucket).Object(id).ACL().List(ctx)
	if err != nil {
		return nil, err
	}
	perms := make([]Permission, 0, len(rules))
	for _, rule := range rules {
		perm := Permission{
			ID:   string(rule.Entity),
			Role: strings.ToLower(string(rule.Role)),
			Type: "user",
		}
		if strings.HasPrefix(string(rule.Entity), "user-") {
			perm.EmailAddress = strings.TrimPrefix(string(rule.Entity), "user-")
		}
		perms = append(perms, perm)
	}
	return perms, nil
}

func (p *GCSProvider) DeletePermission(ctx context.Context, id, permissionID string) error {
	return p.client.Bucket(p.bucket).Object(id).ACL().Delete(ctx, gcs.ACLEntity(permissionID))
}

// ReadObject is a small helper for operational tooling; not part of the
// Provider contract.
func (p *GCSProvider) ReadObject(ctx context.Context, id string) ([]byte, error) {
	r, err := p.client.Bucket(p.bucket).Object(id).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var _ Provider = (*GCSProvider)(nil)
var _ Provider = (*DriveProvider)(nil)
