package storage

import (
	"context"
	"os"
	"strings"
	"time"
)

const (
	StorageProviderDrive = "drive"
	StorageProviderGCS   = "gcs"
)

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderDrive
	}
	return provider
}

// Role is a provider-side sharing role.
type Role string

const (
	RoleReader    Role = "reader"
	RoleCommenter Role = "commenter"
	RoleWriter    Role = "writer"
)

// NormalizeRole maps arbitrary input to a valid role, defaulting to reader.
func NormalizeRole(s string) Role {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleReader, RoleCommenter, RoleWriter:
		return Role(strings.TrimSpace(strings.ToLower(s)))
	}
	return RoleReader
}

// FolderRef is a handle to a remote container node. The ID is opaque and
// owned by the provider; callers hold it only for the duration of one
// operation, never across requests.
type FolderRef struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// FileRef is a handle to a remote leaf object.
type FileRef struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	CreatedAt   time.Time
	WebViewLink string
}

// Entry is one child of a container, folder or file.
type Entry struct {
	ID        string
	Name      string
	MimeType  string
	Size      int64
	CreatedAt time.Time
	IsFolder  bool
}

// ListFilter narrows a ListChildren call. Name is an exact match (the
// implementation is responsible for escaping it), not a substring.
type ListFilter struct {
	Name        string
	FoldersOnly bool
}

// Permission is one grant on a remote node.
type Permission struct {
	ID           string
	EmailAddress string
	Role         string
	Type         string
	DisplayName  string
}

// Provider is the remote hierarchical store. Implementations must treat
// every call as non-transactional: a create that times out may still have
// happened server-side, so callers re-verify before retrying creates.
type Provider interface {
	// Root returns the well-known root container ID all paths hang off.
	Root() string

	ListChildren(ctx context.Context, parentID string, filter ListFilter) ([]Entry, error)
	CreateFolder(ctx context.Context, name, parentID string) (FolderRef, error)
	CreateFile(ctx context.Context, name, parentID string, data []byte, mimeType string) (FileRef, error)

	// MoveChild reparents a node. Used by duplicate-sibling reconciliation.
	MoveChild(ctx context.Context, childID, fromParentID, toParentID string) error
	// Trash removes a node from listings without destroying it.
	Trash(ctx context.Context, id string) error

	Share(ctx context.Context, id, email string, role Role, message string) error
	ListPermissions(ctx context.Context, id string) ([]Permission, error)
	DeletePermission(ctx context.Context, id, permissionID string) error
}
