package filing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bitbucket.org/mmdatafocus/docs_backend/storage"
)

// fakeProvider is an in-memory stand-in for the remote store. Like the
// real one it enforces no uniqueness on (parent, name): CreateFolder
// always mints a new node, so unserialized check-then-create races mint
// duplicates here exactly as they would remotely.
type fakeNode struct {
	id        string
	name      string
	parent    string
	mimeType  string
	size      int64
	folder    bool
	trashed   bool
	createdAt time.Time
}

type fakeProvider struct {
	mu        sync.Mutex
	seq       int
	nodes     map[string]*fakeNode
	perms     map[string][]storage.Permission
	clock     time.Time
	calls     map[string]int
	listErr   error
	listDelay time.Duration    // sleep after listing, before returning, to stretch the check-then-create window
	createErr map[string]error // folder name -> error returned after the node is still created
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		nodes:     map[string]*fakeNode{},
		perms:     map[string][]storage.Permission{},
		clock:     time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		calls:     map[string]int{},
		createErr: map[string]error{},
	}
}

func (p *fakeProvider) Root() string { return "root" }

func (p *fakeProvider) tick() time.Time {
	p.clock = p.clock.Add(time.Second)
	return p.clock
}

func (p *fakeProvider) newID(kind string) string {
	p.seq++
	return fmt.Sprintf("%s-%d", kind, p.seq)
}

// addFolder seeds a folder directly, bypassing CreateFolder. createdAt
// zero means "next tick".
func (p *fakeProvider) addFolder(name, parentID string, createdAt time.Time) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if createdAt.IsZero() {
		createdAt = p.tick()
	}
	id := p.newID("folder")
	p.nodes[id] = &fakeNode{id: id, name: name, parent: parentID, folder: true, createdAt: createdAt}
	return id
}

func (p *fakeProvider) ListChildren(ctx context.Context, parentID string, filter storage.ListFilter) ([]storage.Entry, error) {
	p.mu.Lock()
	p.calls["ListChildren"]++
	if p.listErr != nil {
		p.mu.Unlock()
		return nil, p.listErr
	}

	var out []storage.Entry
	for _, n := range p.nodes {
		if n.parent != parentID || n.trashed {
			continue
		}
		if filter.FoldersOnly && !n.folder {
			continue
		}
		if filter.Name != "" && n.name != filter.Name {
			continue
		}
		out = append(out, storage.Entry{
			ID:        n.id,
			Name:      n.name,
			MimeType:  n.mimeType,
			Size:      n.size,
			CreatedAt: n.createdAt,
			IsFolder:  n.folder,
		})
	}
	// Provider contract: ordered by creation time.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	delay := p.listDelay
	p.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return out, nil
}

func (p *fakeProvider) CreateFolder(ctx context.Context, name, parentID string) (storage.FolderRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["CreateFolder"]++

	id := p.newID("folder")
	createdAt := p.tick()
	p.nodes[id] = &fakeNode{id: id, name: name, parent: parentID, folder: true, createdAt: createdAt}

	// Simulated timeout: the node exists server-side but the caller sees
	// an error, like a real create whose response was lost.
	if err := p.createErr[name]; err != nil {
		delete(p.createErr, name)
		return storage.FolderRef{}, err
	}
	return storage.FolderRef{ID: id, Name: name, CreatedAt: createdAt}, nil
}

func (p *fakeProvider) CreateFile(ctx context.Context, name, parentID string, data []byte, mimeType string) (storage.FileRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls["CreateFile"]++

	id := p.newID("file")
	createdAt := p.tick()
	p.nodes[id] = &fakeNode{
		id: id, name: name, parent: parentID,
		mimeType: mimeType, size: int64(len(data)), createdAt: createdAt,
	}
	return storage.FileRef{ID: id, Name: name, MimeType: mimeType, Size: int64(len(data)), CreatedAt: createdAt}, nil
}

func (p *fakeProvider) MoveChild(ctx context.Context, childID, fromParentID, toParentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[childID]
	if !ok || n.parent != fromParentID {
		return errors.New("child not found under parent")
	}
	n.parent = toParentID
	return nil
}

func (p *fakeProvider) Trash(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.nodes[id]
	if !ok {
		return errors.New("node not found")
	}
	n.trashed = true
	return nil
}

func (p *fakeProvider) Share(ctx context.Context, id, email string, role storage.Role, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.perms[id] = append(p.perms[id], storage.Permission{
		ID:           p.newID("perm"),
		EmailAddress: email,
		Role:         string(role),
		Type:         "user",
	})
	return nil
}

func (p *fakeProvider) ListPermissions(ctx context.Context, id string) ([]storage.Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]storage.Permission(nil), p.perms[id]...), nil
}

func (p *fakeProvider) DeletePermission(ctx context.Context, id, permissionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	perms := p.perms[id]
	for i, perm := range perms {
		if perm.ID == permissionID {
			p.perms[id] = append(perms[:i], perms[i+1:]...)
			return nil
		}
	}
	return errors.New("permission not found")
}

var _ storage.Provider = (*fakeProvider)(nil)

func listFoldersOnly() storage.ListFilter {
	return storage.ListFilter{FoldersOnly: true}
}

// folderCount counts live folders named name under parentID.
func (p *fakeProvider) folderCount(parentID, name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, n := range p.nodes {
		if n.folder && !n.trashed && n.parent == parentID && n.name == name {
			count++
		}
	}
	return count
}

// pathOf reconstructs a node's "/"-joined path from the root.
func (p *fakeProvider) pathOf(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var parts []string
	for id != "" && id != "root" {
		n, ok := p.nodes[id]
		if !ok {
			return ""
		}
		parts = append([]string{n.name}, parts...)
		id = n.parent
	}
	return strings.Join(parts, "/")
}
