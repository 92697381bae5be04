package filing

import (
	"context"
	"sort"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/docs_backend/storage"
)

// TreeNode is one node of a projected folder tree. Both projection modes
// produce this shape so callers can switch between them transparently.
type TreeNode struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      string      `json:"type"` // "folder" or "file"
	MimeType  string      `json:"mimeType,omitempty"`
	Size      int64       `json:"size,omitempty"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`
	FileCount int         `json:"fileCount,omitempty"`
	Children  []*TreeNode `json:"children,omitempty"`
}

// DefaultMaxTreeDepth bounds live-mode recursion. The planned hierarchy is
// at most entity/category/year/month deep; anything past the bound is a
// corrupted remote structure and is not walked.
const DefaultMaxTreeDepth = 5

// Projector reconstructs a navigable tree for one entity, either from the
// provider's current contents ("live") or from the persisted metadata
// records ("metadata"). The two views may diverge transiently; that is the
// documented eventual-consistency property, not a defect.
type Projector struct {
	provider storage.Provider
	store    MetadataStore
	maxDepth int
}

func NewProjector(provider storage.Provider, store MetadataStore, maxDepth int) *Projector {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxTreeDepth
	}
	return &Projector{provider: provider, store: store, maxDepth: maxDepth}
}

// Live projects the tree by walking the remote store starting at the
// entity's folder.
func (p *Projector) Live(ctx context.Context, entityName string) (*TreeNode, error) {
	entityName = strings.TrimSpace(entityName)
	if entityName == "" {
		return nil, invalidf("entity name is required")
	}

	matches, err := p.provider.ListChildren(ctx, p.provider.Root(), storage.ListFilter{
		Name:        entityName,
		FoldersOnly: true,
	})
	if err != nil {
		return nil, storageErr("find entity folder", err)
	}
	if len(matches) == 0 {
		return nil, invalidf("entity %q has no folder", entityName)
	}

	root := &TreeNode{
		ID:        matches[0].ID,
		Name:      matches[0].Name,
		Type:      "folder",
		CreatedAt: matches[0].CreatedAt,
	}
	if err := p.walk(ctx, root, 1); err != nil {
		return nil, err
	}
	root.FileCount = countFiles(root)
	sortTree(root)
	return root, nil
}

func (p *Projector) walk(ctx context.Context, node *TreeNode, depth int) error {
	if depth > p.maxDepth {
		return nil
	}
	children, err := p.provider.ListChildren(ctx, node.ID, storage.ListFilter{})
	if err != nil {
		return storageErr("list children of "+node.ID, err)
	}
	for _, c := range children {
		child := &TreeNode{
			ID:        c.ID,
			Name:      c.Name,
			MimeType:  c.MimeType,
			Size:      c.Size,
			CreatedAt: c.CreatedAt,
		}
		if c.IsFolder {
			child.Type = "folder"
			if err := p.walk(ctx, child, depth+1); err != nil {
				return err
			}
			child.FileCount = countFiles(child)
		} else {
			child.Type = "file"
		}
		node.Children = append(node.Children, child)
	}
	return nil
}

// Metadata projects the tree from persisted records only, splitting each
// record's FilePath. No remote calls.
func (p *Projector) Metadata(ctx context.Context, entityName string) (*TreeNode, error) {
	entityName = strings.TrimSpace(entityName)
	if entityName == "" {
		return nil, invalidf("entity name is required")
	}

	docs, err := p.store.DocumentsByEntity(ctx, entityName, 0)
	if err != nil {
		return nil, err
	}

	root := &TreeNode{Name: entityName, Type: "folder"}
	for _, doc := range docs {
		parts := strings.Split(doc.FilePath, "/")
		if len(parts) < 2 || parts[0] != entityName {
			// A record whose path does not start at the entity segment is
			// malformed; skip it rather than fail the whole projection.
			continue
		}

		node := root
		for _, folderName := range parts[1 : len(parts)-1] {
			node = childFolder(node, folderName)
		}
		node.Children = append(node.Children, &TreeNode{
			ID:        doc.ID,
			Name:      parts[len(parts)-1],
			Type:      "file",
			MimeType:  doc.MimeType,
			Size:      doc.FileSize,
			CreatedAt: doc.CreatedAt,
		})
	}

	setFileCounts(root)
	sortTree(root)
	return root, nil
}

func childFolder(parent *TreeNode, name string) *TreeNode {
	for _, c := range parent.Children {
		if c.Type == "folder" && c.Name == name {
			return c
		}
	}
	c := &TreeNode{Name: name, Type: "folder"}
	parent.Children = append(parent.Children, c)
	return c
}

func countFiles(node *TreeNode) int {
	count := 0
	for _, c := range node.Children {
		if c.Type == "file" {
			count++
		} else {
			count += c.FileCount
		}
	}
	return count
}

func setFileCounts(node *TreeNode) {
	for _, c := range node.Children {
		if c.Type == "folder" {
			setFileCounts(c)
		}
	}
	node.FileCount = countFiles(node)
}

// sortTree orders children folders-first, then by name, so both projection
// modes return the same ordering.
func sortTree(node *TreeNode) {
	sort.SliceStable(node.Children, func(i, j int) bool {
		a, b := node.Children[i], node.Children[j]
		if a.Type != b.Type {
			return a.Type == "folder"
		}
		return a.Name < b.Name
	})
	for _, c := range node.Children {
		if c.Type == "folder" {
			sortTree(c)
		}
	}
}
