package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveProvider talks to Google Drive v3 with the caller's delegated OAuth
// token. One instance per request; the underlying HTTP client is cheap and
// the token belongs to a single user.
type DriveProvider struct {
	svc    *drive.Service
	rootID string
}

// NewDriveProvider builds a Drive client from a delegated access token.
// rootID is the well-known folder everything is filed under
// (MAIN_DRIVE_FOLDER_ID in deployment).
func NewDriveProvider(ctx context.Context, accessToken, rootID string) (*DriveProvider, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("drive access token is required")
	}
	if strings.TrimSpace(rootID) == "" {
		return nil, fmt.Errorf("drive root folder id is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, err
	}
	return &DriveProvider{svc: svc, rootID: rootID}, nil
}

func (p *DriveProvider) Root() string {
	return p.rootID
}

// escapeQueryTerm escapes a value interpolated into a Drive `q` expression.
// Drive query strings are single-quoted; a name containing a quote or a
// backslash would otherwise change the query's meaning.
func escapeQueryTerm(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}

func childrenQuery(parentID string, filter ListFilter) string {
	var b strings.Builder
	fmt.Fprintf(&b, "'%s' in parents and trashed = false", escapeQueryTerm(parentID))
	if filter.Name != "" {
		fmt.Fprintf(&b, " and name = '%s'", escapeQueryTerm(filter.Name))
	}
	if filter.FoldersOnly {
		fmt.Fprintf(&b, " and mimeType = '%s'", folderMimeType)
	}
	return b.String()
}

func parseDriveTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p *DriveProvider) ListChildren(ctx context.Context, parentID string, filter ListFilter) ([]Entry, error) {
	var entries []Entry
	call := p.svc.Files.List().
		Q(childrenQuery(parentID, filter)).
		Fields("nextPageToken, files(id, name, mimeType, size, createdTime)").
		OrderBy("createdTime").
		PageSize(200).
		Context(ctx)

	err := call.Pages(ctx, func(page *drive.FileList) error {
		for _, f := range page.Files {
			entries = append(entries, Entry{
				ID:        f.Id,
				Name:      f.Name,
				MimeType:  f.MimeType,
				Size:      f.Size,
				CreatedAt: parseDriveTime(f.CreatedTime),
				IsFolder:  f.MimeType == folderMimeType,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *DriveProvider) CreateFolder(ctx context.Context, name, parentID string) (FolderRef, error) {
	f := &drive.File{
		Name:     name,
		Parents:  []string{parentID},
		MimeType: folderMimeType,
	}
	created, err := p.svc.Files.Create(f).
		Fields("id, name, createdTime").
		Context(ctx).
		Do()
	if err != nil {
		return FolderRef{}, err
	}
	return FolderRef{
		ID:        created.Id,
		Name:      created.Name,
		CreatedAt: parseDriveTime(created.CreatedTime),
	}, nil
}

func (p *DriveProvider) CreateFile(ctx context.Context, name, parentID string, data []byte, mimeType string) (FileRef, error) {
	f := &drive.File{
		Name:    name,
		Parents: []string{parentID},
	}
	created, err := p.svc.Files.Create(f).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id, name, size, mimeType, createdTime, webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return FileRef{}, err
	}
	return FileRef{
		ID:          created.Id,
		Name:        created.Name,
		MimeType:    created.MimeType,
		Size:        created.Size,
		CreatedAt:   parseDriveTime(created.CreatedTime),
		WebViewLink: created.WebViewLink,
	}, nil
}

func (p *DriveProvider) MoveChild(ctx context.Context, childID, fromParentID, toParentID string) error {
	_, err := p.svc.Files.Update(childID, &drive.File{}).
		AddParents(toParentID).
		RemoveParents(fromParentID).
		Fields("id, parents").
		Context(ctx).
		Do()
	return err
}

func (p *DriveProvider) Trash(ctx context.Context, id string) error {
	_, err := p.svc.Files.Update(id, &drive.File{Trashed: true}).
		Fields("id").
		Context(ctx).
		Do()
	return err
}

func (p *DriveProvider) Share(ctx context.Context, id, email string, role Role, message string) error {
	perm := &drive.Permission{
		Type:         "user",
		Role:         string(role),
		EmailAddress: email,
	}
	call := p.svc.Permissions.Create(id, perm).
		SendNotificationEmail(true).
		Context(ctx)
	if message != "" {
		call = call.EmailMessage(message)
	}
	_, err := call.Do()
	return err
}

func (p *DriveProvider) ListPermissions(ctx context.Context, id string) ([]Permission, error) {
	res, err := p.svc.Permissions.List(id).
		Fields("permissions(id, emailAddress, role, type, displayName)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	perms := make([]Permission, 0, len(res.Permissions))
	for _, pm := range res.Permissions {
		perms = append(perms, Permission{
			ID:           pm.Id,
			EmailAddress: pm.EmailAddress,
			Role:         pm.Role,
			Type:         pm.Type,
			DisplayName:  pm.DisplayName,
		})
	}
	return perms, nil
}

func (p *DriveProvider) DeletePermission(ctx context.Context, id, permissionID string) error {
	return p.svc.Permissions.Delete(id, permissionID).Context(ctx).Do()
}
