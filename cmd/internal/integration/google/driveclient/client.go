// Package driveclient uploads generated report artifacts to a shared Drive
// folder and hands back a shareable link.
package driveclient

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

type Uploader interface {
	Upload(ctx context.Context, name, mimeType string, content io.Reader) (string, error)
}

type GoogleDriveClient struct {
	service  *drive.Service
	folderID string
	timeout  time.Duration
}

func NewGoogleDriveClient(ctx context.Context, credentialsJSON []byte, folderID string, timeout time.Duration) (*GoogleDriveClient, error) {
	creds, err := google.CredentialsFromJSON(ctx, credentialsJSON, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("failed to load google credentials: %w", err)
	}

	service, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	return &GoogleDriveClient{service: service, folderID: folderID, timeout: timeout}, nil
}

// Upload stores the file under the configured folder, makes it readable by
// anyone with the link, and returns the webViewLink.
func (g *GoogleDriveClient) Upload(ctx context.Context, name, mimeType string, content io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	meta := &drive.File{Name: name}
	if g.folderID != "" {
		meta.Parents = []string{g.folderID}
	}

	created, err := g.service.Files.Create(meta).
		Media(content, googleapi.ContentType(mimeType)).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive upload of %s failed: %w", name, err)
	}

	_, err = g.service.Permissions.Create(created.Id, &drive.Permission{
		Type: "anyone",
		Role: "reader",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive share of %s failed: %w", name, err)
	}

	return created.WebViewLink, nil
}
