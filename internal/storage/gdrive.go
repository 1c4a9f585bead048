package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveClient mirrors rendered transcript files into a Google Drive folder.
// The integration is optional; jobs succeed without it.
type DriveClient struct {
	service    *drive.Service
	folderName string
	folderID   string
}

// NewDriveClient builds a Drive client from a credentials file and a cached
// OAuth token. There is no interactive flow here; the token file must exist
// (provisioned out of band).
func NewDriveClient(credentialsFile, tokenFile, folderName string) (*DriveClient, error) {
	ctx := context.Background()

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %v", err)
	}

	config, err := google.ConfigFromJSON(b, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %v", err)
	}

	tok, err := tokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read oauth token: %v", err)
	}

	srv, err := drive.NewService(ctx, option.WithHTTPClient(config.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %v", err)
	}

	dc := &DriveClient{
		service:    srv,
		folderName: folderName,
	}
	if err := dc.ensureFolder(); err != nil {
		return nil, err
	}
	return dc, nil
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// ensureFolder finds or creates the root transcripts folder.
func (dc *DriveClient) ensureFolder() error {
	query := fmt.Sprintf("name='%s' and mimeType='application/vnd.google-apps.folder' and trashed=false",
		dc.folderName)

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id, name)").Do()
	if err != nil {
		return fmt.Errorf("unable to search for folder: %v", err)
	}

	if len(r.Files) > 0 {
		dc.folderID = r.Files[0].Id
		return nil
	}

	folder := &drive.File{
		Name:     dc.folderName,
		MimeType: "application/vnd.google-apps.folder",
	}
	file, err := dc.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return fmt.Errorf("unable to create folder: %v", err)
	}

	dc.folderID = file.Id
	return nil
}

// UploadFile uploads one rendered transcript file into a per-job subfolder
// and returns a shareable link.
func (dc *DriveClient) UploadFile(jobID, localPath, name string) (string, error) {
	folderID, err := dc.findOrCreateFolder(jobID, dc.folderID)
	if err != nil {
		return "", err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for upload: %v", localPath, err)
	}
	defer f.Close()

	meta := &drive.File{
		Name:    name,
		Parents: []string{folderID},
	}
	created, err := dc.service.Files.Create(meta).Media(f).Fields("id").Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %v", name, err)
	}

	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", created.Id), nil
}

// UploadJobFiles uploads every file with retry and backoff, returning the
// links of successful uploads. Individual upload failures are returned for
// logging but do not abort the remaining files.
func (dc *DriveClient) UploadJobFiles(jobID string, paths map[string]string) (map[string]string, error) {
	links := make(map[string]string, len(paths))
	var lastErr error

	for name, path := range paths {
		var url string
		var err error
		for attempt := 1; attempt <= 3; attempt++ {
			url, err = dc.UploadFile(jobID, path, name)
			if err == nil {
				links[name] = url
				break
			}
			if attempt < 3 {
				time.Sleep(time.Duration(attempt*attempt) * time.Second)
			}
		}
		if err != nil {
			lastErr = err
		}
	}
	return links, lastErr
}

// findOrCreateFolder finds or creates a folder with the given parent.
func (dc *DriveClient) findOrCreateFolder(name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and mimeType='application/vnd.google-apps.folder' and trashed=false",
		name, parentID)

	r, err := dc.service.Files.List().Q(query).Spaces("drive").Fields("files(id)").Do()
	if err != nil {
		return "", err
	}
	if len(r.Files) > 0 {
		return r.Files[0].Id, nil
	}

	folder := &drive.File{
		Name:     name,
		MimeType: "application/vnd.google-apps.folder",
		Parents:  []string{parentID},
	}
	file, err := dc.service.Files.Create(folder).Fields("id").Do()
	if err != nil {
		return "", err
	}
	return file.Id, nil
}
