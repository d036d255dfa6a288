// Package gdrive implements storage.Storage over a Google Drive folder
// using service-account credentials.
package gdrive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"twiper/internal/logging"
	"twiper/internal/storage"
)

type Config struct {
	// Inline service-account JSON takes priority over the file path.
	ServiceAccountJSON string
	ServiceAccountFile string

	// FolderID is preferred; FolderName is a fallback lookup.
	FolderID   string
	FolderName string

	// DriveID enables shared-drive listing params.
	DriveID string

	HardDelete bool
}

type Client struct {
	svc      *drive.Service
	cfg      Config
	folderID string
	log      *logging.Logger
}

func New(ctx context.Context, cfg Config, log *logging.Logger) (*Client, error) {
	var saJSON []byte
	switch {
	case cfg.ServiceAccountJSON != "":
		saJSON = []byte(cfg.ServiceAccountJSON)
	case cfg.ServiceAccountFile != "":
		b, err := os.ReadFile(cfg.ServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		saJSON = b
	default:
		return nil, fmt.Errorf("no Google Drive credentials configured")
	}

	conf, err := google.JWTConfigFromJSON(saJSON, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	svc, err := drive.NewService(ctx, option.WithHTTPClient(conf.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("init drive service: %w", err)
	}

	log.Infof("Google Drive initialized (folder_id=%s, folder_name=%s)", cfg.FolderID, cfg.FolderName)
	return &Client{svc: svc, cfg: cfg, folderID: cfg.FolderID, log: log}, nil
}

func (c *Client) Source() string { return "GDRIVE" }

func (c *Client) sharedDrive() bool { return c.cfg.DriveID != "" }

func (c *Client) listCall(q string) *drive.FilesListCall {
	call := c.svc.Files.List().Q(q).PageSize(1000).
		Fields("nextPageToken, files(id, name, mimeType, parents, createdTime, modifiedTime, size)")
	if c.sharedDrive() {
		call = call.SupportsAllDrives(true).IncludeItemsFromAllDrives(true).
			DriveId(c.cfg.DriveID).Corpora("drive")
	} else {
		call = call.Corpora("user")
	}
	return call
}

// getFolderID resolves and caches the root folder id, looking it up by
// name when no explicit id is configured.
func (c *Client) getFolderID(ctx context.Context) (string, error) {
	if c.folderID != "" {
		return c.folderID, nil
	}
	q := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.folder' and trashed = false", c.cfg.FolderName)
	resp, err := c.listCall(q).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("folder lookup: %w", err)
	}
	if len(resp.Files) == 0 {
		return "", fmt.Errorf("drive folder %q: %w", c.cfg.FolderName, storage.ErrNotFound)
	}
	c.folderID = resp.Files[0].Id
	return c.folderID, nil
}

func (c *Client) children(ctx context.Context, parentID string) ([]*drive.File, error) {
	var items []*drive.File
	pageToken := ""
	for {
		call := c.listCall(fmt.Sprintf("'%s' in parents and trashed = false", parentID)).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("list children of %s: %w", parentID, err)
		}
		items = append(items, resp.Files...)
		pageToken = resp.NextPageToken
		if pageToken == "" {
			return items, nil
		}
	}
}

// walkTree returns every file under the root folder, including nested
// subfolders.
func (c *Client) walkTree(ctx context.Context) ([]*drive.File, error) {
	rootID, err := c.getFolderID(ctx)
	if err != nil {
		return nil, err
	}
	var files []*drive.File
	queue := []string{rootID}
	seen := map[string]bool{}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		if seen[pid] {
			continue
		}
		seen[pid] = true
		children, err := c.children(ctx, pid)
		if err != nil {
			return nil, err
		}
		for _, item := range children {
			if item.MimeType == "application/vnd.google-apps.folder" {
				queue = append(queue, item.Id)
				continue
			}
			files = append(files, item)
		}
	}
	return files, nil
}

func toInfo(f *drive.File) storage.FileInfo {
	ts := f.ModifiedTime
	if ts == "" {
		ts = f.CreatedTime
	}
	mod, _ := time.Parse(time.RFC3339, ts)
	return storage.FileInfo{ID: f.Id, Name: f.Name, Size: f.Size, Modified: mod}
}

func sortNewestFirst(infos []storage.FileInfo) {
	sort.SliceStable(infos, func(i, j int) bool { return infos[i].Modified.After(infos[j].Modified) })
}

func (c *Client) ListByName(ctx context.Context, name string) ([]storage.FileInfo, error) {
	files, err := c.walkTree(ctx)
	if err != nil {
		return nil, err
	}
	var out []storage.FileInfo
	for _, f := range files {
		if f.Name == name {
			out = append(out, toInfo(f))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (c *Client) ListVideos(ctx context.Context, limit int) ([]storage.FileInfo, error) {
	files, err := c.walkTree(ctx)
	if err != nil {
		return nil, err
	}
	var out []storage.FileInfo
	for _, f := range files {
		if storage.IsVideoName(f.Name) {
			out = append(out, toInfo(f))
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Client) FindByName(ctx context.Context, name string) (*storage.FileInfo, error) {
	q := fmt.Sprintf("name = '%s' and trashed = false", name)
	resp, err := c.listCall(q).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if len(resp.Files) == 0 {
		return nil, storage.ErrNotFound
	}
	info := toInfo(resp.Files[0])
	return &info, nil
}

func (c *Client) DownloadByName(ctx context.Context, name, destDir string) (string, error) {
	matches, err := c.ListByName(ctx, name)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", storage.ErrNotFound
	}
	return c.downloadByID(ctx, matches[0].ID, matches[0].Name, destDir)
}

func (c *Client) DownloadVideo(ctx context.Context, destDir, name string) (string, storage.DeleteToken, error) {
	var chosen *storage.FileInfo
	if name != "" {
		info, err := c.FindByName(ctx, name)
		if err != nil {
			return "", storage.DeleteToken{}, fmt.Errorf("drive file %q: %w", name, err)
		}
		chosen = info
	} else {
		videos, err := c.ListVideos(ctx, 1)
		if err != nil {
			return "", storage.DeleteToken{}, err
		}
		if len(videos) == 0 {
			return "", storage.DeleteToken{}, fmt.Errorf("no video found in Drive: %w", storage.ErrNotFound)
		}
		chosen = &videos[0]
	}

	local, err := c.downloadByID(ctx, chosen.ID, chosen.Name, destDir)
	if err != nil {
		return "", storage.DeleteToken{}, err
	}
	return local, storage.DeleteByIDAndName(chosen.ID, chosen.Name), nil
}

// DownloadPublicURL downloads a file referenced by a Drive share URL,
// bypassing the folder listing.
func (c *Client) DownloadPublicURL(ctx context.Context, shareURL, destDir string) (string, storage.DeleteToken, error) {
	fileID := ExtractFileID(shareURL)
	if fileID == "" {
		return "", storage.DeleteToken{}, fmt.Errorf("invalid Google Drive URL: %w", storage.ErrNotFound)
	}
	local, err := c.downloadByID(ctx, fileID, "", destDir)
	if err != nil {
		return "", storage.DeleteToken{}, err
	}
	return local, storage.DeleteByID(fileID), nil
}

func (c *Client) downloadByID(ctx context.Context, fileID, name, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	if name == "" {
		f, err := c.svc.Files.Get(fileID).SupportsAllDrives(c.sharedDrive()).Fields("id, name").Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("drive file metadata: %w", err)
		}
		name = f.Name
	}

	resp, err := c.svc.Files.Get(fileID).SupportsAllDrives(c.sharedDrive()).Context(ctx).Download()
	if err != nil {
		return "", fmt.Errorf("drive download: %w", err)
	}
	defer resp.Body.Close()

	local := filepath.Join(destDir, name)
	out, err := os.Create(local)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(local)
		return "", fmt.Errorf("drive download write: %w", err)
	}
	c.log.Infof("downloaded Drive file to %s", local)
	return local, nil
}

func (c *Client) UploadOrReplace(ctx context.Context, localPath, remoteName string) error {
	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}
	folderID, err := c.getFolderID(ctx)
	if err != nil {
		return err
	}

	// Remove same-named files first. A permission failure here must not
	// block the create.
	matches, err := c.ListByName(ctx, remoteName)
	if err == nil {
		for _, m := range matches {
			if derr := c.svc.Files.Delete(m.ID).SupportsAllDrives(c.sharedDrive()).Context(ctx).Do(); derr != nil {
				c.log.Warnf("skipping delete of existing file id=%s: %v", m.ID, derr)
			}
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	meta := &drive.File{Name: remoteName, Parents: []string{folderID}}
	if _, err := c.svc.Files.Create(meta).Media(f).SupportsAllDrives(c.sharedDrive()).Context(ctx).Do(); err != nil {
		return fmt.Errorf("drive upload %s: %w", localPath, err)
	}
	c.log.Infof("uploaded file to Drive: %s", remoteName)
	return nil
}

func (c *Client) Delete(ctx context.Context, token storage.DeleteToken) {
	fileID := token.ID()
	if fileID == "" && token.Name() != "" {
		if info, err := c.FindByName(ctx, token.Name()); err == nil {
			fileID = info.ID
		}
	}
	if fileID == "" {
		c.log.Warnf("cannot delete Drive file: no id for name=%q", token.Name())
		return
	}
	var err error
	if c.cfg.HardDelete {
		err = c.svc.Files.Delete(fileID).SupportsAllDrives(c.sharedDrive()).Context(ctx).Do()
	} else {
		_, err = c.svc.Files.Update(fileID, &drive.File{Trashed: true}).SupportsAllDrives(c.sharedDrive()).Context(ctx).Do()
	}
	if err != nil {
		c.log.Warnf("failed to delete Drive file id=%s: %v", fileID, err)
		return
	}
	c.log.Infof("deleted Drive file (id=%s, hard=%t)", fileID, c.cfg.HardDelete)
}

var fileIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`),
	regexp.MustCompile(`/d/([a-zA-Z0-9_-]+)`),
}

// ExtractFileID pulls the file id out of the common Drive share URL
// shapes; empty when the URL is not recognized.
func ExtractFileID(shareURL string) string {
	for _, re := range fileIDPatterns {
		if m := re.FindStringSubmatch(shareURL); m != nil {
			return m[1]
		}
	}
	return ""
}
