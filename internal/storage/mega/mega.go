// Package mega implements storage.Storage over a MEGA account folder.
package mega

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	mega "github.com/t3rm1n4l/go-mega"

	"twiper/internal/logging"
	"twiper/internal/storage"
)

type Client struct {
	m          *mega.Mega
	folder     string
	hardDelete bool
	log        *logging.Logger
}

// New logs in to MEGA and scopes all operations to the named folder
// (account root when the folder is not found).
func New(email, password, folder string, hardDelete bool, log *logging.Logger) (*Client, error) {
	m := mega.New()
	if err := m.Login(email, password); err != nil {
		return nil, fmt.Errorf("mega login: %w", err)
	}
	log.Infof("logged in to MEGA. folder=%s", folder)
	return &Client{m: m, folder: folder, hardDelete: hardDelete, log: log}, nil
}

func (c *Client) Source() string { return "MEGA" }

// folderNode finds the configured folder anywhere in the account tree.
func (c *Client) folderNode() *mega.Node {
	root := c.m.FS.GetRoot()
	queue := []*mega.Node{root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		children, err := c.m.FS.GetChildren(n)
		if err != nil {
			continue
		}
		for _, child := range children {
			if child.GetType() != mega.FOLDER {
				continue
			}
			if child.GetName() == c.folder {
				return child
			}
			queue = append(queue, child)
		}
	}
	c.log.Warnf("MEGA folder %q not found; using account root", c.folder)
	return root
}

// walkFiles collects every file under the configured folder, including
// nested subfolders.
func (c *Client) walkFiles() []*mega.Node {
	var files []*mega.Node
	queue := []*mega.Node{c.folderNode()}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		children, err := c.m.FS.GetChildren(n)
		if err != nil {
			c.log.Warnf("MEGA list children failed: %v", err)
			continue
		}
		for _, child := range children {
			switch child.GetType() {
			case mega.FILE:
				files = append(files, child)
			case mega.FOLDER:
				queue = append(queue, child)
			}
		}
	}
	return files
}

func sortNewestFirst(nodes []*mega.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].GetTimeStamp().After(nodes[j].GetTimeStamp())
	})
}

func toInfo(n *mega.Node) storage.FileInfo {
	return storage.FileInfo{
		ID:       n.GetHash(),
		Name:     n.GetName(),
		Size:     n.GetSize(),
		Modified: n.GetTimeStamp(),
	}
}

func (c *Client) nodesByName(name string) []*mega.Node {
	var matches []*mega.Node
	for _, n := range c.walkFiles() {
		if n.GetName() == name {
			matches = append(matches, n)
		}
	}
	sortNewestFirst(matches)
	return matches
}

func (c *Client) ListByName(ctx context.Context, name string) ([]storage.FileInfo, error) {
	var out []storage.FileInfo
	for _, n := range c.nodesByName(name) {
		out = append(out, toInfo(n))
	}
	return out, nil
}

func (c *Client) ListVideos(ctx context.Context, limit int) ([]storage.FileInfo, error) {
	var videos []*mega.Node
	for _, n := range c.walkFiles() {
		if storage.IsVideoName(n.GetName()) {
			videos = append(videos, n)
		}
	}
	sortNewestFirst(videos)
	if limit > 0 && len(videos) > limit {
		videos = videos[:limit]
	}
	out := make([]storage.FileInfo, 0, len(videos))
	for _, n := range videos {
		out = append(out, toInfo(n))
	}
	return out, nil
}

func (c *Client) FindByName(ctx context.Context, name string) (*storage.FileInfo, error) {
	matches := c.nodesByName(name)
	if len(matches) == 0 {
		return nil, storage.ErrNotFound
	}
	info := toInfo(matches[0])
	return &info, nil
}

func (c *Client) DownloadByName(ctx context.Context, name, destDir string) (string, error) {
	matches := c.nodesByName(name)
	if len(matches) == 0 {
		return "", storage.ErrNotFound
	}
	return c.download(matches[0], destDir)
}

func (c *Client) DownloadVideo(ctx context.Context, destDir, name string) (string, storage.DeleteToken, error) {
	var node *mega.Node
	if name != "" {
		matches := c.nodesByName(name)
		if len(matches) == 0 {
			return "", storage.DeleteToken{}, fmt.Errorf("MEGA file %q: %w", name, storage.ErrNotFound)
		}
		node = matches[0]
	} else {
		videos := c.walkFiles()
		sortNewestFirst(videos)
		for _, n := range videos {
			if storage.IsVideoName(n.GetName()) {
				node = n
				break
			}
		}
		if node == nil {
			return "", storage.DeleteToken{}, fmt.Errorf("no video files in MEGA folder: %w", storage.ErrNotFound)
		}
	}

	local, err := c.download(node, destDir)
	if err != nil {
		return "", storage.DeleteToken{}, err
	}
	return local, storage.DeleteByIDAndName(node.GetHash(), node.GetName()), nil
}

func (c *Client) download(node *mega.Node, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	local := filepath.Join(destDir, node.GetName())
	if err := c.m.DownloadFile(node, local, nil); err != nil {
		return "", fmt.Errorf("mega download %s: %w", node.GetName(), err)
	}
	c.log.Infof("downloaded MEGA file: %s -> %s", node.GetName(), local)
	return local, nil
}

func (c *Client) UploadOrReplace(ctx context.Context, localPath, remoteName string) error {
	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}
	parent := c.folderNode()

	// Remove same-named remote files first; a failure here must not block
	// the create.
	for _, dupe := range c.nodesByName(remoteName) {
		if err := c.m.Delete(dupe, false); err != nil {
			if err := c.m.Delete(dupe, true); err != nil {
				c.log.Warnf("failed to remove duplicate %s (handle=%s): %v", remoteName, dupe.GetHash(), err)
				continue
			}
		}
		c.log.Infof("removed duplicate remote file: %s (handle=%s)", remoteName, dupe.GetHash())
	}

	if _, err := c.m.UploadFile(localPath, parent, remoteName, nil); err != nil {
		return fmt.Errorf("mega upload %s: %w", localPath, err)
	}
	c.log.Infof("uploaded file to MEGA: %s", localPath)
	return nil
}

func (c *Client) Delete(ctx context.Context, token storage.DeleteToken) {
	if token.IsZero() {
		return
	}
	var node *mega.Node
	if token.ID() != "" {
		if n := c.m.FS.HashLookup(token.ID()); n != nil {
			node = n
		}
	}
	if node == nil && token.Name() != "" {
		if matches := c.nodesByName(token.Name()); len(matches) > 0 {
			node = matches[0]
		}
	}
	if node == nil {
		c.log.Warnf("cannot delete MEGA node: no node for handle=%q name=%q", token.ID(), token.Name())
		return
	}
	if err := c.m.Delete(node, c.hardDelete); err != nil {
		c.log.Warnf("failed to delete MEGA node handle=%s: %v", node.GetHash(), err)
		return
	}
	if c.hardDelete {
		c.log.Infof("destroyed MEGA file (handle=%s)", node.GetHash())
	} else {
		c.log.Infof("moved MEGA file to trash (handle=%s)", node.GetHash())
	}
}
