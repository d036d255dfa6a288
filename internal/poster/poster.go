// Package poster decides what to post, drives media upload and tweet
// creation, and reconciles the posted-item ledger.
package poster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"twiper/internal/ledger"
	"twiper/internal/logging"
	"twiper/internal/storage"
)

// ErrNoCandidate means remote-mode selection found no unposted video.
var ErrNoCandidate = errors.New("no unposted remote video available")

// MediaAPI is the slice of the X client the orchestrator needs.
type MediaAPI interface {
	UploadVideo(ctx context.Context, path string) (string, error)
	UploadImage(ctx context.Context, path string) (string, error)
	CreateTweet(ctx context.Context, text string, mediaIDs []string) (string, error)
}

// PublicURLDownloader is implemented by storage adapters that can fetch
// a provider share URL directly, bypassing the account listing.
type PublicURLDownloader interface {
	DownloadPublicURL(ctx context.Context, shareURL, destDir string) (string, storage.DeleteToken, error)
}

var imageExts = []string{".jpg", ".jpeg", ".png", ".gif"}

type Poster struct {
	x          MediaAPI
	store      storage.Storage // nil in local-only mode
	ledger     ledger.Ledger
	publicURL  string
	log        *logging.Logger
	httpClient *http.Client // fallback fetch for public URLs
}

func New(x MediaAPI, store storage.Storage, led ledger.Ledger, publicURL string, log *logging.Logger) *Poster {
	return &Poster{
		x:          x,
		store:      store,
		ledger:     led,
		publicURL:  publicURL,
		log:        log,
		httpClient: http.DefaultClient,
	}
}

// scanDir returns media files by kind, each list sorted by path. Only
// the directory itself is scanned, not subdirectories.
func scanDir(dir string) (videos, images []string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(names)

	videos = lo.Filter(names, func(p string, _ int) bool {
		return strings.EqualFold(filepath.Ext(p), ".mp4")
	})
	images = lo.Filter(names, func(p string, _ int) bool {
		return lo.SomeBy(imageExts, func(ext string) bool { return strings.EqualFold(filepath.Ext(p), ext) })
	})
	return videos, images
}

// PostFromDir posts one tweet from the media in dir. A video always wins
// over images: when any video is present only the first one is posted;
// otherwise up to four images go out as one multi-image tweet.
func (p *Poster) PostFromDir(ctx context.Context, dir string) (string, error) {
	videos, images := scanDir(dir)

	var (
		text     string
		mediaIDs []string
	)
	switch {
	case len(videos) > 0:
		text = CaptionForMedia(videos[0], dir)
		id, err := p.x.UploadVideo(ctx, videos[0])
		if err != nil {
			return "", err
		}
		mediaIDs = []string{id}
	case len(images) > 0:
		text = CaptionForMedia(images[0], dir)
		batch := images
		if len(batch) > 4 {
			batch = batch[:4]
		}
		for _, img := range batch {
			id, err := p.x.UploadImage(ctx, img)
			if err != nil {
				return "", err
			}
			mediaIDs = append(mediaIDs, id)
		}
	default:
		if txts := textFiles(dir); len(txts) > 0 {
			text = readTrimmed(txts[0])
		}
	}

	return p.x.CreateTweet(ctx, text, mediaIDs)
}

// PostMultipleFromDir posts each media file in dir as its own tweet, up
// to limit tweets, videos first. Posts are strictly sequential.
func (p *Poster) PostMultipleFromDir(ctx context.Context, dir string, limit int) ([]string, error) {
	videos, images := scanDir(dir)
	queue := append(append([]string{}, videos...), images...)

	p.log.Infof("preparing to post from dir: dir=%s total_media=%d limit=%d", dir, len(queue), limit)

	var tweetIDs []string
	for i, mediaPath := range queue {
		if i >= limit {
			break
		}
		text := CaptionForMedia(mediaPath, dir)

		var (
			mediaID string
			err     error
		)
		if strings.EqualFold(filepath.Ext(mediaPath), ".mp4") {
			mediaID, err = p.x.UploadVideo(ctx, mediaPath)
		} else {
			mediaID, err = p.x.UploadImage(ctx, mediaPath)
		}
		if err != nil {
			return tweetIDs, err
		}

		tweetID, err := p.x.CreateTweet(ctx, text, []string{mediaID})
		if err != nil {
			return tweetIDs, err
		}
		p.log.Infof("posted media %d/%d: %s -> tweet_id=%s", i+1, limit, mediaPath, tweetID)
		tweetIDs = append(tweetIDs, tweetID)
	}
	return tweetIDs, nil
}

// PostVideoFromRemote downloads one video from the configured remote
// storage, tweets it with its caption, then cleans up the remote and
// local copies. With a public-URL override the ledger check is skipped
// entirely (the listing cannot be enumerated).
func (p *Poster) PostVideoFromRemote(ctx context.Context, dataDir string) (string, error) {
	var (
		localPath    string
		token        storage.DeleteToken
		chosenHandle string
		chosenName   string
		err          error
	)

	if p.publicURL != "" {
		localPath, token, err = p.downloadPublicURL(ctx, dataDir)
		if err != nil {
			return "", err
		}
	} else {
		if p.store == nil {
			return "", fmt.Errorf("remote posting requires a storage backend")
		}
		candidates, err := p.store.ListVideos(ctx, 0)
		if err != nil {
			return "", fmt.Errorf("list remote videos: %w", err)
		}

		var chosen *storage.FileInfo
		for i := range candidates {
			c := &candidates[i]
			posted, err := p.ledger.IsPosted(ctx, p.store.Source(), c.ID, c.Name)
			if err != nil {
				return "", fmt.Errorf("ledger check: %w", err)
			}
			if !posted {
				chosen = c
				break
			}
		}
		if chosen == nil {
			return "", ErrNoCandidate
		}
		chosenHandle, chosenName = chosen.ID, chosen.Name
		p.log.Infof("selected remote video: handle=%s name=%s", chosenHandle, chosenName)

		localPath, token, err = p.store.DownloadVideo(ctx, dataDir, chosenName)
		if err != nil {
			return "", fmt.Errorf("download remote video: %w", err)
		}
	}

	text := CaptionForMedia(localPath, dataDir)
	mediaID, err := p.x.UploadVideo(ctx, localPath)
	if err != nil {
		return "", err
	}
	tweetID, err := p.x.CreateTweet(ctx, text, []string{mediaID})
	if err != nil {
		// Never delete the only copy of the media after a failed post.
		return "", err
	}

	// A lost ledger write must not undo an already-successful post.
	if p.publicURL == "" {
		handle, name := token.ID(), token.Name()
		if handle == "" {
			handle = chosenHandle
		}
		if name == "" {
			name = chosenName
		}
		if err := p.ledger.MarkPosted(ctx, p.store.Source(), handle, name, tweetID); err != nil {
			p.log.Warnf("failed to record posted item in ledger: %v", err)
		}
	}

	// Best-effort cleanup, remote first, then the local download.
	if p.store != nil && !token.IsZero() {
		p.store.Delete(ctx, token)
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		p.log.Warnf("failed to remove local copy %s: %v", localPath, err)
	}

	p.log.Infof("posted remote video and cleaned up: local=%s tweet_id=%s", localPath, tweetID)
	return tweetID, nil
}

// downloadPublicURL prefers the backend's native share-URL support and
// otherwise fetches the URL over plain HTTP.
func (p *Poster) downloadPublicURL(ctx context.Context, destDir string) (string, storage.DeleteToken, error) {
	if pd, ok := p.store.(PublicURLDownloader); ok {
		return pd.DownloadPublicURL(ctx, p.publicURL, destDir)
	}

	u, err := url.Parse(p.publicURL)
	if err != nil {
		return "", storage.DeleteToken{}, fmt.Errorf("public URL: %w", err)
	}
	if strings.Contains(u.Host, "mega.nz") || strings.Contains(u.Host, "mega.co.nz") {
		// MEGA share links are end-to-end encrypted and cannot be fetched
		// over plain HTTP.
		return "", storage.DeleteToken{}, fmt.Errorf("MEGA public links are not supported; use account mode")
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", storage.DeleteToken{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.publicURL, nil)
	if err != nil {
		return "", storage.DeleteToken{}, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", storage.DeleteToken{}, fmt.Errorf("fetch public URL: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", storage.DeleteToken{}, fmt.Errorf("fetch public URL: http %d", resp.StatusCode)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "video.mp4"
	}
	localPath := filepath.Join(destDir, name)
	out, err := os.Create(localPath)
	if err != nil {
		return "", storage.DeleteToken{}, err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(localPath)
		return "", storage.DeleteToken{}, fmt.Errorf("download public URL: %w", err)
	}
	p.log.Infof("downloaded public URL to %s", localPath)
	return localPath, storage.DeleteToken{}, nil
}
