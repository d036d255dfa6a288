// Package s3blob implements storage.Storage over an S3 bucket prefix.
package s3blob

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"twiper/internal/logging"
	"twiper/internal/storage"
)

const trashPrefix = "trash/"

type Config struct {
	Endpoint   string
	Region     string
	Bucket     string
	AccessKey  string
	SecretKey  string
	Prefix     string // logical folder, e.g. "XYZBlob/"
	HardDelete bool
}

type Client struct {
	cfg Config
	api *awss3.Client
	upl *manager.Uploader
	dl  *manager.Downloader
	log *logging.Logger
}

func New(ctx context.Context, cfg Config, log *logging.Logger) (*Client, error) {
	endpoint := cfg.Endpoint
	forcePathStyle := !strings.Contains(endpoint, "amazonaws.com")

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, err
	}

	api := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.UsePathStyle = forcePathStyle
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
	})

	if cfg.Prefix != "" && !strings.HasSuffix(cfg.Prefix, "/") {
		cfg.Prefix += "/"
	}

	return &Client{
		cfg: cfg,
		api: api,
		upl: manager.NewUploader(api),
		dl:  manager.NewDownloader(api),
		log: log,
	}, nil
}

func (c *Client) Source() string { return "S3" }

// list returns all objects under the prefix, newest first. Keys under the
// trash prefix are skipped.
func (c *Client) list(ctx context.Context) ([]storage.FileInfo, error) {
	var out []storage.FileInfo
	p := awss3.NewListObjectsV2Paginator(c.api, &awss3.ListObjectsV2Input{
		Bucket: &c.cfg.Bucket,
		Prefix: &c.cfg.Prefix,
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3 list: %w", err)
		}
		for _, obj := range page.Contents {
			key := *obj.Key
			if strings.HasSuffix(key, "/") {
				continue
			}
			if strings.HasPrefix(strings.TrimPrefix(key, c.cfg.Prefix), trashPrefix) {
				continue
			}
			info := storage.FileInfo{ID: key, Name: path.Base(key)}
			if obj.Size != nil {
				info.Size = *obj.Size
			}
			if obj.LastModified != nil {
				info.Modified = *obj.LastModified
			}
			out = append(out, info)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Modified.After(out[j].Modified) })
	return out, nil
}

func (c *Client) ListByName(ctx context.Context, name string) ([]storage.FileInfo, error) {
	all, err := c.list(ctx)
	if err != nil {
		return nil, err
	}
	var out []storage.FileInfo
	for _, info := range all {
		if info.Name == name {
			out = append(out, info)
		}
	}
	return out, nil
}

func (c *Client) ListVideos(ctx context.Context, limit int) ([]storage.FileInfo, error) {
	all, err := c.list(ctx)
	if err != nil {
		return nil, err
	}
	var out []storage.FileInfo
	for _, info := range all {
		if storage.IsVideoName(info.Name) {
			out = append(out, info)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (c *Client) FindByName(ctx context.Context, name string) (*storage.FileInfo, error) {
	matches, err := c.ListByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, storage.ErrNotFound
	}
	return &matches[0], nil
}

func (c *Client) DownloadByName(ctx context.Context, name, destDir string) (string, error) {
	info, err := c.FindByName(ctx, name)
	if err != nil {
		return "", err
	}
	return c.downloadKey(ctx, info.ID, info.Name, destDir)
}

func (c *Client) DownloadVideo(ctx context.Context, destDir, name string) (string, storage.DeleteToken, error) {
	var chosen *storage.FileInfo
	if name != "" {
		info, err := c.FindByName(ctx, name)
		if err != nil {
			return "", storage.DeleteToken{}, fmt.Errorf("s3 object %q: %w", name, err)
		}
		chosen = info
	} else {
		videos, err := c.ListVideos(ctx, 1)
		if err != nil {
			return "", storage.DeleteToken{}, err
		}
		if len(videos) == 0 {
			return "", storage.DeleteToken{}, fmt.Errorf("no video objects under prefix %q: %w", c.cfg.Prefix, storage.ErrNotFound)
		}
		chosen = &videos[0]
	}

	local, err := c.downloadKey(ctx, chosen.ID, chosen.Name, destDir)
	if err != nil {
		return "", storage.DeleteToken{}, err
	}
	return local, storage.DeleteByIDAndName(chosen.ID, chosen.Name), nil
}

func (c *Client) downloadKey(ctx context.Context, key, name, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}
	local := filepath.Join(destDir, name)
	f, err := os.Create(local)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := c.dl.Download(ctx, f, &awss3.GetObjectInput{Bucket: &c.cfg.Bucket, Key: &key}); err != nil {
		os.Remove(local)
		return "", fmt.Errorf("s3 download %s: %w", key, err)
	}
	c.log.Infof("downloaded s3://%s/%s -> %s", c.cfg.Bucket, key, local)
	return local, nil
}

func (c *Client) UploadOrReplace(ctx context.Context, localPath, remoteName string) error {
	if remoteName == "" {
		remoteName = filepath.Base(localPath)
	}
	key := c.cfg.Prefix + remoteName

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	// Puts overwrite by key, so replace is a single create.
	if _, err := c.upl.Upload(ctx, &awss3.PutObjectInput{Bucket: &c.cfg.Bucket, Key: &key, Body: f}); err != nil {
		return fmt.Errorf("s3 upload %s: %w", localPath, err)
	}
	c.log.Infof("uploaded file to s3://%s/%s", c.cfg.Bucket, key)
	return nil
}

func (c *Client) Delete(ctx context.Context, token storage.DeleteToken) {
	key := token.ID()
	if key == "" && token.Name() != "" {
		key = c.cfg.Prefix + token.Name()
	}
	if key == "" {
		return
	}

	if !c.cfg.HardDelete {
		// Soft delete: move under the trash prefix before removing.
		trashKey := c.cfg.Prefix + trashPrefix + path.Base(key)
		src := c.cfg.Bucket + "/" + key
		if _, err := c.api.CopyObject(ctx, &awss3.CopyObjectInput{
			Bucket:     &c.cfg.Bucket,
			Key:        &trashKey,
			CopySource: &src,
		}); err != nil {
			c.log.Warnf("failed to move s3 object to trash key=%s: %v", key, err)
			return
		}
	}
	if _, err := c.api.DeleteObject(ctx, &awss3.DeleteObjectInput{Bucket: &c.cfg.Bucket, Key: &key}); err != nil {
		c.log.Warnf("failed to delete s3 object key=%s: %v", key, err)
		return
	}
	c.log.Infof("deleted s3 object key=%s (hard=%t)", key, c.cfg.HardDelete)
}
