package xapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// UploadImage uploads an image in a single request and returns the media
// id. Unlike video, images do not need the chunked protocol.
func (c *Client) UploadImage(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("image file: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("media", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image upload: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &HTTPError{Op: "UPLOAD", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	mediaID := gjson.GetBytes(respBody, "media_id_string").String()
	if mediaID == "" {
		return "", fmt.Errorf("image upload response missing media_id_string: %s", respBody)
	}
	c.log.Infof("image uploaded: path=%s media_id=%s", path, mediaID)
	return mediaID, nil
}

// CreateTweet posts a tweet with optional text and media and returns the
// tweet id.
func (c *Client) CreateTweet(ctx context.Context, text string, mediaIDs []string) (string, error) {
	payload := map[string]any{}
	if text != "" {
		payload["text"] = text
	}
	if len(mediaIDs) > 0 {
		payload["media"] = map[string]any{"media_ids": mediaIDs}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	c.log.Infof("creating tweet: text_len=%d media_count=%d", len(text), len(mediaIDs))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tweetsURL, bytes.NewBuffer(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create tweet: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		msg := string(body)
		if detail := gjson.GetBytes(body, "errors.0.detail").String(); detail != "" {
			msg = detail
		}
		return "", &HTTPError{Op: "TWEET", StatusCode: resp.StatusCode, Body: msg}
	}

	tweetID := gjson.GetBytes(body, "data.id").String()
	if tweetID != "" {
		c.log.Infof("tweet created: id=%s", tweetID)
	} else {
		c.log.Infof("tweet created (no id in response)")
	}
	return tweetID, nil
}
