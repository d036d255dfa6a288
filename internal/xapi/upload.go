package xapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
)

// UploadVideo uploads a video with the chunked INIT/APPEND/FINALIZE
// protocol and, when the platform reports asynchronous processing, polls
// STATUS until the media is ready. Returns the media id usable in a
// tweet.
//
// INIT, FINALIZE and STATUS failures propagate immediately. APPEND
// failures are retried indefinitely with exponential backoff; a caller
// needing a hard deadline must cancel ctx.
func (c *Client) UploadVideo(ctx context.Context, path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("video file: %w", err)
	}
	totalBytes := fi.Size()
	c.log.Infof("starting video upload: path=%s size=%d bytes", path, totalBytes)

	mediaID, err := c.initUpload(ctx, totalBytes)
	if err != nil {
		return "", err
	}
	c.log.Infof("INIT complete: media_id=%s", mediaID)

	if err := c.appendChunks(ctx, mediaID, path); err != nil {
		return "", err
	}

	processing, err := c.finalizeUpload(ctx, mediaID)
	if err != nil {
		return "", err
	}
	if processing {
		if err := c.waitForProcessing(ctx, mediaID); err != nil {
			return "", err
		}
	}

	c.log.Infof("upload succeeded: media_id=%s", mediaID)
	return mediaID, nil
}

func (c *Client) initUpload(ctx context.Context, totalBytes int64) (string, error) {
	form := url.Values{}
	form.Set("command", "INIT")
	form.Set("media_type", "video/mp4")
	form.Set("total_bytes", strconv.FormatInt(totalBytes, 10))
	form.Set("media_category", "tweet_video")

	body, err := c.postForm(ctx, "INIT", form)
	if err != nil {
		return "", err
	}
	mediaID := gjson.GetBytes(body, "media_id_string").String()
	if mediaID == "" {
		return "", fmt.Errorf("INIT response missing media_id_string: %s", body)
	}
	return mediaID, nil
}

func (c *Client) appendChunks(ctx context.Context, mediaID, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	filename := filepath.Base(path)
	buf := make([]byte, c.chunkSize)
	for segment := 0; ; segment++ {
		n, rerr := io.ReadFull(f, buf)
		if n > 0 {
			if err := c.appendChunkWithRetry(ctx, mediaID, segment, buf[:n], filename); err != nil {
				return err
			}
			c.log.Infof("APPEND ok: media_id=%s segment=%d bytes=%d", mediaID, segment, n)
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read video chunk: %w", rerr)
		}
	}
}

// appendChunkWithRetry never gives up on a started upload: any APPEND
// failure sleeps min(5*2^(n-1), 60)s plus up to 0.5s jitter and tries
// again. The attempt counter is per chunk.
func (c *Client) appendChunkWithRetry(ctx context.Context, mediaID string, segment int, chunk []byte, filename string) error {
	for attempt := 1; ; attempt++ {
		err := c.appendChunk(ctx, mediaID, segment, chunk, filename)
		if err == nil {
			return nil
		}
		delay := appendBackoff(attempt, c.jitter())
		c.log.Warnf("APPEND retry #%d: media_id=%s segment=%d err=%v; sleeping %.2fs",
			attempt, mediaID, segment, err, delay.Seconds())
		if serr := c.sleep.Sleep(ctx, delay); serr != nil {
			return serr
		}
	}
}

func (c *Client) appendChunk(ctx context.Context, mediaID string, segment int, chunk []byte, filename string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.WriteField("command", "APPEND")
	w.WriteField("media_id", mediaID)
	w.WriteField("segment_index", strconv.Itoa(segment))
	part, err := w.CreateFormFile("media", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(chunk); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Op: "APPEND", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

func (c *Client) finalizeUpload(ctx context.Context, mediaID string) (processing bool, err error) {
	form := url.Values{}
	form.Set("command", "FINALIZE")
	form.Set("media_id", mediaID)

	body, err := c.postForm(ctx, "FINALIZE", form)
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(body, "processing_info").Exists(), nil
}

// waitForProcessing polls STATUS until the platform reports a terminal
// state. The loop is unbounded; between polls it sleeps for the
// platform-suggested check_after_secs (default 5s).
func (c *Client) waitForProcessing(ctx context.Context, mediaID string) error {
	params := url.Values{}
	params.Set("command", "STATUS")
	params.Set("media_id", mediaID)
	statusURL := c.uploadURL + "?" + params.Encode()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("STATUS check: %w", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{Op: "STATUS", StatusCode: resp.StatusCode, Body: string(body)}
		}

		info := gjson.GetBytes(body, "processing_info")
		state := info.Get("state").String()
		c.log.Infof("processing state: media_id=%s state=%s", mediaID, state)
		switch state {
		case "succeeded":
			return nil
		case "failed":
			return &ProcessingError{State: state, Info: info.Raw}
		}

		wait := info.Get("check_after_secs").Int()
		if wait <= 0 {
			wait = 5
		}
		if err := c.sleep.Sleep(ctx, time.Duration(wait)*time.Second); err != nil {
			return err
		}
	}
}

func (c *Client) postForm(ctx context.Context, op string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", op, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

func appendBackoff(attempt int, jitterSecs float64) time.Duration {
	secs := math.Min(5*math.Pow(2, float64(attempt-1)), 60)
	return time.Duration((secs + jitterSecs) * float64(time.Second))
}

func randFloat() float64 {
	return rand.Float64()
}
