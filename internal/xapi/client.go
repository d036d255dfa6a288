// Package xapi talks to the X API: chunked media upload (v1.1), simple
// image upload (v1.1) and tweet creation (v2). Every request is signed
// with OAuth1 via the signing http.Client.
package xapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"

	"twiper/internal/logging"
)

const (
	defaultUploadURL = "https://upload.twitter.com/1.1/media/upload.json"
	defaultTweetsURL = "https://api.twitter.com/2/tweets"

	// Smaller chunks mean more requests but a lower memory footprint.
	defaultChunkSize = 1 * 1024 * 1024 // 1MB
)

// Sleeper abstracts backoff and poll sleeps so the unbounded retry loops
// can be exercised in tests without waiting.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type stdSleeper struct{}

func (stdSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client is an OAuth1-signed X API client.
type Client struct {
	httpClient *http.Client
	log        *logging.Logger
	sleep      Sleeper
	jitter     func() float64 // seconds in [0, 0.5)

	uploadURL string
	tweetsURL string
	chunkSize int
}

// Option overrides client defaults. Mostly useful in tests.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option  { return func(c *Client) { c.httpClient = hc } }
func WithSleeper(s Sleeper) Option           { return func(c *Client) { c.sleep = s } }
func WithJitter(f func() float64) Option     { return func(c *Client) { c.jitter = f } }
func WithUploadURL(u string) Option          { return func(c *Client) { c.uploadURL = u } }
func WithTweetsURL(u string) Option          { return func(c *Client) { c.tweetsURL = u } }
func WithChunkSize(n int) Option             { return func(c *Client) { c.chunkSize = n } }

// NewClient builds a client signing with the given consumer and access
// credentials. Per-request timeouts: 600s overall, 60s connect, 120s
// response read; the upload retry and processing-poll loops themselves
// are unbounded.
func NewClient(apiKey, apiSecret, accessToken, accessSecret string, log *logging.Logger, opts ...Option) *Client {
	config := oauth1.NewConfig(apiKey, apiSecret)
	token := oauth1.NewToken(accessToken, accessSecret)

	base := &http.Client{
		Transport: &http.Transport{
			DialContext:           (&net.Dialer{Timeout: 60 * time.Second}).DialContext,
			TLSHandshakeTimeout:   60 * time.Second,
			ResponseHeaderTimeout: 120 * time.Second,
		},
	}
	ctx := context.WithValue(context.Background(), oauth1.HTTPClient, base)
	httpClient := config.Client(ctx, token)
	httpClient.Timeout = 600 * time.Second

	c := &Client{
		httpClient: httpClient,
		log:        log,
		sleep:      stdSleeper{},
		jitter:     func() float64 { return randFloat() * 0.5 },
		uploadURL:  defaultUploadURL,
		tweetsURL:  defaultTweetsURL,
		chunkSize:  defaultChunkSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
