package videoshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/biliview/biliview/internal/domain"
)

const (
	defaultTimeout    = 30 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 2 * time.Second
)

// Client fetches videoshot metadata from the player API.
type Client struct {
	baseURL     string
	proxyPrefix string
	httpClient  *http.Client
	logger      *slog.Logger

	maxRetries int
	retryDelay time.Duration
}

// NewClient creates a videoshot metadata client. proxyPrefix is the local
// path sheet URLs are rewritten under to dodge hotlink protection; empty
// leaves them untouched.
func NewClient(baseURL, proxyPrefix string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:     baseURL,
		proxyPrefix: proxyPrefix,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		logger:      logger,
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
	}
}

// SetRetryPolicy overrides the retry count and inter-attempt delay.
func (c *Client) SetRetryPolicy(maxRetries int, delay time.Duration) {
	c.maxRetries = maxRetries
	c.retryDelay = delay
}

// videoshotResponse mirrors the /x/player/videoshot payload.
type videoshotResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		ImgXLen  int       `json:"img_x_len"`
		ImgYLen  int       `json:"img_y_len"`
		ImgXSize int       `json:"img_x_size"`
		ImgYSize int       `json:"img_y_size"`
		Image    []string  `json:"image"`
		Index    []float64 `json:"index"`
	} `json:"data"`
}

// FetchVideoshot fetches snapshot metadata for a video, retrying on
// transient conditions. A cid of 0 means the first part.
//
// A non-zero response code and an empty timestamp list are both treated as
// transient (the endpoint returns empty indexes while thumbnails are still
// being generated). After the retries are spent, the last cause is surfaced;
// this is the one operation in the cache core that fails loudly, because the
// caller has no other way to get the data.
func (c *Client) FetchVideoshot(ctx context.Context, bvid string, cid int64) (*Data, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Debug("retrying videoshot fetch", "bvid", bvid, "attempt", attempt)
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := c.fetchOnce(ctx, bvid, cid)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}

	c.logger.Error("videoshot fetch exhausted retries", "bvid", bvid, "error", lastErr)
	return nil, fmt.Errorf("%w: %s: %w", domain.ErrSnapshotUnavailable, bvid, lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, bvid string, cid int64) (*Data, error) {
	query := url.Values{}
	query.Set("bvid", bvid)
	query.Set("index", "1")
	if cid > 0 {
		query.Set("cid", strconv.FormatInt(cid, 10))
	}

	reqURL := fmt.Sprintf("%s/x/player/videoshot?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("videoshot request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("videoshot request returned status %d", resp.StatusCode)
	}

	var payload videoshotResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if payload.Code != 0 {
		return nil, fmt.Errorf("videoshot api error (%d): %s", payload.Code, payload.Message)
	}
	if len(payload.Data.Index) == 0 {
		return nil, fmt.Errorf("videoshot for %s has no timestamps yet", bvid)
	}
	// A degenerate grid would make every frame computation divide by zero.
	if payload.Data.ImgXLen <= 0 || payload.Data.ImgYLen <= 0 ||
		payload.Data.ImgXSize <= 0 || payload.Data.ImgYSize <= 0 {
		return nil, fmt.Errorf("videoshot for %s has a malformed %dx%d grid of %dx%dpx frames",
			bvid, payload.Data.ImgXLen, payload.Data.ImgYLen,
			payload.Data.ImgXSize, payload.Data.ImgYSize)
	}

	images := make([]string, len(payload.Data.Image))
	for i, img := range payload.Data.Image {
		images[i] = rewriteSheetURL(img, c.proxyPrefix)
	}

	return &Data{
		ImgXLen:        payload.Data.ImgXLen,
		ImgYLen:        payload.Data.ImgYLen,
		ImgXSize:       payload.Data.ImgXSize,
		ImgYSize:       payload.Data.ImgYSize,
		Images:         images,
		Timestamps:     payload.Data.Index,
		FramesPerSheet: payload.Data.ImgXLen * payload.Data.ImgYLen,
		TotalFrames:    len(payload.Data.Index),
	}, nil
}

// rewriteSheetURL maps a CDN-absolute sheet URL onto the local proxy path,
// embedding the original host: //cdn.example.com/a/b.jpg becomes
// <prefix>/cdn.example.com/a/b.jpg. Unparsable URLs and URLs without a host
// pass through unchanged.
func rewriteSheetURL(raw, prefix string) string {
	if prefix == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	rewritten := prefix + "/" + u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		rewritten += "?" + u.RawQuery
	}
	return rewritten
}
