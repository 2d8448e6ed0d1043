// Package imagecache turns remote image URLs into locally-held blobs backed
// by the durable cache, de-duplicating concurrent fetches for the same URL.
package imagecache

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/biliview/biliview/internal/cache"
	"github.com/biliview/biliview/internal/domain"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	fetchTimeout       = 30 * time.Second
	imageNamespace     = "cover"
	DefaultConcurrency = 4
)

// BlobHandle is an in-process reference to fetched image bytes. Handles must
// be released once the image is no longer displayed or they live for the rest
// of the process.
type BlobHandle struct {
	sourceURL string

	mu       sync.Mutex
	data     []byte
	released bool
}

// SourceURL returns the remote URL the blob was fetched from.
func (h *BlobHandle) SourceURL() string { return h.sourceURL }

// Bytes returns the blob contents, or nil after Release.
func (h *BlobHandle) Bytes() []byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	return h.data
}

// Release drops the blob bytes. Safe to call more than once.
func (h *BlobHandle) Release() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.data = nil
	h.released = true
}

// Stats reports the cache's three tiers.
type Stats struct {
	StoredCount  int `json:"storedCount"`  // durable blobs
	MemoryCount  int `json:"memoryCount"`  // live handles
	PendingCount int `json:"pendingCount"` // in-flight fetches
}

// Cache fetches and stores image blobs.
//
// Lookup is three-tiered: live handle map, in-flight request coalescing,
// then the durable image collection; only a full miss goes to the network.
// Fetches carry no cookies or referrer (the hosted client uses
// credentials:omit; hosts that need cookies will fail and fall back to the
// original URL).
type Cache struct {
	svc     *cache.Service
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger

	group   singleflight.Group
	mu      sync.Mutex
	handles map[string]*BlobHandle
	pending int
}

// NewCache creates an image cache over the shared cache service. A nil
// limiter disables fetch pacing.
func NewCache(svc *cache.Service, limiter *rate.Limiter, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Cache{
		svc:     svc,
		client:  &http.Client{Timeout: fetchTimeout},
		limiter: limiter,
		logger:  logger,
		handles: make(map[string]*BlobHandle),
	}
}

// CachedImage resolves url to a blob handle, fetching and caching on a full
// miss. It returns nil when the image cannot be fetched; callers fall back
// to the original URL. Concurrent calls for the same URL share one fetch.
func (c *Cache) CachedImage(ctx context.Context, url string) *BlobHandle {
	if url == "" {
		return nil
	}

	c.mu.Lock()
	if h, ok := c.handles[url]; ok {
		c.mu.Unlock()
		return h
	}
	c.mu.Unlock()

	v, _, _ := c.group.Do(url, func() (any, error) {
		c.trackPending(1)
		defer c.trackPending(-1)
		return c.loadAndCache(ctx, url), nil
	})
	h, _ := v.(*BlobHandle)
	return h
}

// loadAndCache checks the durable store, then the network. Failures resolve
// to nil, never an error.
func (c *Cache) loadAndCache(ctx context.Context, url string) *BlobHandle {
	var blob []byte
	if c.svc.Get(domain.CollectionImage, url, &blob) && len(blob) > 0 {
		return c.register(url, blob)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn("bad image url", "url", url, "error", err)
		return nil
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Network and cross-origin failures are expected for third-party
		// image hosts; the caller displays the remote URL directly.
		c.logger.Debug("image fetch failed", "url", url, "error", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("image fetch rejected", "url", url, "status", resp.StatusCode)
		return nil
	}

	blob, err = io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn("image read failed", "url", url, "error", err)
		return nil
	}

	if err := c.svc.Set(domain.CollectionImage, url, blob, cache.Options{
		TTL:       cache.ImageTTL,
		Namespace: imageNamespace,
	}); err != nil {
		// The handle is still usable; only durability is lost.
		c.logger.Warn("failed to store image blob", "url", url, "error", err)
	}

	return c.register(url, blob)
}

func (c *Cache) register(url string, blob []byte) *BlobHandle {
	h := &BlobHandle{sourceURL: url, data: blob}
	c.mu.Lock()
	c.handles[url] = h
	c.mu.Unlock()
	return h
}

func (c *Cache) trackPending(delta int) {
	c.mu.Lock()
	c.pending += delta
	c.mu.Unlock()
}

// PreloadImages warms the cache for a batch of URLs with bounded
// concurrency. One failed image never aborts the batch.
func (c *Cache) PreloadImages(ctx context.Context, urls []string, concurrency int) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	c.mu.Lock()
	uncached := make([]string, 0, len(urls))
	for _, url := range urls {
		if _, ok := c.handles[url]; !ok && url != "" {
			uncached = append(uncached, url)
		}
	}
	c.mu.Unlock()
	if len(uncached) == 0 {
		return
	}

	g := &errgroup.Group{}
	g.SetLimit(concurrency)
	for _, url := range uncached {
		g.Go(func() error {
			c.CachedImage(ctx, url)
			return nil
		})
	}
	g.Wait()
}

// Revoke releases the live handle for url. The durable blob stays cached.
func (c *Cache) Revoke(url string) {
	c.mu.Lock()
	h, ok := c.handles[url]
	delete(c.handles, url)
	c.mu.Unlock()
	if ok {
		h.Release()
	}
}

// RevokeAll releases every live handle.
func (c *Cache) RevokeAll() {
	c.mu.Lock()
	handles := c.handles
	c.handles = make(map[string]*BlobHandle)
	c.mu.Unlock()
	for _, h := range handles {
		h.Release()
	}
}

// Stats reports the state of all three tiers.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	memory, pending := len(c.handles), c.pending
	c.mu.Unlock()
	return Stats{
		StoredCount:  c.svc.Count(domain.CollectionImage),
		MemoryCount:  memory,
		PendingCount: pending,
	}
}

// Clear releases every handle and drops the durable image collection.
func (c *Cache) Clear() error {
	c.RevokeAll()
	return c.svc.Clear(domain.CollectionImage)
}
