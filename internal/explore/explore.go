// Package explore caches multi-step explore-session results so a prior
// search's full result set restores without a network round-trip.
package explore

import (
	"encoding/json"
	"log/slog"

	"github.com/biliview/biliview/internal/cache"
	"github.com/biliview/biliview/internal/domain"
)

const exploreNamespace = "explore"

// StepResult is one step of an explore session. Inputs and outputs are
// backend-shaped documents; they round-trip as raw JSON and are only decoded
// at the display boundary.
type StepResult struct {
	Step       int             `json:"step"`
	Name       string          `json:"name"`
	NameZH     string          `json:"name_zh"`
	Status     string          `json:"status"`
	Input      json.RawMessage `json:"input"`
	Output     json.RawMessage `json:"output"`
	OutputType string          `json:"output_type"`
	Comment    string          `json:"comment"`
}

// Session is a full explore session's result set.
type Session struct {
	Query       string       `json:"query"`
	StepResults []StepResult `json:"stepResults"`
}

// Cache stores explore sessions in the data collection under
// explore:<query> with a 7-day TTL.
type Cache struct {
	svc    *cache.Service
	logger *slog.Logger
}

// NewCache creates the explore-session cache.
func NewCache(svc *cache.Service, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{svc: svc, logger: logger}
}

func exploreKey(query string) string { return "explore:" + query }

// Save caches a session's results for its query.
func (c *Cache) Save(session Session) error {
	return c.svc.Set(domain.CollectionData, exploreKey(session.Query), session, cache.Options{
		TTL:       cache.ExploreTTL,
		Namespace: exploreNamespace,
	})
}

// Restore returns the cached session for query, or nil when absent or
// expired.
func (c *Cache) Restore(query string) *Session {
	var session Session
	if !c.svc.Get(domain.CollectionData, exploreKey(query), &session) {
		return nil
	}
	return &session
}

// Invalidate drops the cached session for query.
func (c *Cache) Invalidate(query string) {
	if err := c.svc.Delete(domain.CollectionData, exploreKey(query)); err != nil {
		c.logger.Warn("failed to invalidate explore session", "query", query, "error", err)
	}
}
