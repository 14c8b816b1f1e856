// Package rating caches producer rating summaries for the lifetime of a
// browsing session. Each producer is looked up at most once.
package rating

import (
	"context"
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/rendis/catalogtap/internal/model"
)

// Status is the lifecycle state of one cache entry.
type Status int

const (
	StatusAbsent Status = iota
	StatusPending
	StatusReady
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusUnavailable:
		return "unavailable"
	default:
		return "absent"
	}
}

// Source looks up the rating summary of one producer; *catalog.Client
// satisfies it.
type Source interface {
	ProducerRating(ctx context.Context, producerID string) (model.RatingSummary, error)
}

// LoadedMsg reports a finished lookup.
type LoadedMsg struct {
	ProducerID string
	Summary    model.RatingSummary
	Err        error
}

type entry struct {
	status  Status
	summary model.RatingSummary
}

// Cache maps producer IDs to rating summaries. Entries never expire.
type Cache struct {
	src     Source
	limiter *rate.Limiter
	timeout time.Duration
	logger  *log.Logger

	mu      sync.Mutex
	entries map[string]entry
}

// Options tunes a Cache. Zero values pick defaults.
type Options struct {
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	Logger            *log.Logger
}

// New returns an empty cache backed by src.
func New(src Source, opts Options) *Cache {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 8
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = max(1, int(rps))
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Cache{
		src:     src,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		timeout: timeout,
		logger:  logger.WithPrefix("rating"),
		entries: make(map[string]entry),
	}
}

// Ensure schedules a lookup for producerID unless one is cached or in
// flight. The pending marker is recorded before Ensure returns, so a second
// call for the same producer returns nil even if the first command has not
// run yet. A failed lookup is recorded as unavailable and never retried.
func (c *Cache) Ensure(producerID string) tea.Cmd {
	if producerID == "" {
		return nil
	}

	c.mu.Lock()
	if _, ok := c.entries[producerID]; ok {
		c.mu.Unlock()
		return nil
	}
	c.entries[producerID] = entry{status: StatusPending}
	c.mu.Unlock()

	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
		defer cancel()

		if err := c.limiter.Wait(ctx); err != nil {
			c.store(producerID, entry{status: StatusUnavailable})
			return LoadedMsg{ProducerID: producerID, Err: err}
		}

		summary, err := c.src.ProducerRating(ctx, producerID)
		if err != nil {
			c.logger.Warn("rating lookup failed", "producer", producerID, "err", err)
			c.store(producerID, entry{status: StatusUnavailable})
			return LoadedMsg{ProducerID: producerID, Err: err}
		}
		c.store(producerID, entry{status: StatusReady, summary: summary})
		return LoadedMsg{ProducerID: producerID, Summary: summary}
	}
}

// EnsureAll calls Ensure for each distinct ID and batches the resulting
// commands.
func (c *Cache) EnsureAll(producerIDs []string) tea.Cmd {
	var cmds []tea.Cmd
	for _, id := range producerIDs {
		if cmd := c.Ensure(id); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return tea.Batch(cmds...)
}

// Lookup returns the cached summary and the entry's status. The summary is
// only meaningful when the status is StatusReady.
func (c *Cache) Lookup(producerID string) (model.RatingSummary, Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[producerID]
	if !ok {
		return model.RatingSummary{}, StatusAbsent
	}
	return e.summary, e.status
}

// Len returns the number of producers known to the cache in any state.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) store(id string, e entry) {
	c.mu.Lock()
	c.entries[id] = e
	c.mu.Unlock()
}
