package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/model"
)

// ProductSource returns one page of products for a query; *Client
// satisfies it.
type ProductSource interface {
	Products(ctx context.Context, query url.Values) (model.PageResult, error)
}

// PageLoadedMsg carries the outcome of one page fetch. Generation is the
// tag the fetch was issued with; only the latest generation may be applied.
type PageLoadedMsg struct {
	Generation uint64
	Filter     filter.State
	Result     model.PageResult
	Err        error
	Elapsed    time.Duration
}

// Fetcher issues generation-tagged page fetches. Each new fetch supersedes
// every earlier one; the superseded request's context is cancelled, and its
// response, if any still arrives, fails IsCurrent.
type Fetcher struct {
	src     ProductSource
	timeout time.Duration
	logger  *log.Logger

	gen    atomic.Uint64
	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewFetcher returns a fetcher bounded by timeout per request.
func NewFetcher(src ProductSource, timeout time.Duration, logger *log.Logger) *Fetcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Fetcher{src: src, timeout: timeout, logger: logger.WithPrefix("fetch")}
}

// Fetch tags a new request with the next generation and returns the
// command that performs it.
func (f *Fetcher) Fetch(state filter.State) tea.Cmd {
	gen := f.gen.Add(1)
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)

	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.cancel = cancel
	f.mu.Unlock()

	query := state.Query()
	f.logger.Debug("fetching page", "gen", gen, "query", query.Encode())

	return func() tea.Msg {
		defer cancel()
		start := time.Now()
		res, err := f.src.Products(ctx, query)
		elapsed := time.Since(start)
		if err != nil {
			if !errors.Is(err, model.ErrCatalogUnavailable) {
				err = fmt.Errorf("%w: %w", model.ErrCatalogUnavailable, err)
			}
			return PageLoadedMsg{Generation: gen, Filter: state, Err: err, Elapsed: elapsed}
		}
		return PageLoadedMsg{Generation: gen, Filter: state, Result: res.Normalize(), Elapsed: elapsed}
	}
}

// IsCurrent reports whether gen is the latest issued generation.
func (f *Fetcher) IsCurrent(gen uint64) bool {
	return gen == f.gen.Load()
}

// Latest returns the latest issued generation, 0 before the first fetch.
func (f *Fetcher) Latest() uint64 {
	return f.gen.Load()
}

// Stop cancels the in-flight request, if any.
func (f *Fetcher) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}
