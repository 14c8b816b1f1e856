// Package filter holds the catalog filter state: region, commune, category
// and the page window. Every transition keeps the commune inside the
// region's commune list and resets the page where required.
package filter

import (
	"net/url"
	"strconv"
)

const (
	DefaultPageSize = 9
	MaxPageSize     = 100
)

// CommuneChecker reports commune membership; *geo.AdminLookup satisfies it.
type CommuneChecker interface {
	Contains(region, commune string) bool
}

// State is an immutable snapshot of the filter.
type State struct {
	Region   string `json:"region,omitempty"`
	Commune  string `json:"commune,omitempty"`
	Category string `json:"category,omitempty"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

// Active reports whether any of region, commune or category is set.
func (s State) Active() bool {
	return s.Region != "" || s.Commune != "" || s.Category != ""
}

// Query encodes the state for the products endpoint. Empty fields are
// omitted: absence means "no constraint".
func (s State) Query() url.Values {
	q := url.Values{}
	if s.Region != "" {
		q.Set("region", s.Region)
	}
	if s.Commune != "" {
		q.Set("commune", s.Commune)
	}
	if s.Category != "" {
		q.Set("category", s.Category)
	}
	q.Set("page", strconv.Itoa(s.Page))
	q.Set("limit", strconv.Itoa(s.PageSize))
	return q
}

// Filter is the mutable filter owned by one browsing session.
type Filter struct {
	state      State
	lookup     CommuneChecker
	totalPages int // 0 until the first page result arrives
}

// New returns a cleared filter on page 1.
func New(lookup CommuneChecker, pageSize int) *Filter {
	return &Filter{
		lookup: lookup,
		state:  State{Page: 1, PageSize: clampPageSize(pageSize)},
	}
}

// State returns the current snapshot.
func (f *Filter) State() State {
	return f.state
}

// SetRegion selects a region. The commune survives only if it belongs to
// the new region.
func (f *Filter) SetRegion(region string) {
	before := f.state
	if f.state.Commune != "" && (f.lookup == nil || !f.lookup.Contains(region, f.state.Commune)) {
		f.state.Commune = ""
	}
	f.state.Region = region
	f.restart(before)
}

// SetCommune selects a commune as given; pickers only offer communes of the
// selected region.
func (f *Filter) SetCommune(commune string) {
	before := f.state
	f.state.Commune = commune
	f.restart(before)
}

// SetCategory selects a category.
func (f *Filter) SetCategory(category string) {
	before := f.state
	f.state.Category = category
	f.restart(before)
}

// SetPageSize changes the page size, clamped to [1, MaxPageSize].
func (f *Filter) SetPageSize(n int) {
	before := f.state
	f.state.PageSize = clampPageSize(n)
	f.restart(before)
}

// SetPage moves to page n. The value is clamped to [1, TotalPages] once a
// page count is known; other filters are left untouched.
func (f *Filter) SetPage(n int) {
	if f.totalPages > 0 && n > f.totalPages {
		n = f.totalPages
	}
	if n < 1 {
		n = 1
	}
	f.state.Page = n
}

// NextPage advances one page; it reports false on the last known page.
func (f *Filter) NextPage() bool {
	if f.totalPages > 0 && f.state.Page >= f.totalPages {
		return false
	}
	f.SetPage(f.state.Page + 1)
	return true
}

// PrevPage goes back one page; it reports false on page 1.
func (f *Filter) PrevPage() bool {
	if f.state.Page <= 1 {
		return false
	}
	f.SetPage(f.state.Page - 1)
	return true
}

// Clear drops region, commune and category and returns to page 1.
// The page size is kept.
func (f *Filter) Clear() {
	before := f.state
	f.state.Region = ""
	f.state.Commune = ""
	f.state.Category = ""
	f.restart(before)
}

// restart returns to page 1. The known page count belongs to the previous
// query, so it is forgotten when anything but the page changed.
func (f *Filter) restart(before State) {
	f.state.Page = 1
	before.Page = 1
	if f.state != before {
		f.totalPages = 0
	}
}

// SetTotalPages records the page count of the latest accepted result.
func (f *Filter) SetTotalPages(n int) {
	if n < 1 {
		n = 1
	}
	f.totalPages = n
}

// TotalPages returns the known page count, 0 when none is known yet.
func (f *Filter) TotalPages() int {
	return f.totalPages
}

func clampPageSize(n int) int {
	switch {
	case n < 1:
		return DefaultPageSize
	case n > MaxPageSize:
		return MaxPageSize
	}
	return n
}
