package catalog

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/model"
)

type stubSource struct {
	fn func(ctx context.Context, q url.Values) (model.PageResult, error)
}

func (s stubSource) Products(ctx context.Context, q url.Values) (model.PageResult, error) {
	return s.fn(ctx, q)
}

func TestFetcher_GenerationsIncrease(t *testing.T) {
	f := NewFetcher(stubSource{fn: func(context.Context, url.Values) (model.PageResult, error) {
		return model.PageResult{}, nil
	}}, time.Second, nil)

	assert.Zero(t, f.Latest())
	first := f.Fetch(filter.State{Page: 1, PageSize: 9})
	second := f.Fetch(filter.State{Region: "Maule", Page: 1, PageSize: 9})

	m1 := first().(PageLoadedMsg)
	m2 := second().(PageLoadedMsg)
	assert.Equal(t, uint64(1), m1.Generation)
	assert.Equal(t, uint64(2), m2.Generation)
	assert.False(t, f.IsCurrent(m1.Generation))
	assert.True(t, f.IsCurrent(m2.Generation))
	assert.Equal(t, "Maule", m2.Filter.Region)
}

func TestFetcher_PassesQuery(t *testing.T) {
	var got url.Values
	f := NewFetcher(stubSource{fn: func(_ context.Context, q url.Values) (model.PageResult, error) {
		got = q
		return model.PageResult{Items: []model.Product{{ID: "a"}}, Total: 1, TotalPages: 1}, nil
	}}, time.Second, nil)

	msg := f.Fetch(filter.State{Region: "Valparaíso", Category: "Frutas", Page: 2, PageSize: 9})().(PageLoadedMsg)
	require.NoError(t, msg.Err)
	assert.Equal(t, "Valparaíso", got.Get("region"))
	assert.Equal(t, "Frutas", got.Get("category"))
	assert.Equal(t, "2", got.Get("page"))
	assert.Equal(t, "9", got.Get("limit"))
	assert.Empty(t, got.Get("commune"))
	assert.Len(t, msg.Result.Items, 1)
}

func TestFetcher_SupersededRequestIsCancelled(t *testing.T) {
	started := make(chan struct{})
	f := NewFetcher(stubSource{fn: func(ctx context.Context, _ url.Values) (model.PageResult, error) {
		close(started)
		<-ctx.Done()
		return model.PageResult{}, ctx.Err()
	}}, time.Minute, nil)

	cmd := f.Fetch(filter.State{Page: 1, PageSize: 9})
	done := make(chan PageLoadedMsg)
	go func() { done <- cmd().(PageLoadedMsg) }()
	<-started

	f.Stop()
	msg := <-done
	assert.ErrorIs(t, msg.Err, model.ErrCatalogUnavailable)
	assert.ErrorIs(t, msg.Err, context.Canceled)
}

func TestFetcher_WrapsErrorsOnce(t *testing.T) {
	boom := errors.New("boom")
	f := NewFetcher(stubSource{fn: func(context.Context, url.Values) (model.PageResult, error) {
		return model.PageResult{}, boom
	}}, time.Second, nil)

	msg := f.Fetch(filter.State{Page: 1, PageSize: 9})().(PageLoadedMsg)
	assert.ErrorIs(t, msg.Err, model.ErrCatalogUnavailable)
	assert.ErrorIs(t, msg.Err, boom)
	assert.Empty(t, msg.Result.Items)
}
