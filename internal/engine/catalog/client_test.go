package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/catalogtap/internal/model"
)

func newTestClient(t *testing.T, h http.Handler, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Options{BaseURL: srv.URL, Token: token, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestNewClient_RejectsBadURL(t *testing.T) {
	_, err := NewClient(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
	_, err = NewClient(Options{BaseURL: "::nope"})
	assert.Error(t, err)
}

func TestProducts_QueryAndDecode(t *testing.T) {
	var gotQuery url.Values
	var gotAuth string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products", r.URL.Path)
		gotQuery = r.URL.Query()
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"items":[{"_id":"p1","name":"Paltas","price":2490,"category":"Frutas",
			"producerId":"u1","producerLocation":{"region":"Valparaíso","comuna":"Quilpué","latitude":-33.05,"longitude":-71.44},
			"producerPublic":{"phone":"+56 9 1234 5678"}}],"total":1,"totalPages":1}`))
	}), "secret")

	q := url.Values{}
	q.Set("region", "Valparaíso")
	q.Set("page", "1")
	q.Set("limit", "9")
	page, err := c.Products(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, "Valparaíso", gotQuery.Get("region"))
	assert.Equal(t, "Bearer secret", gotAuth)
	require.Len(t, page.Items, 1)
	p := page.Items[0]
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, "2490", p.Price.String())
	assert.Equal(t, "Quilpué", p.ProducerLocation.Commune)
	require.True(t, p.ProducerLocation.HasCoords())
	assert.InDelta(t, -33.05, *p.ProducerLocation.Latitude, 1e-9)
	assert.Equal(t, "+56 9 1234 5678", p.ProducerPublic.Phone)
	assert.Equal(t, 1, page.TotalPages)
}

func TestProducts_DefaultsMissingFields(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":0}`))
	}), "")

	page, err := c.Products(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.TotalPages)
}

func TestProducts_ErrorIsCatalogUnavailable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), "")

	_, err := c.Products(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrCatalogUnavailable)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	assert.Equal(t, "boom", se.Body)
}

func TestGetJSON_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`["Frutas","Verduras"]`))
	}), "")

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Frutas", "Verduras"}, cats)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetJSON_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}), "")

	_, err := c.Categories(context.Background())
	assert.ErrorIs(t, err, model.ErrCategoriesUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLocation(t *testing.T) {
	t.Run("saved", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/location/my", r.URL.Path)
			w.Write([]byte(`{"address":"Av. Los Carrera 1","region":"Valparaíso","comuna":"Quilpué","latitude":-33.05,"longitude":-71.44}`))
		}), "tok")
		loc, err := c.Location(context.Background())
		require.NoError(t, err)
		require.NotNil(t, loc)
		assert.Equal(t, "Quilpué", loc.Commune)
		assert.True(t, loc.HasCoords())
	})

	t.Run("commune alias", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"region":"Maule","commune":"Talca"}`))
		}), "tok")
		loc, err := c.Location(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Talca", loc.Commune)
		assert.False(t, loc.HasCoords())
	})

	t.Run("none saved", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`null`))
		}), "tok")
		loc, err := c.Location(context.Background())
		require.NoError(t, err)
		assert.Nil(t, loc)
	})

	t.Run("failure", func(t *testing.T) {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}), "")
		_, err := c.Location(context.Background())
		assert.ErrorIs(t, err, model.ErrLocationUnavailable)
	})
}

func TestProducerRating(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ratings/producer/u1":
			w.Write([]byte(`{"avgScore":4.5,"count":12}`))
		case "/api/ratings/producer/u2":
			w.Write([]byte(`null`))
		case "/api/ratings/producer/u3":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}), "")
	ctx := context.Background()

	s, err := c.ProducerRating(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, s.AverageScore)
	assert.Equal(t, 4.5, *s.AverageScore)
	assert.Equal(t, 12, s.Count)

	for _, id := range []string{"u2", "u3"} {
		s, err = c.ProducerRating(ctx, id)
		require.NoError(t, err, id)
		assert.Nil(t, s.AverageScore, id)
		assert.Zero(t, s.Count, id)
	}

	_, err = c.ProducerRating(ctx, "u4")
	assert.ErrorIs(t, err, model.ErrRatingUnavailable)
}

func TestGetJSON_RespectsContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Products(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
