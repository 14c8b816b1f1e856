// Package devserver serves the marketplace catalog API from a SQLite store.
// It backs local development and end-to-end tests of the client.
package devserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/engine/storage"
	"github.com/rendis/catalogtap/internal/model"
)

// Store is the read side the API serves from; *storage.Store satisfies it.
type Store interface {
	QueryProducts(q storage.ProductQuery) (model.PageResult, error)
	Categories() ([]string, error)
	Location() (*model.ConsumerLocation, error)
	Rating(producerID string) (model.RatingSummary, bool, error)
}

// Options configures the router.
type Options struct {
	Token  string // when set, every request must carry it as a bearer token
	Logger *log.Logger
}

type server struct {
	store  Store
	logger *log.Logger
}

func NewRouter(store Store, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	s := &server{store: store, logger: logger.WithPrefix("devserver")}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if opts.Token != "" {
		r.Use(bearerAuth(opts.Token))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/location/my", s.getLocation)
		r.Get("/products/categories", s.listCategories)
		r.Get("/products", s.listProducts)
		r.Get("/ratings/producer/{producer_id}", s.getRating)
	})

	return r
}

func (s *server) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 1)
	if err != nil || page < 1 {
		http.Error(w, "Invalid page", http.StatusBadRequest)
		return
	}
	limit, err := intParam(q.Get("limit"), filter.DefaultPageSize)
	if err != nil || limit < 1 {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	limit = min(limit, filter.MaxPageSize)

	result, err := s.store.QueryProducts(storage.ProductQuery{
		Region:   q.Get("region"),
		Commune:  q.Get("commune"),
		Category: q.Get("category"),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		s.fail(w, r, "Failed to fetch products", err)
		return
	}
	s.writeJSON(w, r, result)
}

func (s *server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.store.Categories()
	if err != nil {
		s.fail(w, r, "Failed to fetch categories", err)
		return
	}
	s.writeJSON(w, r, cats)
}

// getLocation answers JSON null when no location is saved.
func (s *server) getLocation(w http.ResponseWriter, r *http.Request) {
	loc, err := s.store.Location()
	if err != nil {
		s.fail(w, r, "Failed to fetch location", err)
		return
	}
	s.writeJSON(w, r, loc)
}

func (s *server) getRating(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "producer_id")
	summary, ok, err := s.store.Rating(id)
	if err != nil {
		s.fail(w, r, "Failed to fetch rating", err)
		return
	}
	if !ok {
		http.Error(w, "Producer has no ratings", http.StatusNotFound)
		return
	}
	s.writeJSON(w, r, summary)
}

func (s *server) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg, "path", r.URL.Path, "err", err)
	http.Error(w, msg, http.StatusInternalServerError)
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			"method", r.Method, "path", r.URL.Path, "query", r.URL.RawQuery,
			"status", ww.Status(), "elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func bearerAuth(token string) func(http.Handler) http.Handler {
	want := "Bearer " + token
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != want {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func (s *server) writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encoding response", "path", r.URL.Path, "err", err)
	}
}
