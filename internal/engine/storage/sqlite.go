// Package storage persists catalog data in SQLite: the product table that
// backs the fixture API, and snapshots of ranked pages taken by the client.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/model"
)

type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		price TEXT NOT NULL DEFAULT '0',
		stock INTEGER,
		category TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		producer_id TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		commune TEXT NOT NULL DEFAULT '',
		lat REAL,
		lng REAL,
		phone TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_products_region ON products(region, commune);
	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

	CREATE TABLE IF NOT EXISTS consumer_location (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		address TEXT NOT NULL DEFAULT '',
		region TEXT NOT NULL DEFAULT '',
		commune TEXT NOT NULL DEFAULT '',
		lat REAL,
		lng REAL
	);

	CREATE TABLE IF NOT EXISTS ratings (
		producer_id TEXT PRIMARY KEY,
		avg_score REAL,
		count INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		region TEXT NOT NULL,
		commune TEXT NOT NULL,
		category TEXT NOT NULL,
		page INTEGER NOT NULL,
		page_size INTEGER NOT NULL,
		total INTEGER NOT NULL,
		total_pages INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS snapshot_listings (
		snapshot_id INTEGER NOT NULL REFERENCES snapshots(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		product_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		category TEXT NOT NULL,
		producer_id TEXT NOT NULL,
		region TEXT NOT NULL,
		commune TEXT NOT NULL,
		tier INTEGER NOT NULL,
		distance_km REAL,
		avg_score REAL,
		rating_count INTEGER,
		PRIMARY KEY (snapshot_id, position)
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// InsertProducts stores products in the given order. Products whose ID is
// already present are skipped; the number actually inserted is returned.
func (s *Store) InsertProducts(products []model.Product) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO products
		(id, name, price, stock, category, image_url, producer_id,
		 region, commune, lat, lng, phone)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, p := range products {
		if p.ID == "" {
			continue
		}
		loc := p.ProducerLocation
		res, err := stmt.Exec(
			p.ID, p.Name, p.Price.String(), p.Stock, p.Category, p.ImageURL, p.ProducerID,
			loc.Region, loc.Commune, loc.Latitude, loc.Longitude, p.ProducerPublic.Phone,
		)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting product %s: %w", p.ID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}
	return inserted, nil
}

// ProductQuery selects products by exact region, commune and category
// match; empty fields match everything. Page is 1-based.
type ProductQuery struct {
	Region   string
	Commune  string
	Category string
	Page     int
	Limit    int
}

// QueryProducts returns one page of matching products in insertion order.
func (s *Store) QueryProducts(q ProductQuery) (model.PageResult, error) {
	if q.Limit < 1 {
		q.Limit = filter.DefaultPageSize
	}
	if q.Page < 1 {
		q.Page = 1
	}

	var where []string
	var args []any
	for _, c := range []struct{ col, val string }{
		{"region", q.Region}, {"commune", q.Commune}, {"category", q.Category},
	} {
		if c.val != "" {
			where = append(where, c.col+" = ?")
			args = append(args, c.val)
		}
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM products"+clause, args...).Scan(&total); err != nil {
		return model.PageResult{}, fmt.Errorf("counting products: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT id, name, price, stock, category, image_url, producer_id,
		       region, commune, lat, lng, phone
		FROM products`+clause+` ORDER BY seq LIMIT ? OFFSET ?`,
		append(args, q.Limit, (q.Page-1)*q.Limit)...)
	if err != nil {
		return model.PageResult{}, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	items := []model.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return model.PageResult{}, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return model.PageResult{}, fmt.Errorf("iterating products: %w", err)
	}

	return model.PageResult{
		Items:      items,
		Total:      total,
		TotalPages: max(1, (total+q.Limit-1)/q.Limit),
	}, nil
}

func scanProduct(rows *sql.Rows) (model.Product, error) {
	var (
		p        model.Product
		price    string
		stock    sql.NullInt64
		lat, lng sql.NullFloat64
	)
	err := rows.Scan(&p.ID, &p.Name, &price, &stock, &p.Category, &p.ImageURL, &p.ProducerID,
		&p.ProducerLocation.Region, &p.ProducerLocation.Commune, &lat, &lng, &p.ProducerPublic.Phone)
	if err != nil {
		return p, fmt.Errorf("scanning product: %w", err)
	}
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return p, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}
	if stock.Valid {
		n := int(stock.Int64)
		p.Stock = &n
	}
	p.ProducerLocation.Latitude = nullFloat(lat)
	p.ProducerLocation.Longitude = nullFloat(lng)
	return p, nil
}

// Categories returns the distinct non-empty categories, sorted.
func (s *Store) Categories() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT category FROM products WHERE category != '' ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("querying categories: %w", err)
	}
	defer rows.Close()

	cats := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// SetLocation saves the consumer location; nil removes it.
func (s *Store) SetLocation(loc *model.ConsumerLocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if loc == nil {
		_, err := s.db.Exec(`DELETE FROM consumer_location`)
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO consumer_location (id, address, region, commune, lat, lng)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address, region = excluded.region,
			commune = excluded.commune, lat = excluded.lat, lng = excluded.lng`,
		loc.Address, loc.Region, loc.Commune, loc.Latitude, loc.Longitude)
	if err != nil {
		return fmt.Errorf("saving location: %w", err)
	}
	return nil
}

// Location returns the saved consumer location, nil when none is saved.
func (s *Store) Location() (*model.ConsumerLocation, error) {
	var (
		loc      model.ConsumerLocation
		lat, lng sql.NullFloat64
	)
	err := s.db.QueryRow(`SELECT address, region, commune, lat, lng FROM consumer_location WHERE id = 1`).
		Scan(&loc.Address, &loc.Region, &loc.Commune, &lat, &lng)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading location: %w", err)
	}
	loc.Latitude = nullFloat(lat)
	loc.Longitude = nullFloat(lng)
	return &loc, nil
}

// SetRating stores the rating summary of a producer.
func (s *Store) SetRating(producerID string, summary model.RatingSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO ratings (producer_id, avg_score, count) VALUES (?, ?, ?)
		ON CONFLICT(producer_id) DO UPDATE SET avg_score = excluded.avg_score, count = excluded.count`,
		producerID, summary.AverageScore, summary.Count)
	if err != nil {
		return fmt.Errorf("saving rating for %s: %w", producerID, err)
	}
	return nil
}

// Rating returns the rating summary of a producer and whether one exists.
func (s *Store) Rating(producerID string) (model.RatingSummary, bool, error) {
	var (
		avg     sql.NullFloat64
		summary model.RatingSummary
	)
	err := s.db.QueryRow(`SELECT avg_score, count FROM ratings WHERE producer_id = ?`, producerID).
		Scan(&avg, &summary.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RatingSummary{}, false, nil
	}
	if err != nil {
		return model.RatingSummary{}, false, fmt.Errorf("loading rating for %s: %w", producerID, err)
	}
	summary.AverageScore = nullFloat(avg)
	return summary, true, nil
}

// SaveSnapshot records a ranked page together with the filter and
// pagination it was produced under, and returns the snapshot id.
func (s *Store) SaveSnapshot(state filter.State, pg model.Pagination, listings []model.Listing) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}

	res, err := tx.Exec(`
		INSERT INTO snapshots (region, commune, category, page, page_size, total, total_pages)
		VALUES (?,?,?,?,?,?,?)`,
		state.Region, state.Commune, state.Category, pg.Page, state.PageSize, pg.Total, pg.TotalPages)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("inserting snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("snapshot id: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO snapshot_listings
		(snapshot_id, position, product_id, name, price, category, producer_id,
		 region, commune, tier, distance_km, avg_score, rating_count)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	for i, l := range listings {
		var avg *float64
		var count *int
		if l.Rating != nil {
			avg = l.Rating.AverageScore
			count = &l.Rating.Count
		}
		_, err := stmt.Exec(id, i, l.ID, l.Name, l.Price.String(), l.Category, l.ProducerID,
			l.ProducerLocation.Region, l.ProducerLocation.Commune, l.PriorityTier, l.DistanceKm, avg, count)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("inserting listing %s: %w", l.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}
	return id, nil
}

func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM products").Scan(&count)
	return count, err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
