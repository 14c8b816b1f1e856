package model

import "errors"

// Failure conditions of the discovery core. Each one is scoped to a single
// data source; only ErrCatalogUnavailable is shown to the user.
var (
	ErrCatalogUnavailable    = errors.New("catalog unavailable")
	ErrLocationUnavailable   = errors.New("location unavailable")
	ErrCategoriesUnavailable = errors.New("categories unavailable")
	ErrRatingUnavailable     = errors.New("rating unavailable")
)
