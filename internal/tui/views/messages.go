package views

// Navigation messages
type (
	NavigateToHome    struct{}
	NavigateToCatalog struct{}
	NavigateToFilters struct{}
	NavigateToRegions struct{}
	NavigateToRecent  struct{}
)

// ApplyFiltersMsg asks the root model to replace region, commune and
// category in one step and show the catalog.
type ApplyFiltersMsg struct {
	Region   string
	Commune  string
	Category string
}
