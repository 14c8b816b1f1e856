package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/catalogtap/internal/engine/filter"
	"github.com/rendis/catalogtap/internal/engine/geo"
)

// filterFlags are the catalog filter flags shared by browse and export.
type filterFlags struct {
	region   string
	commune  string
	category string
	page     int
	limit    int
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.region, "region", "", "region, accents and case optional (e.g. valparaiso)")
	cmd.Flags().StringVar(&f.commune, "commune", "", "commune; implies its region when --region is empty")
	cmd.Flags().StringVar(&f.category, "category", "", "product category, exact")
	cmd.Flags().IntVar(&f.page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.limit, "limit", 0, "page size (default page_size from config)")
}

// state resolves the flags to a canonical filter state. Unknown regions
// and communes are usage errors.
func (f filterFlags) state(defaultPageSize int) (filter.State, error) {
	st := filter.State{Category: f.category, Page: max(f.page, 1), PageSize: defaultPageSize}
	if f.limit != 0 {
		if f.limit < 1 || f.limit > filter.MaxPageSize {
			return st, fmt.Errorf("--limit must be between 1 and %d", filter.MaxPageSize)
		}
		st.PageSize = f.limit
	}

	if f.region != "" {
		region, ok := geo.ResolveRegion(f.region)
		if !ok {
			return st, fmt.Errorf("unknown region %q (see 'catalogtap regions')", f.region)
		}
		st.Region = region
	}
	if f.commune != "" {
		commune, ok := geo.ResolveCommune(st.Region, f.commune)
		if !ok {
			if st.Region != "" {
				return st, fmt.Errorf("%q is not a commune of %s (see 'catalogtap regions %q')", f.commune, st.Region, st.Region)
			}
			return st, fmt.Errorf("unknown commune %q", f.commune)
		}
		if st.Region == "" {
			st.Region, _ = geo.RegionOf(commune)
		}
		st.Commune = commune
	}
	return st, nil
}
