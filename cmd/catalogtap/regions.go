package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/catalogtap/internal/engine/geo"
)

var regionsCmd = &cobra.Command{
	Use:   "regions [REGION]",
	Short: "List the regions, or the communes of one region",
	Example: `  catalogtap regions
  catalogtap regions "los lagos"`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if len(args) == 0 {
			for _, r := range geo.Regions() {
				fmt.Fprintf(out, "%-40s %3d communes\n", r, len(geo.CommunesOf(r)))
			}
			return nil
		}
		region, ok := geo.ResolveRegion(args[0])
		if !ok {
			return fmt.Errorf("unknown region %q", args[0])
		}
		for _, c := range geo.CommunesOf(region) {
			fmt.Fprintln(out, c)
		}
		return nil
	},
}
