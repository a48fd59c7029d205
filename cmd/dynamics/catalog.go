package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/entity-dynamics/internal/catalog"
)

func catalogCmd() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the per-category constants and interaction coefficients",
		// the catalog is static and needs no config
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if jsonOut {
				table := make(map[catalog.Category]catalog.Constants)
				for _, c := range catalog.Categories() {
					table[c] = catalog.For(c)
				}
				return printJSON(out, table)
			}
			printCatalog(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

func printCatalog(w io.Writer) {
	cats := catalog.Categories()
	fmt.Fprintf(w, "%-13s| %-8s| %-8s| %-8s| %-9s| %-9s| %-8s| %s\n",
		"Category", "Inertia", "MaxDV", "MaxDI", "Critical", "Lifespan", "Cadence", "Primary")
	for _, c := range cats {
		k := catalog.For(c)
		prim := make([]string, len(k.PrimaryRelations))
		for i, rc := range k.PrimaryRelations {
			prim[i] = string(rc)
		}
		fmt.Fprintf(w, "%-13s| %-8.2f| %-8.2f| %-8.2f| %-9.2f| %-9g| %-8g| %s\n",
			c, k.Inertia, k.MaxValueDeltaPerDay, k.MaxInteractionDeltaPerDay,
			k.CriticalThreshold, k.ExpectedLifespanYears, k.ReviewCadenceDays, strings.Join(prim, ","))
	}

	fmt.Fprintf(w, "\nInteraction coefficients (row = source, column = target)\n%-13s", "")
	for _, c := range cats {
		fmt.Fprintf(w, "%8.8s", c)
	}
	fmt.Fprintln(w)
	for _, src := range cats {
		fmt.Fprintf(w, "%-13s", src)
		for _, dst := range cats {
			fmt.Fprintf(w, "%8.2f", catalog.InteractionCoefficient(src, dst))
		}
		fmt.Fprintln(w)
	}
}
