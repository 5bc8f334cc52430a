package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"factoryops/internal/config"
)

func runStats(cfg config.Config) {
	snap := mustLoadStore(cfg)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%s Data\n", cfg.FactoryName)
	fmt.Fprintf(w, "Date Range\t%s to %s\n", snap.StartDay(), snap.EndDay())
	fmt.Fprintf(w, "Days\t%d\n", len(snap.Production))
	fmt.Fprintf(w, "Machines\t%d\n", len(snap.Machines))
	fmt.Fprintf(w, "Shifts\t%d\n", len(snap.Shifts))
	w.Flush()
}
