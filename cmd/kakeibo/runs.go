package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/edgard/kakeibo/internal/database"
)

// printRuns writes the latest limit journal runs, newest first, each followed
// by its deliveries.
func printRuns(ctx context.Context, w io.Writer, store database.Store, limit int) error {
	runs, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tFETCHED\tRETAINED\tDELIVERED\tFAILED\tERROR")
	for _, run := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%s\n",
			run.ID, run.StartedAt.UTC().Format(time.RFC3339),
			run.Fetched, run.Retained, run.Delivered, run.Failed, run.Error)

		deliveries, err := store.DeliveriesForRun(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, d := range deliveries {
			fmt.Fprintf(tw, "\t  %s\t%d\t%s\t\t\t%s\n", d.TS, d.Status, d.Text, d.Error)
		}
	}
	return tw.Flush()
}
