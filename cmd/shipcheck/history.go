package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
	"github.com/erp/shipcheck/internal/infrastructure/persistence"
)

var errHistoryDisabled = errors.New("run history is disabled (set database.enabled = true)")

func newHistoryCommand(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent reconciliation runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 || limit > 100 {
				return fmt.Errorf("--limit must be between 1 and 100, got %d", limit)
			}
			db, err := openHistory(c.cfg, c.log)
			if err != nil {
				return err
			}
			if db == nil {
				return errHistoryDisabled
			}
			defer db.Close()

			records, err := persistence.NewRunRecordRepository(db.DB).FindRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func printHistory(out io.Writer, records []reconciliation.RunRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "no runs recorded")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tTRIGGER\tDURATION\tSCRAPED\tCOMPLETED\tESCALATED\tUNMATCHED\tCELLS\tERROR")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.StartedAt.Local().Format(time.DateTime),
			r.Trigger,
			r.Duration().Round(time.Second),
			r.Scraped,
			r.Completed,
			r.Escalated,
			r.Unmatched,
			r.UpdatedCells,
			r.Error,
		)
	}
	return w.Flush()
}
