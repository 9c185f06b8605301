package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/erp/shipcheck/internal/domain/reconciliation"
)

func newRunCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one reconciliation pass and exit non-zero if it fails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, c.cfg.Scheduler.Timeout)
			defer cancel()

			rt, err := buildServices(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer rt.Close(c.log)

			record, err := rt.runs.Execute(ctx, reconciliation.RunTriggerManual)
			if err != nil {
				return exitError(record, err)
			}
			rt.log.Info("Run complete",
				zap.String("run_id", record.ID.String()),
				zap.Int("completed", record.Completed),
				zap.Int("escalated", record.Escalated),
				zap.Int("unmatched", record.Unmatched),
			)
			return nil
		},
	}
}
