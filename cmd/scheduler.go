package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/taskgraph/engine/internal/logger"
)

func schedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Start the periodic cron scheduler",
		Long:  "scheduler registers one cron entry per active, scheduled workflow and fires runs until interrupted.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := logger.WithLogger(cmd.Context(), a.logger)
			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := a.sched.Start(ctx); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}
			logger.Info(ctx, "scheduler started", "scheduled_workflows", a.sched.ScheduledWorkflowIDs())

			<-ctx.Done()
			a.sched.Stop()
			logger.Info(ctx, "scheduler stopped")
			return nil
		},
	}
}
