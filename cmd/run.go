package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskgraph/engine/internal/dag"
	"github.com/taskgraph/engine/internal/logger"
	"github.com/taskgraph/engine/internal/models"
)

func runCmd() *cobra.Command {
	var file string
	var schedule string

	cmd := &cobra.Command{
		Use:   "run <workflow-id>",
		Short: "Trigger a workflow run",
		Long:  "run registers the DAG at --file under <workflow-id> if given, then triggers a run and prints the run id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := logger.WithLogger(cmd.Context(), a.logger)
			workflowID := args[0]

			if file != "" {
				doc, err := dag.LoadFile(resolveDAGPath(a.cfg.DAGsDir, file))
				if err != nil {
					return err
				}
				wf := &models.Workflow{
					ID:       workflowID,
					Name:     workflowID,
					Schedule: schedule,
					Status:   models.WorkflowActive,
					DAG:      doc,
				}
				if err := a.store.CreateWorkflow(ctx, wf); err != nil {
					return fmt.Errorf("register workflow %s: %w", workflowID, err)
				}
			}

			runID, err := a.orch.Trigger(ctx, workflowID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), runID)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "register the DAG document at this path (or bare name under DAGS_DIR) under <workflow-id> before triggering")
	cmd.Flags().StringVar(&schedule, "schedule", "", "cron schedule to set when registering with --file")
	return cmd
}
