package main

import (
	"github.com/spf13/cobra"
)

// cfgFile is bound to the persistent --config flag and threaded into
// every subcommand's newApp call.
var cfgFile string

// newRootCmd builds the taskgraphd command tree: validate, run, worker,
// scheduler, version.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "taskgraphd",
		Short:        "DAG workflow execution engine",
		Long:         "taskgraphd validates DAG definitions, triggers runs, and drives them with a worker pool and a cron scheduler.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/taskgraph/config.yaml)")

	cmd.AddCommand(validateCmd())
	cmd.AddCommand(runCmd())
	cmd.AddCommand(workerCmd())
	cmd.AddCommand(schedulerCmd())
	cmd.AddCommand(versionCmd())

	return cmd
}
