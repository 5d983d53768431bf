package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskgraph/engine/internal/config"
	"github.com/taskgraph/engine/internal/dag"
)

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dag-file>",
		Short: "Validate a DAG document (YAML or JSON) against every structural invariant",
		Long:  "validate loads the given path as given; a bare name with no path separator is looked up under DAGS_DIR.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			path := resolveDAGPath(cfg.DAGsDir, args[0])
			doc, err := dag.LoadFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d tasks, %d dependencies)\n",
				args[0], len(doc.Tasks), len(doc.Dependencies))
			return nil
		},
	}
}
