package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fnforge/fnforge/internal/output"
	"github.com/fnforge/fnforge/internal/plan"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate a deployment plan without applying it",
	RunE: func(_ *cobra.Command, _ []string) error {
		p, err := plan.Load(checkPlanPath)
		if err != nil {
			return fmt.Errorf("load plan: %w", err)
		}

		endpoints := 0
		for _, cs := range p {
			endpoints += len(cs.Creates) + len(cs.Updates) + len(cs.Deletes)
		}
		output.Success("Plan is valid: %d changesets, %d endpoints", len(p), endpoints)
		return nil
	},
}

var checkPlanPath string

func init() {
	checkCmd.Flags().StringVar(&checkPlanPath, "plan", "", "Path to the deployment plan YAML")
	_ = checkCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(checkCmd)
}
