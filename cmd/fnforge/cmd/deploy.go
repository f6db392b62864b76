package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/fnforge/fnforge/internal/config"
	"github.com/fnforge/fnforge/internal/constants"
	"github.com/fnforge/fnforge/internal/executor"
	"github.com/fnforge/fnforge/internal/fabricator"
	"github.com/fnforge/fnforge/internal/gcp"
	"github.com/fnforge/fnforge/internal/logger"
	"github.com/fnforge/fnforge/internal/output"
	"github.com/fnforge/fnforge/internal/plan"
)

var planPath string

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Apply a deployment plan",
	Long: `Apply a deployment plan: create, update, and delete function endpoints
and their triggers. Changesets in the plan are applied concurrently and
fail independently; the exit code is non-zero when any endpoint failed.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().StringVar(&planPath, "plan", "", "Path to the deployment plan YAML")
	_ = deployCmd.MarkFlagRequired("plan")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// The bootstrap logger only knew about the --debug flag; the config
	// carries the real level and output format.
	level := logger.ParseLevel(cfg.LogLevel)
	if debug {
		level = slog.LevelDebug
	}
	log := logger.Initialize(constants.Environment(cfg.Environment), level)

	p, err := plan.Load(planPath)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}

	output.Info("Deploying to project %s", cfg.Project)

	clients, err := gcp.NewClients(ctx)
	if err != nil {
		return err
	}

	// Endpoints without an explicit service account run as the project's
	// default compute account, which is derived from the project number.
	projectNumber, err := gcp.ResolveProjectNumber(ctx, cfg.Project)
	if err != nil {
		return err
	}
	defaultSA := gcp.DefaultComputeServiceAccount(projectNumber)
	for _, cs := range p {
		for _, ep := range cs.Creates {
			applyServiceAccountDefault(ep, defaultSA)
		}
		for _, up := range cs.Updates {
			applyServiceAccountDefault(up.Endpoint, defaultSA)
		}
	}

	v2Sources := make(map[string]gcp.StorageSource, len(cfg.V2Sources))
	for region, raw := range cfg.V2Sources {
		src, err := gcp.ParseStorageSource(raw)
		if err != nil {
			return fmt.Errorf("gen2 source for %s: %w", region, err)
		}
		v2Sources[region] = src
	}

	fab, err := fabricator.New(fabricator.Config{
		QueueExecutor:    executor.NewQueueExecutor(constants.QueueExecutorName, cfg.QueueConcurrency, log),
		FunctionExecutor: executor.NewQueueExecutor(constants.FunctionExecutorName, cfg.FunctionConcurrency, log),
		Clients:          clients,
		LegacyLocation:   cfg.LegacyLocation,
		V1SourceURL:      cfg.V1SourceURL,
		V2Sources:        v2Sources,
		Logger:           log,
	})
	if err != nil {
		return err
	}
	defer fab.Close()

	if err := fab.CheckPlan(p); err != nil {
		return err
	}

	summary := fab.ApplyPlan(ctx, p)
	output.Summary(summary)

	if summary.Failed() {
		return fmt.Errorf("deployment finished with failures")
	}
	return nil
}

func applyServiceAccountDefault(ep *plan.Endpoint, defaultSA string) {
	if ep.ServiceAccount == "" {
		ep.ServiceAccount = defaultSA
	}
}
