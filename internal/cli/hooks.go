package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthive/agenthive/internal/config"
	"github.com/agenthive/agenthive/internal/hook"
	"github.com/agenthive/agenthive/internal/store"
)

// openStore loads the effective config and opens the record store at the
// configured data root.
func openStore() (*config.Config, *store.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	st, err := store.New(cfg.Paths.DataDir)
	if err != nil {
		return nil, nil, err
	}
	return cfg, st, nil
}

func runHook(cmd *cobra.Command, build func(cfg *config.Config, st *store.Store) hook.Dispatcher) error {
	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	return hook.Run(build(cfg, st), cmd.InOrStdin(), cmd.OutOrStdout())
}

var commCmd = &cobra.Command{
	Use:   "comm",
	Short: "Run the agent-communication hook (JSON on stdin, JSON on stdout)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, func(cfg *config.Config, st *store.Store) hook.Dispatcher {
			return hook.NewCommHook(st, cfg.Agents)
		})
	},
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run the plan-tracker hook (JSON on stdin, JSON on stdout)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, func(cfg *config.Config, st *store.Store) hook.Dispatcher {
			return hook.NewPlanHook(st)
		})
	},
}

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Run the learning-engine hook (JSON on stdin, JSON on stdout)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runHook(cmd, func(cfg *config.Config, st *store.Store) hook.Dispatcher {
			return hook.NewLearnHook(st, cfg.Learning)
		})
	},
}
