package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewReconcileCmd rebuilds every score record from the stored answers.
func NewReconcileCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute every score record from its answers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(cmd.Context(), *configPath)
		},
	}
}

func runReconcile(ctx context.Context, configPath string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	p, err := buildPlatform(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	n, err := p.scoring.ReconcileScores(ctx)
	if err != nil {
		return fmt.Errorf("reconcile scores: %w", err)
	}
	log.Info("scores reconciled", "records", n)
	return nil
}
