package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewCreateAdminCmd registers an additional admin account.
func NewCreateAdminCmd(configPath *string) *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreateAdmin(cmd.Context(), *configPath, name, email, password)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "admin display name")
	cmd.Flags().StringVar(&email, "email", "", "admin login email")
	cmd.Flags().StringVar(&password, "password", "", "admin password (at least 6 characters)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func runCreateAdmin(ctx context.Context, configPath, name, email, password string) error {
	cfg, log, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	p, err := buildPlatform(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	admin, err := p.accounts.CreateAdmin(ctx, name, email, password)
	if err != nil {
		return err
	}
	log.Info("admin created", "id", admin.ID, "email", admin.Email)
	return nil
}
