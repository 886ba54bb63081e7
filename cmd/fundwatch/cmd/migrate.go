package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oljefondvakt/fundwatch/internal/platform/postgres"
)

func migrateCmd(v *viper.Viper, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations (postgres backend only)",
		Args:  cobra.NoArgs,
		RunE: withApp(v, opts, func(cmd *cobra.Command, app *application, _ []string) error {
			if app.db == nil {
				return errors.New("migrate needs the postgres store backend")
			}
			if err := postgres.Migrate(cmd.Context(), app.db, app.logger); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return nil
		}),
	}
}
