package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oljefondvakt/fundwatch/internal/dataset"
	"github.com/oljefondvakt/fundwatch/internal/maintenance"
)

func resetCmd(v *viper.Viper, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Restore in_progress and error investments from the snapshot",
		Long: `Overwrites every investment left in_progress or error by an earlier run
with its snapshot entry, which puts it back to pending. Run it only while no
shallow run is active.`,
		Args: cobra.NoArgs,
		RunE: withApp(v, opts, func(cmd *cobra.Command, app *application, _ []string) error {
			items, err := dataset.LoadSnapshot(app.config.Paths.Snapshot)
			if err != nil {
				return err
			}
			resetter := maintenance.NewResetter(app.store, dataset.IndexByID(items), app.logger)
			report, err := resetter.Reset(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "found %d, reset %d, missing from snapshot %d\n",
				report.Found, report.Reset, len(report.Missing))
			return nil
		}),
	}
}
