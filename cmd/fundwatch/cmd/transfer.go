package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oljefondvakt/fundwatch/internal/dataset"
	"github.com/oljefondvakt/fundwatch/internal/prompt"
)

func importCmd(v *viper.Viper, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import [file]",
		Short: "Import a snapshot, marking every investment pending",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(v, opts, func(cmd *cobra.Command, app *application, args []string) error {
			path := app.config.Paths.Snapshot
			if len(args) == 1 {
				path = args[0]
			}
			items, err := dataset.LoadSnapshot(path)
			if err != nil {
				return err
			}
			n, err := dataset.Import(cmd.Context(), app.store, items, app.logger)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d investments from %s\n", n, path)
			return nil
		}),
	}
}

func exportCmd(v *viper.Viper, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Write every stored investment to a JSON file, or - for stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(v, opts, func(cmd *cobra.Command, app *application, args []string) error {
			path := app.config.Paths.ExportFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "-" {
				_, err := dataset.Export(cmd.Context(), app.store, cmd.OutOrStdout())
				return err
			}
			return writeFile(path, func(w io.Writer) error {
				n, err := dataset.Export(cmd.Context(), app.store, w)
				if err == nil {
					app.logger.Info("export written", "path", path, "items", n)
				}
				return err
			})
		}),
	}
}

func candidatesCmd(v *viper.Viper, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "candidates",
		Short: "List highest-risk investments that still need a deep report",
		Args:  cobra.NoArgs,
		RunE: withApp(v, opts, func(cmd *cobra.Command, app *application, _ []string) error {
			items, err := dataset.DeepCandidates(cmd.Context(), app.store, app.logger)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, inv := range items {
				_, _ = fmt.Fprintf(out, "%s\t%s\n", inv.ID, prompt.CompanyLine(inv))
			}
			return nil
		}),
	}
}

func snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <csv> <out>",
		Short: "Build a snapshot JSON file from a holdings CSV export",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			items, err := dataset.FromCSV(f)
			if err != nil {
				return err
			}
			if err := writeFile(args[1], func(w io.Writer) error {
				return dataset.WriteSnapshot(w, items)
			}); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %d investments to %s\n", len(items), args[1])
			return nil
		},
	}
}

// writeFile creates path and writes it with fn, reporting close errors.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(f)
}
