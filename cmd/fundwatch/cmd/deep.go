package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oljefondvakt/fundwatch/internal/deepreport"
	"github.com/oljefondvakt/fundwatch/internal/platform/gemini"
	"github.com/oljefondvakt/fundwatch/internal/prompt"
	"github.com/oljefondvakt/fundwatch/internal/schema"
)

func deepCmd(v *viper.Viper, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deep <pdf>",
		Short: "Generate a deep report from one annual report PDF",
		Long: `Generates a deep report for the investment named by the PDF file,
e.g. reports/equinor-asa.pdf for investment equinor-asa.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.RunE = withApp(v, opts, func(cmd *cobra.Command, app *application, args []string) error {
		svc, err := newDeepService(cmd, app)
		if err != nil {
			return err
		}
		inv, err := svc.Generate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: deep report %s\n", inv.ID, inv.DeepState)
		return nil
	})
	bindDeepFlags(cmd)
	return cmd
}

func syncDeepCmd(v *viper.Viper, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync-deep [dir]",
		Short: "Generate deep reports for every PDF in a directory",
		Long: `Generates deep reports for every *.pdf in dir whose investment has no
finished deep report yet. dir defaults to paths.reports_dir.`,
		Args: cobra.MaximumNArgs(1),
	}
	cmd.RunE = withApp(v, opts, func(cmd *cobra.Command, app *application, args []string) error {
		dir := app.config.Paths.ReportsDir
		if len(args) == 1 {
			dir = args[0]
		}
		svc, err := newDeepService(cmd, app)
		if err != nil {
			return err
		}
		report, err := svc.Sync(cmd.Context(), dir)
		if report != nil {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(),
				"%d PDFs: processed %d, skipped %d, missing %d, failed %d\n",
				report.Found, report.Processed, report.Skipped, report.Missing, report.Failed)
		}
		return err
	})
	bindDeepFlags(cmd)
	return cmd
}

func bindDeepFlags(cmd *cobra.Command) {
	cmd.Flags().String("prompt", "", "deep prompt template file")
	cmd.Flags().String("schema", "", "deep report JSON schema file")
	bindFlags(cmd, map[string]string{
		"paths.deep_prompt": "prompt",
		"paths.deep_schema": "schema",
	}, false)
}

func newDeepService(cmd *cobra.Command, app *application) (*deepreport.Service, error) {
	cfg := app.config

	tmpl, err := prompt.LoadDeep(cfg.Paths.DeepPrompt)
	if err != nil {
		return nil, err
	}

	dcfg := deepreport.Config{
		Prompt:  tmpl,
		Profile: gemini.DeepProfile(cfg.LLM),
	}
	if cfg.Paths.DeepSchema != "" {
		s, err := schema.Load(cfg.Paths.DeepSchema)
		if err != nil {
			return nil, err
		}
		validator, err := schema.NewValidator(s)
		if err != nil {
			return nil, err
		}
		dcfg.Schema = s
		dcfg.Validator = validator
	}

	dcfg.Generator, err = app.generator(cmd.Context())
	if err != nil {
		return nil, err
	}
	return deepreport.NewService(app.store, dcfg, app.logger)
}
