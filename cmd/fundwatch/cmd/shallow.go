package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/oljefondvakt/fundwatch/internal/events"
	"github.com/oljefondvakt/fundwatch/internal/platform/gemini"
	"github.com/oljefondvakt/fundwatch/internal/prompt"
	"github.com/oljefondvakt/fundwatch/internal/schema"
	"github.com/oljefondvakt/fundwatch/internal/task"
)

func shallowCmd(v *viper.Viper, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shallow [count]",
		Short: "Generate shallow risk reports for pending investments",
		Long: `Claims up to count pending investments in batches, generates one shallow
report per investment and stores the outcome. count defaults to run.total_items.`,
		Args: cobra.MaximumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return nil
			}
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("count must be a positive integer, got %q", args[0])
			}
			v.Set("run.total_items", n)
			return nil
		},
	}
	cmd.RunE = withApp(v, opts, runShallow)

	cmd.Flags().Int("workers", 0, "number of concurrent workers")
	cmd.Flags().Int("batch-size", 0, "investments per generation call")
	cmd.Flags().Int("max-attempts", 0, "generation attempts per batch")
	cmd.Flags().String("guidelines", "", "supporting PDF attached to every prompt")
	cmd.Flags().String("prompt", "", "shallow prompt template file")
	cmd.Flags().String("schema", "", "shallow report JSON schema file")
	cmd.Flags().Bool("progress", false, "print a line for every persisted batch")
	bindFlags(cmd, map[string]string{
		"run.workers":           "workers",
		"run.batch_size":        "batch-size",
		"run.max_attempts":      "max-attempts",
		"paths.guidelines_pdf":  "guidelines",
		"paths.prompt_template": "prompt",
		"paths.shallow_schema":  "schema",
	}, false)

	return cmd
}

func runShallow(cmd *cobra.Command, app *application, _ []string) error {
	ctx := cmd.Context()
	cfg := app.config

	processor, err := newShallowProcessor(cmd, app)
	if err != nil {
		return err
	}

	runCfg := task.RunnerConfigFrom(cfg.Run)
	if progress, _ := cmd.Flags().GetBool("progress"); progress {
		runCfg.Events = progressEmitter(cmd.OutOrStdout(), app.logger)
	}

	runner, err := task.NewRunner(app.store, processor, runCfg, app.logger)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx)
	if report != nil {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(),
			"run %s: claimed %d of %d, completed %d (done %d, error %d) in %d batches, %s\n",
			report.RunID, report.Claimed, report.Target, report.Completed,
			report.Done, report.Failed, report.Batches, report.Duration.Round(time.Millisecond))
	}
	return err
}

// progressEmitter prints one line per persisted batch to out.
func progressEmitter(out io.Writer, logger *slog.Logger) events.EventEmitter {
	emitter := events.NewInMemoryEventEmitter(logger)
	emitter.RegisterHandler(events.HandlerFunc(func(_ context.Context, e *events.RunEvent) error {
		if e.Type != events.TypeBatchPersisted {
			return nil
		}
		var p events.BatchPersisted
		if err := e.UnmarshalPayload(&p); err != nil {
			return err
		}
		_, err := fmt.Fprintf(out, "batch %d (worker %d): %d items, %d failed, %d/%d completed\n",
			p.Seq, p.WorkerID, p.Size, p.Failed, p.Completed, p.Target)
		return err
	}))
	return emitter
}

// newShallowProcessor loads every startup input. Any unreadable input is
// fatal before a worker starts.
func newShallowProcessor(cmd *cobra.Command, app *application) (*task.BatchProcessor, error) {
	cfg := app.config

	tmpl, err := prompt.LoadShallow(cfg.Paths.PromptTemplate)
	if err != nil {
		return nil, err
	}

	var s map[string]any
	if cfg.Paths.ShallowSchema != "" {
		s, err = schema.Load(cfg.Paths.ShallowSchema)
	} else {
		s, err = schema.ShallowBatch()
	}
	if err != nil {
		return nil, err
	}
	validator, err := schema.NewValidator(s)
	if err != nil {
		return nil, err
	}

	var guidelines []byte
	if cfg.Paths.GuidelinesPDF != "" {
		guidelines, err = os.ReadFile(cfg.Paths.GuidelinesPDF)
		if err != nil {
			return nil, fmt.Errorf("failed to read guidelines: %w", err)
		}
	}

	gen, err := app.generator(cmd.Context())
	if err != nil {
		return nil, err
	}

	return task.NewBatchProcessor(task.BatchProcessorConfig{
		Generator:   gen,
		Prompt:      tmpl,
		Schema:      s,
		Validator:   validator,
		Profile:     gemini.ShallowProfile(cfg.LLM),
		Guidelines:  guidelines,
		MaxAttempts: cfg.Run.MaxAttempts,
	}, app.logger)
}
