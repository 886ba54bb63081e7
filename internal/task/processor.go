package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/avast/retry-go"
	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/generation"
	"github.com/oljefondvakt/fundwatch/internal/platform/logger"
	"github.com/oljefondvakt/fundwatch/internal/prompt"
	"github.com/oljefondvakt/fundwatch/internal/redact"
	"github.com/oljefondvakt/fundwatch/internal/schema"
)

// DefaultMaxAttempts is the number of generation attempts per batch.
const DefaultMaxAttempts = 2

// maxRawLogged bounds how much of a rejected reply is logged.
const maxRawLogged = 8000

// Processor turns a claimed batch into a finalized one. Process must leave
// every item in done or error; it reports progress through onState.
type Processor interface {
	Process(ctx context.Context, b *Batch, onState func(WorkerState))
}

// Validator checks a decoded reply. *schema.Validator satisfies it.
type Validator interface {
	Validate(instance any) error
}

// BatchProcessorConfig holds the collaborators of a BatchProcessor.
type BatchProcessorConfig struct {
	Generator generation.Generator
	Prompt    *prompt.Template
	// Schema is sent to the model; it is stripped of keys the model API rejects.
	Schema map[string]any
	// Validator checks replies; nil skips schema validation.
	Validator Validator
	Profile   generation.Profile
	// Guidelines is the supporting PDF attached to every prompt, if any.
	Guidelines  []byte
	MaxAttempts int
}

// BatchProcessor generates shallow reports for a batch, retrying the whole
// batch on any failure. There is no partial success: either every item gets
// its report or every item is marked error.
type BatchProcessor struct {
	gen         generation.Generator
	prompt      *prompt.Template
	schema      map[string]any
	validator   Validator
	profile     generation.Profile
	guidelines  []byte
	maxAttempts int
	logger      *slog.Logger
}

var _ Processor = (*BatchProcessor)(nil)

// NewBatchProcessor creates a BatchProcessor.
func NewBatchProcessor(cfg BatchProcessorConfig, logger *slog.Logger) (*BatchProcessor, error) {
	if cfg.Generator == nil || cfg.Prompt == nil {
		return nil, fmt.Errorf("%w: generator and prompt are required", ErrInvalidConfig)
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		logger.Warn("invalid max attempts specified, using default",
			"specified", cfg.MaxAttempts,
			"default", DefaultMaxAttempts)
		attempts = DefaultMaxAttempts
	}
	return &BatchProcessor{
		gen:         cfg.Generator,
		prompt:      cfg.Prompt,
		schema:      schema.ForModel(cfg.Schema),
		validator:   cfg.Validator,
		profile:     cfg.Profile,
		guidelines:  cfg.Guidelines,
		maxAttempts: attempts,
		logger:      logger.With("component", "batch_processor"),
	}, nil
}

// Process implements Processor.
func (p *BatchProcessor) Process(ctx context.Context, b *Batch, onState func(WorkerState)) {
	log := logger.FromContextOrDefault(ctx, p.logger).With("batch_seq", b.Seq, "batch_size", len(b.Items))

	var (
		reports []json.RawMessage
		lastRaw string
	)
	req, err := p.request(b.Items)
	if err == nil {
		err = retry.Do(
			func() error {
				b.Attempts++
				onState(StateGenerating)
				res, err := generation.CallWithTimeout(ctx, p.gen, req)
				onState(StateValidating)
				if err != nil {
					return err
				}
				lastRaw = res.Raw
				reports, err = p.check(res, len(b.Items))
				return err
			},
			retry.Context(ctx),
			retry.Attempts(uint(p.maxAttempts)),
			retry.Delay(0),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(func(error) bool { return ctx.Err() == nil }),
			retry.OnRetry(func(n uint, err error) {
				log.WarnContext(ctx, "batch attempt failed",
					"attempt", n+1,
					"max_attempts", p.maxAttempts,
					"error", redact.Error(err))
			}),
		)
	}

	if err == nil {
		for i, item := range b.Items {
			// Items arrive in_progress from the coordinator.
			_ = item.CompleteShallow(reports[i])
		}
		log.InfoContext(ctx, "batch generated", "attempts", b.Attempts)
		return
	}

	b.Err = err
	log.ErrorContext(ctx, "batch failed, marking all items as error",
		"attempts", b.Attempts,
		"error", redact.Error(err),
		"investment_ids", b.IDs(),
		"raw_response", truncate(lastRaw, maxRawLogged))
	for _, item := range b.Items {
		_ = item.FailShallow()
	}
}

func (p *BatchProcessor) request(items []*domain.Investment) (generation.Request, error) {
	text, err := p.prompt.RenderBatch(items)
	if err != nil {
		return generation.Request{}, err
	}
	parts := make([]generation.Part, 0, 2)
	if len(p.guidelines) > 0 {
		parts = append(parts, generation.PDFPart(p.guidelines))
	}
	parts = append(parts, generation.TextPart(text))
	return generation.Request{Parts: parts, Schema: p.schema, Profile: p.profile}, nil
}

// check applies the success criteria in order: a JSON array, one entry per
// item, and schema conformance.
func (p *BatchProcessor) check(res *generation.Result, want int) ([]json.RawMessage, error) {
	entries, ok := res.Decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected a JSON array, got %T", generation.ErrInvalidResponse, res.Decoded)
	}
	if len(entries) != want {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, want, len(entries))
	}
	if p.validator != nil {
		if err := p.validator.Validate(res.Decoded); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchemaMismatch, err)
		}
	}

	reports := make([]json.RawMessage, len(entries))
	for i, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", generation.ErrInvalidResponse, i, err)
		}
		reports[i] = b
	}
	return reports, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
