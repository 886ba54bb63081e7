package deepreport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/generation"
	"github.com/oljefondvakt/fundwatch/internal/platform/logger"
	"github.com/oljefondvakt/fundwatch/internal/prompt"
	"github.com/oljefondvakt/fundwatch/internal/redact"
	"github.com/oljefondvakt/fundwatch/internal/schema"
	"github.com/oljefondvakt/fundwatch/internal/store"
)

// Validator checks a decoded deep report. *schema.Validator satisfies it.
type Validator interface {
	Validate(instance any) error
}

// Config holds the collaborators of a Service.
type Config struct {
	Generator generation.Generator
	Prompt    *prompt.Template
	// Schema is sent to the model; nil lets the model answer free-form JSON.
	Schema map[string]any
	// Validator checks replies; nil skips validation.
	Validator Validator
	Profile   generation.Profile
}

// Service produces deep reports.
type Service struct {
	store     store.InvestmentStore
	gen       generation.Generator
	prompt    *prompt.Template
	schema    map[string]any
	validator Validator
	profile   generation.Profile
	logger    *slog.Logger
}

// NewService creates a Service.
func NewService(s store.InvestmentStore, cfg Config, logger *slog.Logger) (*Service, error) {
	if s == nil || cfg.Generator == nil || cfg.Prompt == nil {
		return nil, fmt.Errorf("%w: store, generator and prompt are required", ErrInvalidConfig)
	}
	return &Service{
		store:     s,
		gen:       cfg.Generator,
		prompt:    cfg.Prompt,
		schema:    schema.ForModel(cfg.Schema),
		validator: cfg.Validator,
		profile:   cfg.Profile,
		logger:    logger.With("component", "deep_report"),
	}, nil
}

// IDFromPath derives the investment ID from a report file name,
// e.g. "reports/equinor-asa.pdf" is "equinor-asa".
func IDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Generate creates the deep report for the investment named by pdfPath and
// stores it. A missing investment returns store.ErrInvestmentNotFound and
// changes nothing. A failed generation marks the investment with
// DeepState error, stores that, and returns the generation error.
func (s *Service) Generate(ctx context.Context, pdfPath string) (*domain.Investment, error) {
	id := IDFromPath(pdfPath)
	ctx, log := logger.With(ctx, "investment_id", id)

	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up %s: %w", id, err)
	}

	pdf, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("read report pdf: %w", err)
	}

	log.InfoContext(ctx, "generating deep report", "name", inv.Name, "pdf", pdfPath)
	report, genErr := s.generate(ctx, inv, pdf)
	if genErr != nil {
		inv.DeepState = domain.DeepError
		log.ErrorContext(ctx, "deep report failed", "error", redact.Error(genErr))
	} else {
		inv.DeepReport = report
		inv.DeepState = domain.DeepDone
	}

	// The outcome is stored even when the caller has given up waiting.
	if err := s.store.Put(context.WithoutCancel(ctx), inv); err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrPersist, id, err)
	}
	if genErr != nil {
		return inv, genErr
	}
	log.InfoContext(ctx, "deep report stored")
	return inv, nil
}

func (s *Service) generate(ctx context.Context, inv *domain.Investment, pdf []byte) (json.RawMessage, error) {
	text, err := s.prompt.RenderDeep(inv)
	if err != nil {
		return nil, err
	}
	req := generation.Request{
		Parts:   []generation.Part{generation.PDFPart(pdf), generation.TextPart(text)},
		Schema:  s.schema,
		Profile: s.profile,
	}

	res, err := generation.CallWithTimeout(ctx, s.gen, req)
	if err != nil {
		return nil, err
	}
	if _, ok := res.Decoded.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: expected a JSON object, got %T", ErrInvalidReport, res.Decoded)
	}
	if s.validator != nil {
		if err := s.validator.Validate(res.Decoded); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
		}
	}

	report, err := json.Marshal(res.Decoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}
	return report, nil
}

// SyncReport summarizes a directory sync.
type SyncReport struct {
	Found     int
	Processed int
	// Skipped counts investments that already have a deep report.
	Skipped int
	// Missing counts PDFs with no matching investment.
	Missing int
	Failed  int
}

// Sync generates deep reports for every *.pdf in dir whose investment has
// no finished deep report. Files are handled one at a time. Generation
// failures are counted and do not stop the sync; store failures do.
func (s *Service) Sync(ctx context.Context, dir string) (*SyncReport, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read reports directory: %w", err)
	}

	report := &SyncReport{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".pdf" {
			continue
		}
		report.Found++
	}
	s.logger.InfoContext(ctx, "found report pdfs", "dir", dir, "count", report.Found)

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".pdf" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		path := filepath.Join(dir, e.Name())
		id := IDFromPath(path)

		inv, err := s.store.Get(ctx, id)
		switch {
		case store.IsNotFoundError(err):
			s.logger.WarnContext(ctx, "no investment for report, skipping", "investment_id", id)
			report.Missing++
			continue
		case err != nil:
			return report, fmt.Errorf("look up %s: %w", id, err)
		case inv.DeepState == domain.DeepDone:
			s.logger.DebugContext(ctx, "deep report already exists, skipping", "investment_id", id)
			report.Skipped++
			continue
		}

		_, err = s.Generate(ctx, path)
		switch {
		case err == nil:
			report.Processed++
		case errors.Is(err, ErrPersist):
			return report, err
		default:
			report.Failed++
		}
	}

	s.logger.InfoContext(ctx, "deep report sync complete",
		"found", report.Found,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"missing", report.Missing,
		"failed", report.Failed)
	return report, nil
}
