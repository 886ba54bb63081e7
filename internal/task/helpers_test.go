package task

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/generation"
	"github.com/oljefondvakt/fundwatch/internal/mocks"
	"github.com/oljefondvakt/fundwatch/internal/prompt"
)

// countPrompt renders just the batch size, so fake generators know how
// many entries to return.
const countPrompt = "{{len .Items}}"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingInvestments(n int) []*domain.Investment {
	items := make([]*domain.Investment, n)
	for i := range items {
		items[i] = &domain.Investment{
			ID:           fmt.Sprintf("inv-%03d", i+1),
			Name:         fmt.Sprintf("Company %d", i+1),
			Country:      "Norway",
			ShallowState: domain.ShallowPending,
		}
	}
	return items
}

func claimedInvestments(n int) []*domain.Investment {
	items := pendingInvestments(n)
	for _, item := range items {
		item.ShallowState = domain.ShallowInProgress
	}
	return items
}

// requestedCount reads the batch size rendered by countPrompt. It runs on
// the generator goroutine, so it reports problems as errors.
func requestedCount(req generation.Request) (int, error) {
	if len(req.Parts) == 0 {
		return 0, fmt.Errorf("request has no parts")
	}
	return strconv.Atoi(strings.TrimSpace(req.Parts[len(req.Parts)-1].Text))
}

// reportsResult builds a reply holding n shallow reports.
func reportsResult(n int) *generation.Result {
	entries := make([]any, n)
	raw := make([]string, n)
	for i := range entries {
		entries[i] = map[string]any{
			"riskAssessment": map[string]any{"category": "3"},
		}
		raw[i] = `{"riskAssessment":{"category":"3"}}`
	}
	return &generation.Result{Raw: "[" + strings.Join(raw, ",") + "]", Decoded: entries}
}

// echoGenerator answers every request with one report per batch item.
func echoGenerator() *mocks.MockGenerator {
	return &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			n, err := requestedCount(req)
			if err != nil {
				return nil, err
			}
			return reportsResult(n), nil
		},
	}
}

func newTestProcessor(t *testing.T, gen generation.Generator, validator Validator) *BatchProcessor {
	t.Helper()
	tmpl, err := prompt.Parse(countPrompt)
	require.NoError(t, err)
	p, err := NewBatchProcessor(BatchProcessorConfig{
		Generator:   gen,
		Prompt:      tmpl,
		Validator:   validator,
		Profile:     generation.Profile{Name: generation.ProfileShallow, Model: "test-model"},
		MaxAttempts: DefaultMaxAttempts,
	}, testLogger())
	require.NoError(t, err)
	return p
}

// stateRecorder is a StateObserver that keeps every transition per worker.
type stateRecorder struct {
	mu   sync.Mutex
	seen map[int][]WorkerState
}

func newStateRecorder() *stateRecorder {
	return &stateRecorder{seen: make(map[int][]WorkerState)}
}

func (r *stateRecorder) observe(workerID int, from, to WorkerState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen[workerID]) == 0 {
		r.seen[workerID] = append(r.seen[workerID], from)
	}
	r.seen[workerID] = append(r.seen[workerID], to)
}

func (r *stateRecorder) states(workerID int) []WorkerState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WorkerState(nil), r.seen[workerID]...)
}
