package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oljefondvakt/fundwatch/internal/domain"
	"github.com/oljefondvakt/fundwatch/internal/generation"
	"github.com/oljefondvakt/fundwatch/internal/mocks"
	"github.com/oljefondvakt/fundwatch/internal/prompt"
	"github.com/oljefondvakt/fundwatch/internal/schema"
)

func noState(WorkerState) {}

func TestNewBatchProcessor(t *testing.T) {
	t.Parallel()

	tmpl, err := prompt.Parse(countPrompt)
	require.NoError(t, err)

	_, err = NewBatchProcessor(BatchProcessorConfig{Prompt: tmpl}, testLogger())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewBatchProcessor(BatchProcessorConfig{
		Generator: &mocks.MockGenerator{},
		Prompt:    tmpl,
	}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxAttempts, p.maxAttempts)
}

func TestBatchProcessor_Success(t *testing.T) {
	t.Parallel()

	gen := echoGenerator()
	p := newTestProcessor(t, gen, nil)
	b := &Batch{Seq: 1, Items: claimedInvestments(10)}

	var states []WorkerState
	p.Process(context.Background(), b, func(s WorkerState) { states = append(states, s) })

	assert.False(t, b.Failed())
	assert.Equal(t, 1, b.Attempts)
	assert.Equal(t, 1, gen.Calls())
	assert.Equal(t, []WorkerState{StateGenerating, StateValidating}, states)
	for _, item := range b.Items {
		assert.Equal(t, domain.ShallowDone, item.ShallowState)
		assert.JSONEq(t, `{"riskAssessment":{"category":"3"}}`, string(item.ShallowReport))
	}
}

// A short reply on the first attempt is retried with the same batch.
func TestBatchProcessor_RetriesCountMismatch(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	gen := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			if calls.Add(1) == 1 {
				return reportsResult(9), nil
			}
			return reportsResult(10), nil
		},
	}
	p := newTestProcessor(t, gen, nil)
	b := &Batch{Seq: 1, Items: claimedInvestments(10)}

	var states []WorkerState
	p.Process(context.Background(), b, func(s WorkerState) { states = append(states, s) })

	assert.False(t, b.Failed())
	assert.Equal(t, 2, b.Attempts)
	assert.Equal(t, []WorkerState{StateGenerating, StateValidating, StateGenerating, StateValidating}, states)
	for _, item := range b.Items {
		assert.Equal(t, domain.ShallowDone, item.ShallowState)
	}

	reqs := gen.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0].Parts, reqs[1].Parts, "retry must resend the same batch")
}

func TestBatchProcessor_FailsWholeBatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		result    *generation.Result
		err       error
		validator func(t *testing.T) Validator
		wantErr   error
	}{
		{
			name:    "count mismatch on every attempt",
			result:  reportsResult(9),
			wantErr: ErrCountMismatch,
		},
		{
			name:    "not an array",
			result:  &generation.Result{Raw: `{}`, Decoded: map[string]any{}},
			wantErr: generation.ErrInvalidResponse,
		},
		{
			name:    "generator error",
			err:     generation.ErrContentBlocked,
			wantErr: generation.ErrContentBlocked,
		},
		{
			name:   "schema mismatch",
			result: reportsResult(4),
			validator: func(t *testing.T) Validator {
				v, err := schema.NewValidator(map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []any{"companyProfile"},
					},
				})
				require.NoError(t, err)
				return v
			},
			wantErr: ErrSchemaMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gen := &mocks.MockGenerator{Result: tt.result, Err: tt.err}
			var v Validator
			if tt.validator != nil {
				v = tt.validator(t)
			}
			p := newTestProcessor(t, gen, v)
			b := &Batch{Seq: 1, Items: claimedInvestments(4)}

			p.Process(context.Background(), b, noState)

			require.True(t, b.Failed())
			assert.ErrorIs(t, b.Err, tt.wantErr)
			assert.ErrorIs(t, b.Err, generation.ErrTransientFailure)
			assert.Equal(t, DefaultMaxAttempts, b.Attempts)
			assert.Equal(t, DefaultMaxAttempts, gen.Calls())
			for _, item := range b.Items {
				assert.Equal(t, domain.ShallowError, item.ShallowState)
				assert.Empty(t, item.ShallowReport, "no partial result may be applied")
			}
		})
	}
}

// A call that outlives its deadline is abandoned and the batch retried.
func TestBatchProcessor_TimeoutTriggersRetry(t *testing.T) {
	t.Parallel()

	var (
		calls     atomic.Int32
		cancelled = make(chan struct{})
	)
	gen := &mocks.MockGenerator{
		GenerateFn: func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			if calls.Add(1) == 1 {
				<-ctx.Done()
				close(cancelled)
				return nil, ctx.Err()
			}
			return reportsResult(5), nil
		},
	}
	tmpl, err := prompt.Parse(countPrompt)
	require.NoError(t, err)
	p, err := NewBatchProcessor(BatchProcessorConfig{
		Generator:   gen,
		Prompt:      tmpl,
		Profile:     generation.Profile{Name: generation.ProfileShallow, Timeout: 20 * time.Millisecond},
		MaxAttempts: 2,
	}, testLogger())
	require.NoError(t, err)

	b := &Batch{Seq: 1, Items: claimedInvestments(5)}
	p.Process(context.Background(), b, noState)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("timed out call was never cancelled")
	}
	assert.False(t, b.Failed())
	assert.Equal(t, 2, b.Attempts)
	assert.Equal(t, int32(2), calls.Load())
	for _, item := range b.Items {
		assert.Equal(t, domain.ShallowDone, item.ShallowState)
	}
}

func TestBatchProcessor_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gen := echoGenerator()
	p := newTestProcessor(t, gen, nil)
	b := &Batch{Seq: 1, Items: claimedInvestments(3)}

	p.Process(ctx, b, noState)

	require.True(t, b.Failed())
	assert.True(t, errors.Is(b.Err, context.Canceled))
	assert.Zero(t, gen.Calls())
	for _, item := range b.Items {
		assert.Equal(t, domain.ShallowError, item.ShallowState)
	}
}

func TestBatchProcessor_AttachesGuidelines(t *testing.T) {
	t.Parallel()

	gen := echoGenerator()
	tmpl, err := prompt.Parse(countPrompt)
	require.NoError(t, err)
	p, err := NewBatchProcessor(BatchProcessorConfig{
		Generator:  gen,
		Prompt:     tmpl,
		Guidelines: []byte("%PDF-1.7"),
		Schema: map[string]any{
			"$schema": "https://json-schema.org/draft/2020-12/schema",
			"type":    "array",
		},
	}, testLogger())
	require.NoError(t, err)

	p.Process(context.Background(), &Batch{Items: claimedInvestments(2)}, noState)

	reqs := gen.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Parts, 2)
	assert.Equal(t, "application/pdf", reqs[0].Parts[0].MIMEType)
	assert.Equal(t, "2", reqs[0].Parts[1].Text)
	assert.NotContains(t, reqs[0].Schema, "$schema")
	assert.Equal(t, "array", reqs[0].Schema["type"])
}
