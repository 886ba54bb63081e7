package generation_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/oljefondvakt/fundwatch/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(timeout time.Duration) generation.Request {
	return generation.Request{
		Parts:   []generation.Part{generation.TextPart("Equinor ASA from Norway")},
		Profile: generation.Profile{Name: generation.ProfileShallow, Model: "test", Timeout: timeout},
	}
}

func TestCallWithTimeout(t *testing.T) {
	t.Parallel()

	t.Run("returns result before deadline", func(t *testing.T) {
		t.Parallel()
		g := generation.GeneratorFunc(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			return &generation.Result{Raw: `[]`, Decoded: []any{}}, nil
		})

		res, err := generation.CallWithTimeout(context.Background(), g, request(time.Second))

		require.NoError(t, err)
		assert.Equal(t, `[]`, res.Raw)
	})

	t.Run("hung call times out and late output is dropped", func(t *testing.T) {
		t.Parallel()
		release := make(chan struct{})
		var finished atomic.Bool
		g := generation.GeneratorFunc(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			// Ignores ctx like a stuck client would.
			<-release
			finished.Store(true)
			return &generation.Result{Raw: "late"}, nil
		})

		start := time.Now()
		res, err := generation.CallWithTimeout(context.Background(), g, request(20*time.Millisecond))

		assert.Nil(t, res)
		assert.ErrorIs(t, err, generation.ErrTimeout)
		assert.ErrorIs(t, err, generation.ErrTransientFailure)
		assert.Less(t, time.Since(start), time.Second)

		close(release)
		assert.Eventually(t, finished.Load, time.Second, time.Millisecond,
			"late result must not block the generator goroutine")
	})

	t.Run("generator observing deadline maps to timeout", func(t *testing.T) {
		t.Parallel()
		g := generation.GeneratorFunc(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

		_, err := generation.CallWithTimeout(context.Background(), g, request(10*time.Millisecond))

		assert.ErrorIs(t, err, generation.ErrTimeout)
	})

	t.Run("parent cancellation is not a timeout", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		g := generation.GeneratorFunc(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		})

		_, err := generation.CallWithTimeout(ctx, g, request(time.Minute))

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, errors.Is(err, generation.ErrTimeout))
	})

	t.Run("generator error passes through", func(t *testing.T) {
		t.Parallel()
		g := generation.GeneratorFunc(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			return nil, generation.ErrContentBlocked
		})

		_, err := generation.CallWithTimeout(context.Background(), g, request(time.Second))

		assert.ErrorIs(t, err, generation.ErrContentBlocked)
		assert.ErrorIs(t, err, generation.ErrTransientFailure)
	})

	t.Run("nil result is invalid", func(t *testing.T) {
		t.Parallel()
		g := generation.GeneratorFunc(func(ctx context.Context, req generation.Request) (*generation.Result, error) {
			return nil, nil
		})

		_, err := generation.CallWithTimeout(context.Background(), g, request(0))

		assert.ErrorIs(t, err, generation.ErrInvalidResponse)
	})
}

func TestDecodeJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    any
		wantErr bool
	}{
		{"array", `[{"a":1}]`, []any{map[string]any{"a": float64(1)}}, false},
		{"fenced", "```json\n[1,2]\n```", []any{float64(1), float64(2)}, false},
		{"bare fence", "```\n{}\n```", map[string]any{}, false},
		{"empty", "   ", nil, true},
		{"truncated", `[{"a":`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := generation.DecodeJSON(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, generation.ErrInvalidResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPDFPart(t *testing.T) {
	t.Parallel()
	p := generation.PDFPart([]byte("%PDF-1.7"))
	assert.Equal(t, "application/pdf", p.MIMEType)
	assert.Empty(t, p.Text)
}
