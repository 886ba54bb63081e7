package generation

import (
	"context"
	"errors"
	"fmt"
)

type callResult struct {
	res *Result
	err error
}

// CallWithTimeout runs g.Generate in its own goroutine and waits at most
// req.Profile.Timeout for it. On deadline the call's context is cancelled and
// ErrTimeout is returned; whatever the goroutine produces afterwards is
// dropped into a buffered channel nobody reads. A zero timeout waits for ctx only.
//
// If the parent ctx ends first, its error is returned unwrapped so callers can
// distinguish shutdown from a slow model.
func CallWithTimeout(ctx context.Context, g Generator, req Request) (*Result, error) {
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if req.Profile.Timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, req.Profile.Timeout)
	}
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		res, err := g.Generate(callCtx, req)
		done <- callResult{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(out.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w after %s: %w", ErrTimeout, req.Profile.Timeout, out.err)
			}
			return nil, out.err
		}
		if out.res == nil {
			return nil, fmt.Errorf("%w: generator returned no result", ErrInvalidResponse)
		}
		return out.res, nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w after %s", ErrTimeout, req.Profile.Timeout)
	}
}
