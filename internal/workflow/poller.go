// Package workflow blocks until a remote workflow finishes.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"terminus/internal/api"
	"terminus/internal/util"
)

// ErrTimeout is returned when a workflow does not finish within Options.Timeout.
var ErrTimeout = errors.New("timed out waiting for workflow")

// Pollable is a remote workflow handle.
type Pollable interface {
	ID() string
	Refresh(ctx context.Context) error
	IsFinished() bool
	IsSuccessful() bool
	Message() string
}

// Options bound the poll loop.
type Options struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Timeout     time.Duration
	// MaxRetries is how many consecutive refresh errors are tolerated.
	MaxRetries int
}

// FailedError carries the message of a workflow that finished unsuccessfully.
type FailedError struct {
	WorkflowID string
	Message    string
}

func (e *FailedError) Error() string {
	return e.Message
}

// Wait polls wf until it finishes, the timeout elapses or ctx is cancelled. A finished but
// unsuccessful workflow yields a *FailedError.
func Wait(ctx context.Context, wf Pollable, opts Options) error {
	if opts.Interval <= 0 {
		return fmt.Errorf("workflow poll interval must be positive, got %v", opts.Interval)
	}
	if opts.MaxInterval < opts.Interval {
		opts.MaxInterval = opts.Interval
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	interval := opts.Interval
	failures := 0
	util.Log.Debugf("Waiting for workflow %s (timeout %v)...", wf.ID(), opts.Timeout)

	for !wf.IsFinished() {
		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return waitError(wf, ctx.Err(), opts.Timeout)
		}

		if err := wf.Refresh(ctx); err != nil {
			if ctx.Err() != nil {
				return waitError(wf, ctx.Err(), opts.Timeout)
			}
			var apiErr *api.Error
			if errors.As(err, &apiErr) && !apiErr.Temporary() {
				return err
			}
			failures++
			if failures > opts.MaxRetries {
				return fmt.Errorf("giving up on workflow %s after %d failed refreshes: %w", wf.ID(), failures, err)
			}
			util.Log.Warnf("Workflow %s refresh failed (%d/%d): %v", wf.ID(), failures, opts.MaxRetries, err)
		} else {
			failures = 0
		}

		interval *= 2
		if interval > opts.MaxInterval {
			interval = opts.MaxInterval
		}
	}

	util.Log.Debugf("Workflow %s finished after %v.", wf.ID(), time.Since(start).Round(time.Millisecond))
	if !wf.IsSuccessful() {
		return &FailedError{WorkflowID: wf.ID(), Message: wf.Message()}
	}
	return nil
}

func waitError(wf Pollable, ctxErr error, timeout time.Duration) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return fmt.Errorf("workflow %s: %w after %v", wf.ID(), ErrTimeout, timeout)
	}
	return fmt.Errorf("waiting for workflow %s cancelled: %w", wf.ID(), ctxErr)
}
