/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemod

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/codemod-bot/pkg/textdiff"
	"github.com/jonboulle/clockwork"
)

// DefaultTimeout bounds a run whose Request carries no timeout.
const DefaultTimeout = 30 * time.Second

// Request is a single transformation of Content by Codemod.
type Request struct {
	Content string
	Codemod string
	// FileName names the file inside the workspace. Only the base name is
	// used, so transformations keyed on the extension see the right one.
	FileName string
	// Timeout of zero or less means the runner's default.
	Timeout time.Duration
}

// Result is the outcome of a completed run.
type Result struct {
	Codemod string
	Before  string
	After   string
	Diff    *textdiff.Summary
}

// Runner runs codemods through an Executor. It holds no per-run state and
// is safe for concurrent use.
type Runner struct {
	exec     Executor
	root     string
	clock    clockwork.Clock
	timeout  time.Duration
	fileName string
}

// Option configures a Runner.
type Option func(*Runner)

// WithRoot sets the directory workspaces are created in. The default is
// os.TempDir().
func WithRoot(root string) Option {
	return func(r *Runner) { r.root = root }
}

// WithClock sets the clock the timeout is measured with.
func WithClock(clock clockwork.Clock) Option {
	return func(r *Runner) { r.clock = clock }
}

// WithDefaultTimeout sets the timeout for requests that carry none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithFileName sets the file name used for requests that carry none.
func WithFileName(name string) Option {
	return func(r *Runner) { r.fileName = name }
}

// New returns a Runner that starts processes with exec.
func New(exec Executor, opts ...Option) *Runner {
	r := &Runner{
		exec:     exec,
		root:     os.TempDir(),
		clock:    clockwork.NewRealClock(),
		timeout:  DefaultTimeout,
		fileName: DefaultFileName,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run transforms req.Content and returns the before and after snapshots
// with their diff.
//
// A process that exits, with any status, produces a Result from whatever
// the file holds afterwards. A process still running at the timeout is
// terminated and reaped, and a *TimeoutError is returned. Cancellation of
// ctx is handled the same way and returns the context's error. The
// workspace is removed before Run returns in every case.
func (r *Runner) Run(ctx context.Context, req Request) (res *Result, err error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	name := req.FileName
	if name == "" {
		name = r.fileName
	}

	log := clog.FromContext(ctx).With("codemod", req.Codemod)
	ctx = clog.WithLogger(ctx, log)

	start := r.clock.Now()
	defer func() {
		outcome := Kind(err)
		observe(req.Codemod, outcome, r.clock.Since(start))
		if err != nil {
			log.Warnf("codemod run failed (%s): %v", outcome, err)
		}
	}()

	ws, err := NewWorkspace(r.root, name)
	if err != nil {
		return nil, &CreationError{Err: err}
	}
	workspacesInFlight.Inc()
	defer func() {
		_ = ws.Destroy(ctx)
		workspacesInFlight.Dec()
	}()

	if err := ws.Write(req.Content); err != nil {
		return nil, &CreationError{Err: err}
	}

	proc, err := r.exec.Start(ctx, Invocation{
		Dir:     ws.Path(),
		File:    ws.File(),
		Codemod: req.Codemod,
	})
	if err != nil {
		return nil, &SpawnError{Codemod: req.Codemod, Err: err}
	}
	log.Debugf("started codemod in %s", ws.Path())

	exited := make(chan error, 1)
	go func() { exited <- proc.Wait() }()

	timer := r.clock.NewTimer(timeout)
	defer timer.Stop()

	select {
	case werr := <-exited:
		if werr != nil {
			log.Infof("codemod exited with error, reading output anyway: %v", werr)
		}

	case <-timer.Chan():
		r.terminate(ctx, proc, exited)
		return nil, &TimeoutError{Codemod: req.Codemod, Timeout: timeout}

	case <-ctx.Done():
		r.terminate(ctx, proc, exited)
		return nil, fmt.Errorf("running codemod %q: %w", req.Codemod, ctx.Err())
	}

	after, err := ws.Read()
	if err != nil {
		return nil, &ReadError{Path: ws.File(), Err: err}
	}

	return &Result{
		Codemod: req.Codemod,
		Before:  req.Content,
		After:   after,
		Diff:    textdiff.Diff(req.Content, after),
	}, nil
}

// terminate stops proc and blocks until it has been reaped, so the
// workspace is not removed from under a live process.
func (r *Runner) terminate(ctx context.Context, proc Process, exited <-chan error) {
	if err := proc.Terminate(); err != nil {
		clog.WarnContextf(ctx, "terminating codemod: %v", err)
	}
	<-exited
}
