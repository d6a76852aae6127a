/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemod

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CreationError is returned when the workspace could not be created or the
// input file could not be written. No process is started in that case.
type CreationError struct {
	Err error
}

func (e *CreationError) Error() string { return fmt.Sprintf("creating workspace: %v", e.Err) }
func (e *CreationError) Unwrap() error { return e.Err }

// SpawnError is returned when the transformation process could not be started.
type SpawnError struct {
	Codemod string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting codemod %q: %v", e.Codemod, e.Err)
}
func (e *SpawnError) Unwrap() error { return e.Err }

// TimeoutError is returned when the process did not exit within Timeout.
// The process has been terminated and reaped by the time it is returned.
type TimeoutError struct {
	Codemod string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("codemod %q timed out after %v", e.Codemod, e.Timeout)
}

// Unwrap lets callers match timeouts with errors.Is(err, context.DeadlineExceeded).
func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// ReadError is returned when the process exited but the transformed file
// could not be read back.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string { return fmt.Sprintf("reading %s: %v", e.Path, e.Err) }
func (e *ReadError) Unwrap() error { return e.Err }

// Error kinds reported by Kind.
const (
	KindCreation = "creation"
	KindSpawn    = "spawn"
	KindTimeout  = "timeout"
	KindRead     = "read"
	KindCanceled = "canceled"
	KindUnknown  = "unknown"
)

// Kind classifies an error returned by Run for logs and metric labels.
// A nil error is reported as "ok".
func Kind(err error) string {
	var (
		ce *CreationError
		se *SpawnError
		te *TimeoutError
		re *ReadError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &te):
		return KindTimeout
	case errors.As(err, &ce):
		return KindCreation
	case errors.As(err, &se):
		return KindSpawn
	case errors.As(err, &re):
		return KindRead
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	default:
		return KindUnknown
	}
}
