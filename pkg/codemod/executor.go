/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemod

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Invocation describes one transformation process.
type Invocation struct {
	// Dir is the workspace directory and the process's working directory.
	Dir string
	// File is the path of the file to transform, inside Dir.
	File string
	// Codemod identifies the transformation.
	Codemod string
}

// Process is a started transformation.
type Process interface {
	// Wait blocks until the process exits. A non-nil error reports a
	// non-zero exit status or an I/O failure; it does not by itself make
	// the run fail.
	Wait() error
	// Terminate asks the process to stop. It does not wait for the exit.
	Terminate() error
}

// Executor starts transformation processes.
type Executor interface {
	Start(ctx context.Context, inv Invocation) (Process, error)
}

// pipeDrainDelay bounds how long Wait keeps copying output after the
// process is gone, in case something it spawned still holds the pipes.
const pipeDrainDelay = 250 * time.Millisecond

// CommandExecutor runs an external command as
//
//	Path Args... <codemod> Flags...
//
// in the workspace directory, with its output captured.
type CommandExecutor struct {
	Path  string
	Args  []string
	Flags []string
	// Env is appended to the current environment.
	Env []string
	// GracePeriod, when positive, makes Terminate send SIGTERM and wait that
	// long before killing. Zero kills the process group immediately.
	GracePeriod time.Duration
}

// NPX returns the executor for the codemod CLI distributed through npm.
func NPX() *CommandExecutor {
	return &CommandExecutor{
		Path:  "npx",
		Args:  []string{"codemod@latest", "run"},
		Flags: []string{"--allow-dirty", "--no-interactive"},
	}
}

// Argv returns the full command line for codemod.
func (e *CommandExecutor) Argv(codemod string) []string {
	argv := make([]string, 0, 2+len(e.Args)+len(e.Flags))
	argv = append(argv, e.Path)
	argv = append(argv, e.Args...)
	argv = append(argv, codemod)
	return append(argv, e.Flags...)
}

// Start implements Executor.
func (e *CommandExecutor) Start(ctx context.Context, inv Invocation) (Process, error) {
	if e.Path == "" {
		return nil, fmt.Errorf("no command configured")
	}
	argv := e.Argv(inv.Codemod)

	// The process lifetime is bounded by Terminate, not by the caller's
	// context, which only scopes the start.
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	cmd := exec.CommandContext(pctx, argv[0], argv[1:]...)
	cmd.Dir = inv.Dir
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), slices.Clone(e.Env)...)
	}
	setProcessGroup(cmd)
	if e.GracePeriod > 0 {
		cmd.Cancel = func() error { return signalGroup(cmd.Process, syscall.SIGTERM) }
		cmd.WaitDelay = e.GracePeriod
	} else {
		cmd.Cancel = func() error { return signalGroup(cmd.Process, syscall.SIGKILL) }
		cmd.WaitDelay = pipeDrainDelay
	}

	p := &commandProcess{cmd: cmd, cancel: cancel}
	cmd.Stdout = &p.stdout
	cmd.Stderr = &p.stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}
	return p, nil
}

type commandProcess struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc

	stdout, stderr bytes.Buffer

	once sync.Once
	err  error
}

func (p *commandProcess) Wait() error {
	p.once.Do(func() {
		defer p.cancel()
		if err := p.cmd.Wait(); err != nil {
			if out := strings.TrimSpace(p.stderr.String()); out != "" {
				err = fmt.Errorf("%w: %s", err, out)
			}
			p.err = err
		}
	})
	return p.err
}

func (p *commandProcess) Terminate() error {
	p.cancel()
	return nil
}
