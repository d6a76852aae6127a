/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemod

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"
)

// DefaultFileName is the name the content is written under when the caller
// does not supply one.
const DefaultFileName = "temp.ts"

const workspacePrefix = ".codemod-"

// Workspace is a private directory holding the single file a codemod run
// operates on.
type Workspace struct {
	dir  string
	file string

	once sync.Once
	err  error
}

// NewWorkspace creates a uniquely named directory under root that will hold
// a file called name. Only the base of name is used; a name without one
// falls back to DefaultFileName. An empty root means os.TempDir().
func NewWorkspace(root, name string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	name = filepath.Base(name)
	switch name {
	case ".", "..", string(filepath.Separator):
		name = DefaultFileName
	}

	dir := filepath.Join(root, workspacePrefix+uuid.NewString())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	// Mkdir rather than MkdirAll: an existing directory means a collision.
	if err := os.Mkdir(dir, 0o700); err != nil {
		return nil, err
	}
	return &Workspace{dir: dir, file: filepath.Join(dir, name)}, nil
}

// Path returns the workspace directory.
func (w *Workspace) Path() string { return w.dir }

// File returns the path of the file inside the workspace.
func (w *Workspace) File() string { return w.file }

// Write replaces the file's content.
func (w *Workspace) Write(content string) error {
	return os.WriteFile(w.file, []byte(content), 0o600)
}

// Read returns the file's current content.
func (w *Workspace) Read() (string, error) {
	b, err := os.ReadFile(w.file)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Destroy removes the workspace and everything in it. It is safe to call
// more than once; only the first call does any work.
func (w *Workspace) Destroy(ctx context.Context) error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.dir); err != nil {
			w.err = fmt.Errorf("removing workspace %s: %w", w.dir, err)
			clog.WarnContextf(ctx, "%v", w.err)
		}
	})
	return w.err
}
