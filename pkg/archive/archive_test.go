/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chainguard-dev/clog/slogtest"
	"github.com/chainguard-dev/codemod-bot/pkg/codemod"
	"github.com/chainguard-dev/codemod-bot/pkg/textdiff"
	"github.com/google/go-cmp/cmp"
	"gocloud.dev/blob/memblob"
)

func result() *codemod.Result {
	before, after := "var a = 1;\n", "const a = 1;\n"
	return &codemod.Result{
		Codemod: "next/13/app-router",
		Before:  before,
		After:   after,
		Diff:    textdiff.Diff(before, after),
	}
}

func TestKey(t *testing.T) {
	got := Key("acme", "web", 42, "next/13/app-router", "src/app/page.tsx")
	if want := "acme/web/42/next_13_app-router/src/app/page.tsx"; got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestPutMem(t *testing.T) {
	ctx := slogtest.Context(t)
	bucket := memblob.OpenBucket(nil)
	a := New(bucket)
	defer a.Close()

	key, err := a.Put(ctx, "acme/web/42/mod/src/a.ts", result())
	if err != nil {
		t.Fatalf("Put() = %v", err)
	}
	if key != "acme/web/42/mod/src/a.ts.diff" {
		t.Errorf("Put() key = %q", key)
	}

	got, err := a.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if diff := cmp.Diff("- var a = 1;\n+ const a = 1;\n", got); diff != "" {
		t.Errorf("stored diff mismatch (-want +got):\n%s", diff)
	}

	attrs, err := bucket.Attributes(ctx, key)
	if err != nil {
		t.Fatalf("Attributes() = %v", err)
	}
	if diff := cmp.Diff(map[string]string{
		"codemod":   "next/13/app-router",
		"additions": "1",
		"deletions": "1",
	}, attrs.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}
}

func TestPutFile(t *testing.T) {
	ctx := slogtest.Context(t)
	dir := t.TempDir()

	a, err := Open(ctx, "file://"+dir)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	defer a.Close()

	if _, err := a.Put(ctx, "acme/web/1/mod/a.ts", result()); err != nil {
		t.Fatalf("Put() = %v", err)
	}
	b, err := os.ReadFile(filepath.Join(dir, "acme", "web", "1", "mod", "a.ts.diff"))
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	if string(b) != "- var a = 1;\n+ const a = 1;\n" {
		t.Errorf("file content = %q", b)
	}
}

func TestPutWithoutDiff(t *testing.T) {
	ctx := slogtest.Context(t)
	a := New(memblob.OpenBucket(nil))
	defer a.Close()

	if _, err := a.Put(ctx, "k", &codemod.Result{}); err == nil {
		t.Error("Put() = nil error for a result without a diff")
	}
}

func TestOpenUnknownScheme(t *testing.T) {
	if _, err := Open(slogtest.Context(t), "nope://bucket"); err == nil {
		t.Error("Open() = nil error")
	}
}
