/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package archive stores the rendered diff of every applied codemod in a
// blob bucket, so a change the bot committed can be audited later.
package archive

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/chainguard-dev/codemod-bot/pkg/codemod"
	"gocloud.dev/blob"

	// Bucket URL schemes.
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
)

// Archive writes codemod diffs to a bucket.
type Archive struct {
	bucket *blob.Bucket
}

// Open opens the bucket at url, e.g. gs://bucket/prefix, file:///tmp/diffs
// or mem://.
func Open(ctx context.Context, url string) (*Archive, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("opening bucket %s: %w", url, err)
	}
	return &Archive{bucket: bucket}, nil
}

// New wraps an open bucket.
func New(bucket *blob.Bucket) *Archive {
	return &Archive{bucket: bucket}
}

// Key is the object key, without extension, for a file changed by a codemod
// on a pull request.
func Key(owner, repo string, number int, codemodID, file string) string {
	return path.Join(owner, repo, strconv.Itoa(number), strings.ReplaceAll(codemodID, "/", "_"), file)
}

// Put writes the rendered diff of res under key + ".diff" and returns the
// full object key.
func (a *Archive) Put(ctx context.Context, key string, res *codemod.Result) (string, error) {
	if res == nil || res.Diff == nil {
		return "", fmt.Errorf("no diff to archive for %s", key)
	}
	key += ".diff"

	w, err := a.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: "text/x-diff; charset=utf-8",
		Metadata: map[string]string{
			"codemod":   res.Codemod,
			"additions": strconv.Itoa(res.Diff.Added()),
			"deletions": strconv.Itoa(res.Diff.Deleted()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("creating writer for %s: %w", key, err)
	}
	if _, err := w.Write([]byte(res.Diff.Text)); err != nil {
		w.Close()
		return "", fmt.Errorf("writing %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", key, err)
	}

	clog.FromContext(ctx).With("key", key).Info("Archived codemod diff")
	return key, nil
}

// Get returns the diff stored under key.
func (a *Archive) Get(ctx context.Context, key string) (string, error) {
	b, err := a.bucket.ReadAll(ctx, key)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return string(b), nil
}

// Close releases the bucket.
func (a *Archive) Close() error {
	return a.bucket.Close()
}
