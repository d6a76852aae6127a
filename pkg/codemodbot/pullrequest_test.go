/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import (
	"strings"
	"testing"

	"github.com/chainguard-dev/clog/slogtest"
	"github.com/google/go-github/v75/github"
)

const bumpPatch = `@@ -5,7 +5,7 @@
   "dependencies": {
-    "react": "^17.0.2",
+    "react": "^18.2.0",
     "lodash": "^4.17.21"
   }`

func pullRequestEvent(action string) github.PullRequestEvent {
	return github.PullRequestEvent{
		Action: github.Ptr(action),
		Number: github.Ptr(12),
		Repo: &github.Repository{
			Name:  github.Ptr("web"),
			Owner: &github.User{Login: github.Ptr("acme")},
		},
	}
}

func TestPullRequestComments(t *testing.T) {
	for _, action := range []string{"opened", "synchronize", "reopened"} {
		t.Run(action, func(t *testing.T) {
			ctx := slogtest.Context(t)
			cli := &fakeClient{files: []*github.CommitFile{
				{Filename: github.Ptr("README.md"), Status: github.Ptr("modified")},
				{Filename: github.Ptr("package.json"), Status: github.Ptr("modified"), Patch: github.Ptr(bumpPatch)},
			}}
			h := New(cli.clients(), &fakeRunner{})

			if err := h.PullRequest(ctx, pullRequestEvent(action)); err != nil {
				t.Fatalf("PullRequest() = %v", err)
			}
			body, ok := cli.upserts[DependenciesMarker]
			if !ok {
				t.Fatal("no dependency comment upserted")
			}
			if !strings.Contains(body, "| `react` | `^17.0.2` | `^18.2.0` | dependencies | **[MAJOR]** |") {
				t.Errorf("comment missing react row:\n%s", body)
			}
			if strings.Contains(body, "lodash") {
				t.Errorf("comment lists unchanged dependency:\n%s", body)
			}
		})
	}
}

func TestPullRequestSkips(t *testing.T) {
	tests := []struct {
		name   string
		action string
		files  []*github.CommitFile
	}{{
		name:   "closed",
		action: "closed",
		files:  []*github.CommitFile{{Filename: github.Ptr("package.json"), Status: github.Ptr("modified"), Patch: github.Ptr(bumpPatch)}},
	}, {
		name:   "no manifest",
		action: "opened",
		files:  []*github.CommitFile{{Filename: github.Ptr("src/index.ts"), Status: github.Ptr("modified")}},
	}, {
		name:   "removed manifest",
		action: "opened",
		files:  []*github.CommitFile{{Filename: github.Ptr("package.json"), Status: github.Ptr("removed"), Patch: github.Ptr(bumpPatch)}},
	}, {
		name:   "no version changes",
		action: "synchronize",
		files: []*github.CommitFile{{
			Filename: github.Ptr("package.json"),
			Status:   github.Ptr("modified"),
			Patch:    github.Ptr("@@ -1,3 +1,3 @@\n-  \"name\": \"old\",\n+  \"name\": \"new\","),
		}},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := slogtest.Context(t)
			cli := &fakeClient{files: tt.files}
			h := New(cli.clients(), &fakeRunner{})

			if err := h.PullRequest(ctx, pullRequestEvent(tt.action)); err != nil {
				t.Fatalf("PullRequest() = %v", err)
			}
			if len(cli.upserts) != 0 || len(cli.comments) != 0 {
				t.Errorf("unexpected comments: upserts=%v comments=%v", cli.upserts, cli.comments)
			}
		})
	}
}
