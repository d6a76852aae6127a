/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/chainguard-dev/codemod-bot/pkg/manifest"
)

// DependenciesMarker identifies the dependency summary comment so it is
// edited in place on every push.
const DependenciesMarker = "<!--codemod-bot:dependencies-->"

var dependenciesTmpl = template.Must(template.New("dependencies").Parse(
	"### Dependency changes\n\n" +
		"| Package | From | To | Section | Major |\n" +
		"| --- | --- | --- | --- | --- |\n" +
		"{{range .}}| `{{.Name}}` | `{{.OldVersion}}` | `{{.NewVersion}}` | {{.Section}} | {{if .IsMajor}}**[MAJOR]**{{end}} |\n{{end}}" +
		"\nComment `/apply <codemod>` to run a codemod against the files changed in this pull request.\n"))

// AppliedFile is a file the codemod changed and that was committed.
type AppliedFile struct {
	Path      string
	Commit    string
	Additions int
	Deletions int
}

// FailedFile is a file the codemod could not be applied to.
type FailedFile struct {
	Path   string
	Reason string
}

type summary struct {
	Codemod string
	Applied []AppliedFile
	Failed  []FailedFile
}

var summaryTmpl = template.Must(template.New("summary").Parse(
	"{{if .Applied}}Codemod `{{.Codemod}}` was applied to the following files:\n\n" +
		"{{range .Applied}}- `{{.Path}}` (+{{.Additions}} -{{.Deletions}}) in {{.Commit}}\n{{end}}" +
		"{{else}}Codemod `{{.Codemod}}` made no changes.\n{{end}}" +
		"{{if .Failed}}\nThe codemod could not be applied to:\n\n" +
		"{{range .Failed}}- `{{.Path}}`: {{.Reason}}\n{{end}}{{end}}"))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s template: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

// DependenciesComment renders the dependency summary for changes.
func DependenciesComment(changes []manifest.DependencyChange) (string, error) {
	return render(dependenciesTmpl, changes)
}

// SummaryComment renders the outcome of an /apply command.
func SummaryComment(codemodID string, applied []AppliedFile, failed []FailedFile) (string, error) {
	return render(summaryTmpl, summary{Codemod: codemodID, Applied: applied, Failed: failed})
}
