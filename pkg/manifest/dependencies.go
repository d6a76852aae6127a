/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package manifest extracts dependency version changes from the unified
// diff of a package.json manifest.
//
// The input is a diff fragment rather than a complete document, so it is
// scanned line by line with regular expressions instead of being parsed
// as JSON.
package manifest

import (
	"regexp"
	"strings"

	"github.com/chainguard-dev/codemod-bot/pkg/version"
	"github.com/google/go-github/v75/github"
)

// FileName is the manifest this package understands.
const FileName = "package.json"

// Section is the manifest object a dependency is declared in.
type Section string

const (
	Dependencies         Section = "dependencies"
	DevDependencies      Section = "devDependencies"
	PeerDependencies     Section = "peerDependencies"
	OptionalDependencies Section = "optionalDependencies"
)

// sections in the order headers are checked.
var sections = []Section{Dependencies, DevDependencies, PeerDependencies, OptionalDependencies}

// DependencyChange is a dependency whose version differs between the removed
// and the added side of a patch.
type DependencyChange struct {
	Name       string  `json:"name"`
	OldVersion string  `json:"oldVersion"`
	NewVersion string  `json:"newVersion"`
	Section    Section `json:"section"`
}

// IsMajor reports whether the change bumps the major version.
func (c DependencyChange) IsMajor() bool {
	return version.IsMajorBump(c.OldVersion, c.NewVersion)
}

var (
	addedRE   = regexp.MustCompile(`^\+\s*"([^"]+)":\s*"([^"]+)"`)
	removedRE = regexp.MustCompile(`^-\s*"([^"]+)":\s*"([^"]+)"`)
)

// ParseDependencyChanges returns the dependencies whose version changed in
// patch. An empty patch yields no changes.
//
// Only names present on both the removed and the added side are reported;
// pure additions and removals are not version changes. When a name appears
// more than once on a side, the last occurrence wins. Every change is tagged
// with the section that was active at the end of the patch.
func ParseDependencyChanges(patch string) []DependencyChange {
	changes := []DependencyChange{}
	if patch == "" {
		return changes
	}

	var (
		current Section
		order   []string
		added   = map[string]string{}
		removed = map[string]string{}
	)

	for _, line := range strings.Split(patch, "\n") {
		if s, ok := sectionHeader(line); ok {
			current = s
		}
		if current == "" {
			continue
		}

		if m := addedRE.FindStringSubmatch(line); m != nil {
			if _, seen := added[m[1]]; !seen {
				order = append(order, m[1])
			}
			added[m[1]] = m[2]
		}
		if m := removedRE.FindStringSubmatch(line); m != nil {
			removed[m[1]] = m[2]
		}
	}

	for _, name := range order {
		newVersion := added[name]
		oldVersion, ok := removed[name]
		if !ok || version.Compare(oldVersion, newVersion) == 0 {
			continue
		}
		changes = append(changes, DependencyChange{
			Name:       name,
			OldVersion: oldVersion,
			NewVersion: newVersion,
			Section:    current,
		})
	}
	return changes
}

// sectionHeader reports the section whose quoted name appears in line.
func sectionHeader(line string) (Section, bool) {
	for _, s := range sections {
		if strings.Contains(line, `"`+string(s)+`"`) {
			return s, true
		}
	}
	return "", false
}

// FindManifest returns the first added or modified package.json among files,
// or nil.
func FindManifest(files []*github.CommitFile) *github.CommitFile {
	for _, f := range files {
		if f.GetFilename() != FileName {
			continue
		}
		switch f.GetStatus() {
		case "added", "modified":
			return f
		}
	}
	return nil
}

// Changes parses the patch attached to file. A nil file or a file without a
// patch yields no changes.
func Changes(file *github.CommitFile) []DependencyChange {
	return ParseDependencyChanges(file.GetPatch())
}
