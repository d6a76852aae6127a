/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package version compares the loose, dot-separated version specifiers found
// in dependency manifests (e.g. "^18.2.0", "~1.4", ">=2").
package version

import (
	"strconv"
	"strings"
)

// qualifiers are the range prefixes stripped before comparison.
const qualifiers = "^~>=<"

// Clean strips any leading run of range qualifiers from v.
func Clean(v string) string {
	return strings.TrimLeft(v, qualifiers)
}

// Compare returns -1 if v1 < v2, 0 if they are equal and 1 if v1 > v2.
//
// Both inputs are cleaned, split on "." and compared component by component.
// Missing trailing components count as 0, and so do components that are not
// integers, so Compare never fails.
func Compare(v1, v2 string) int {
	p1, p2 := components(v1), components(v2)

	for i := range max(len(p1), len(p2)) {
		a, b := at(p1, i), at(p2, i)
		switch {
		case a > b:
			return 1
		case a < b:
			return -1
		}
	}
	return 0
}

// IsMajorBump reports whether the leading component of newVersion is
// strictly greater than the leading component of oldVersion.
func IsMajorBump(oldVersion, newVersion string) bool {
	return Major(newVersion) > Major(oldVersion)
}

// Major returns the leading numeric component of v, or 0.
func Major(v string) int {
	return at(components(v), 0)
}

func components(v string) []int {
	parts := strings.Split(Clean(v), ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out[i] = n
	}
	return out
}

func at(p []int, i int) int {
	if i < len(p) {
		return p[i]
	}
	return 0
}
