/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import (
	"regexp"
	"strings"
)

var commandRE = regexp.MustCompile(`^/apply\s+([a-zA-Z0-9_-]+)$`)

// ParseCommand extracts the codemod identifier from an "/apply <id>"
// comment. Surrounding whitespace is ignored, anything else is not.
func ParseCommand(body string) (string, bool) {
	m := commandRE.FindStringSubmatch(strings.TrimSpace(body))
	if m == nil {
		return "", false
	}
	return m[1], true
}
