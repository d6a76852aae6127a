/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package codemodbot

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		body   string
		want   string
		wantOK bool
	}{
		{body: "/apply react-18-migration", want: "react-18-migration", wantOK: true},
		{body: "  /apply my_codemod\n", want: "my_codemod", wantOK: true},
		{body: "/apply\tnext-13", want: "next-13", wantOK: true},
		{body: "/apply   v2", want: "v2", wantOK: true},
		{body: "/apply"},
		{body: "/apply "},
		{body: "/apply two words"},
		{body: "/apply @scope/pkg"},
		{body: "please /apply foo"},
		{body: "/apply foo\nthanks"},
		{body: "/APPLY foo"},
		{body: "some other comment"},
		{body: ""},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.body)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseCommand(%q) = (%q, %t), want (%q, %t)", tt.body, got, ok, tt.want, tt.wantOK)
		}
	}
}
