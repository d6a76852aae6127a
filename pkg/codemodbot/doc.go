/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package codemodbot reacts to pull request activity.
//
// When a pull request changes dependency versions in package.json, the bot
// keeps a single comment summarizing the bumps. When someone comments
// "/apply <codemod>" on a pull request, the bot runs that codemod against
// every changed file, commits the results to the head branch and reports
// what happened in a summary comment.
package codemodbot
