/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package codemod runs an external source transformation against a single
// file's content.
//
// Each run materializes the content into a private workspace directory,
// starts the transformation process with that directory as its working
// directory, and waits for the process to exit, for the timeout to expire,
// or for the context to be canceled, whichever comes first. On a normal
// exit the file is read back and diffed against the original content. The
// workspace is removed on every path.
//
// The process is abstracted behind Executor so callers can substitute the
// default npx invocation with any command, or with a fake in tests.
package codemod
