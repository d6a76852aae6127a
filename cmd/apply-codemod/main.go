/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"

	"github.com/chainguard-dev/codemod-bot/pkg/codemod"
)

type options struct {
	file    string
	codemod string
	timeout time.Duration
	write   bool
	command string
	args    []string
	flags   []string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = clog.WithLogger(ctx, clog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := command().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func command() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:   "apply-codemod",
		Short: "Run a codemod against a local file and print the diff",
		Long: `apply-codemod copies a file into a scratch workspace, runs a codemod
on it the same way the bot does, and prints the resulting line diff.
With --write the transformed content replaces the original file.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), o, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&o.file, "file", "f", "", "file to transform")
	cmd.Flags().StringVarP(&o.codemod, "codemod", "c", "", "codemod identifier")
	cmd.Flags().DurationVar(&o.timeout, "timeout", codemod.DefaultTimeout, "how long the codemod may run")
	cmd.Flags().BoolVarP(&o.write, "write", "w", false, "write the transformed content back to --file")
	cmd.Flags().StringVar(&o.command, "command", "", "run this command instead of the npm codemod CLI")
	cmd.Flags().StringSliceVar(&o.args, "arg", nil, "arguments passed before the codemod identifier")
	cmd.Flags().StringSliceVar(&o.flags, "flag", nil, "arguments passed after the codemod identifier")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("codemod")
	return cmd
}

func run(ctx context.Context, o options, out io.Writer) error {
	before, err := os.ReadFile(o.file)
	if err != nil {
		return err
	}

	exec := codemod.NPX()
	if o.command != "" {
		exec = &codemod.CommandExecutor{Path: o.command, Args: o.args, Flags: o.flags}
	}
	runner := codemod.New(exec, codemod.WithRoot(os.TempDir()))

	res, err := runner.Run(ctx, codemod.Request{
		Content:  string(before),
		Codemod:  o.codemod,
		FileName: filepath.Base(o.file),
		Timeout:  o.timeout,
	})
	if err != nil {
		clog.ErrorContextf(ctx, "codemod failed (%s): %v", codemod.Kind(err), err)
		return err
	}

	if !res.Diff.HasChanges {
		fmt.Fprintln(out, "no changes")
		return nil
	}
	fmt.Fprint(out, res.Diff.Text)
	fmt.Fprintf(out, "\n%d added, %d deleted\n", res.Diff.Added(), res.Diff.Deleted())

	if o.write {
		info, err := os.Stat(o.file)
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.file, []byte(res.After), info.Mode().Perm()); err != nil {
			return err
		}
		clog.InfoContextf(ctx, "wrote %s", o.file)
	}
	return nil
}
