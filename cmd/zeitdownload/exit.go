package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Belphemur/ZeitDownloader/internal/apperrors"
	"github.com/Belphemur/ZeitDownloader/internal/config"
)

// usageError marks invalid command-line input
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

func newUsageError(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// exitCode maps the error returned by the root command to the process status
func exitCode(err error) int {
	var usage *usageError
	if errors.As(err, &usage) {
		return apperrors.ExitUsage
	}
	return apperrors.ExitCode(err)
}

// execute runs the CLI with args and returns the process exit status
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	config.SetLogOutput(stderr)

	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "Error:", err)
		var usage *usageError
		if errors.As(err, &usage) {
			fmt.Fprintln(stderr, "Run 'zeitdownload --help' for usage.")
		}
	}
	return exitCode(err)
}
