package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes
const (
	Success = iota
	SetupFailed
	CmdLineOptionError
	EnumerationFailed
	UploadFailed
	OutputFailed
)

// exitError attaches the process exit code to an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// execute runs the root command and maps its error to an exit code.
func execute(ctx context.Context, a *app, args []string) int {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return Success
	}

	code := CmdLineOptionError
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		code = exitErr.code
	}

	fmt.Fprintf(a.stderr, "Error: %v\n", err)
	if code == CmdLineOptionError {
		fmt.Fprintf(a.stderr, "\n%s", cmd.UsageString())
	}
	return code
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, newApp(os.Stdout, os.Stderr), os.Args[1:])
	stop()
	os.Exit(code)
}
