// main.go bootstraps launchpad: it builds the root command and executes it
// with a signal-aware context so Ctrl-C stops child processes.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/pflag"
	"vinr.eu/launchpad/internal/errs"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := newRootCommand().ExecuteContext(ctx)
	if err != nil {
		handleError(os.Stderr, err)
		os.Exit(1)
	}
}

func handleError(w io.Writer, err error) {
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return
	}
	message := err.Error()
	switch {
	case errors.Is(err, context.Canceled):
		message = "interrupted"
	case errors.Is(err, errs.ErrCredentialFetch):
		message = fmt.Sprintf("%s\nHint: check the credentials.* settings or export GITHUB_TOKEN.", err)
	case errors.Is(err, errs.ErrExternalTool):
		message = fmt.Sprintf("%s\nHint: the platform command failed; its output is logged above.", err)
	}
	color.New(color.FgRed).Fprintf(w, "Error: %s\n", message)
}
