package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// exitCoder lets commands map partial failures onto process exit codes.
type exitCoder interface {
	ExitCode() int
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		var coder exitCoder
		if errors.As(err, &coder) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(coder.ExitCode())
		}
		if errors.Is(err, context.Canceled) {
			os.Exit(1)
		}
		// Anything without an explicit exit code is fatal: bad flags,
		// unparseable documents, configuration problems.
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
}
