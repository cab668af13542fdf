package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"TweetWatch/internal/usecase"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode prints err and maps it to the process status; 2 means already started.
func exitCode(err error) int {
	if !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
	}
	if errors.Is(err, usecase.ErrAlreadyStarted) {
		return 2
	}
	return 1
}
