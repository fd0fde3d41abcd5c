package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"voxid/internal/services"
)

func main() {
	cmd := newRootCommand()
	err := cmd.Execute()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, exitMessage(err))
	os.Exit(exitCode(err))
}

// exitCode maps a failed run to a shell status: 2 for configuration
// problems caught before any work started, 130 for interrupted runs,
// 1 for everything else.
func exitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return 130
	case services.IsFatalBeforeStart(err):
		return 2
	default:
		return 1
	}
}

func exitMessage(err error) string {
	if errors.Is(err, context.Canceled) {
		return "run interrupted; only persisted checkpoints survive"
	}
	return err.Error()
}
