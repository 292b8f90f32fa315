package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MacroPower/qsync/internal/cli"
)

const (
	cmdName = "qsync"

	shortDesc = "The qsync Command Line Interface (CLI)."
	longDesc  = `The qsync Command Line Interface (CLI).

qsync provides queued synchronizers for Go: reentrant and read/write locks,
semaphores, latches, barriers, blocking queues and a worker pool, all built
on one FIFO wait queue with context-aware blocking.

The CLI stress tests those synchronizers and reports whether their
invariants held under contention.
`
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := cli.NewRootCmd(cmdName, shortDesc, longDesc)

	err := cmd.ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, strings.TrimLeft(err.Error(), "\n"))
		os.Exit(1)
	}
}
