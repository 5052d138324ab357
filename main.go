package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zheng/modgraph/cmd"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := cmd.NewRootCmd(version).ExecuteContext(ctx)
	stop()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if ferr := cmd.Shutdown(flushCtx); ferr != nil {
		fmt.Fprintln(os.Stderr, "flush traces:", ferr)
	}
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
