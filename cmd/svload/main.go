// Command svload loads separated-value files into MySQL-compatible tables.
//
//	svload ingest --table people --file people.csv --header
//	svload run --config jobs.yaml
//	svload validate --config jobs.yaml
//	svload backends
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// register all backends with the storage factory.
	_ "svload/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "svload:", err)
		stop()
		os.Exit(1)
	}
}
