// Command carbonctl inspects and nudges the background job queues.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/odyssey-carbon/cmd/carbonctl/cli"
	"github.com/odyssey-erp/odyssey-carbon/internal/app"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("carbonctl", flag.ContinueOnError)
	redisAddr := fs.String("redis", "", "Redis address (defaults to REDIS_ADDR)")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: carbonctl [-redis addr] [-json] jobs <stats|recover|scheduled>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) == 0 || rest[0] != "jobs" {
		fs.Usage()
		return 2
	}

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		addr = "127.0.0.1:6379"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobsCLI := cli.NewJobsCLI(addr)
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			app.NewLogger(nil).Warn("close jobs cli", slog.Any("error", err))
		}
	}()
	return jobsCLI.Run(ctx, rest[1:], cli.Options{JSONOutput: *jsonOut, Stdout: os.Stdout, Stderr: os.Stderr})
}
