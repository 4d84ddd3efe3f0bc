// Command replication-booster runs the Replication Booster prefetch
// daemon against a local MySQL replica.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/block/replication-booster/pkg/booster"
	"github.com/block/replication-booster/pkg/config"
)

const version = "1.0"

var cli struct {
	config.Options
	Version kong.VersionFlag `help:"Show version and exit." short:"v"`
}

func main() {
	kong.Parse(&cli, kong.Vars{"version": "replication-booster version " + version})

	logger := logrus.StandardLogger()

	cfg, err := cli.Options.Resolve()
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGABRT,
		syscall.SIGILL, syscall.SIGFPE, syscall.SIGSEGV,
	)
	defer stop()

	b, err := booster.New(ctx, cfg, logger)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	go func() {
		<-ctx.Done()
		// Only flip the shared flag here; every loop is responsible for
		// observing it and unwinding on its own.
		b.RequestShutdown()
	}()

	runErr := b.Run(ctx)
	if closeErr := b.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr)
		os.Exit(1)
	}
}
