package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/httping/httping/internal/config"
	"github.com/httping/httping/internal/probe"
)

func main() {
	args, err := config.ParseArgs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	logFile, err := config.SetupLogging(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	target := args.Target
	if target == "" {
		target = args.URL
	}
	log.Debugf("Starting HTTP ping of %s (count=%d, interval=%s)", target, args.Count, args.Interval)

	p, err := probe.NewPinger(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Ctrl+C cancels the probe loop; the summary still prints on the way out.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := p.Run(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log.Debug("HTTP ping completed")

	// At least one successful probe means a reachable target.
	summary := p.Summary()
	if summary.OK == 0 || p.ThresholdExceeded() {
		os.Exit(2)
	}
}
