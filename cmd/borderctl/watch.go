package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"borderd/internal/config"
	"borderd/internal/fusion"
)

// cmdWatch follows the state directory and re-renders the fused picture
// whenever a sensor publishes. Changes are coalesced so a burst of
// writes (verdict plus live frame in quick succession) paints once.
func cmdWatch() {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file")
	fs.Parse(os.Args[2:])

	store, lg, err := open(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	changes, err := store.Watch(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	paint := func() {
		snap, err := fusion.Take(store, lg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return
		}
		render(snap)
	}

	paint()

	const coalesce = 500 * time.Millisecond
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if timer == nil {
				timer = time.NewTimer(coalesce)
			} else {
				timer.Reset(coalesce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			paint()
		}
	}
}
