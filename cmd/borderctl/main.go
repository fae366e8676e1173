// borderctl - operator console for borderd
//
// borderctl is a read-only companion to the borderd sensor loops. It
// attaches to the shared state directory and the threat ledger, never
// writes to either, and can appear and disappear without affecting
// detection.
//
//	borderctl status   Show the fused threat picture once
//	borderctl watch    Follow the fused picture as sensor state changes
//	borderctl log      Show recent threat log entries
package main

import (
	"flag"
	"fmt"
	"os"

	"borderd/internal/config"
	"borderd/internal/fusion"
	"borderd/internal/ledger"
	"borderd/internal/statestore"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "status":
		cmdStatus()
	case "watch":
		cmdWatch()
	case "log":
		cmdLog()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`borderctl - Border Surveillance Console

USAGE:
    borderctl <command> [options]

COMMANDS:
    status      Show the fused threat picture once
    watch       Follow the fused picture as sensor state changes
    log         Show recent threat log entries
    help        Show this help message

COMMON OPTIONS:
    -config <path>   Config file (default: ~/.config/borderd/config.toml)

borderctl only reads; detection keeps running whether or not a console
is attached.`)
}

// open wires up the read side from config.
func open(configPath string) (*statestore.Store, *ledger.Ledger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := statestore.Open(cfg.Storage.StateDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open state store: %w", err)
	}
	lg, err := ledger.Open(ledger.Options{
		DBPath:    cfg.Storage.DBPath,
		ImageDirs: ledger.DefaultImageDirs(cfg.Storage.ImageRoot),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open threat ledger: %w", err)
	}
	return store, lg, nil
}

func render(snap *fusion.Snapshot) {
	fmt.Printf("[%s]  vision=%s  spectral=%s  threats=%d human / %d animal\n",
		snap.Banner,
		snap.Vision,
		snap.Spectral,
		snap.ThreatCounts[ledger.CategoryHuman],
		snap.ThreatCounts[ledger.CategoryAnimal],
	)
	if snap.Banner == fusion.BannerThreat && snap.LatestThreat != nil {
		fmt.Printf("         latest: #%d %s %s\n",
			snap.LatestThreat.ID, snap.LatestThreat.Category, snap.LatestThreat.Timestamp)
	}
}

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file")
	fs.Parse(os.Args[2:])

	store, lg, err := open(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()

	snap, err := fusion.Take(store, lg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	render(snap)
}

func cmdLog() {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file")
	categoryFlag := fs.String("category", "", "Filter by category (Human or Animal)")
	n := fs.Int("n", 20, "Number of entries to show")
	fs.Parse(os.Args[2:])

	_, lg, err := open(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()

	var entries []ledger.Entry
	if *categoryFlag != "" {
		category := ledger.Category(*categoryFlag)
		if !category.Valid() {
			fmt.Fprintf(os.Stderr, "Unknown category: %s\n", *categoryFlag)
			os.Exit(1)
		}
		entries, err = lg.RecentByCategory(category, *n)
	} else {
		entries, err = lg.Recent(*n)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No threat log entries.")
		return
	}
	for _, e := range entries {
		fmt.Printf("#%-5d %s  %-6s  %s\n", e.ID, e.Timestamp, e.Category, e.ImagePath)
	}
}
