package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"

	"borderd/internal/config"
	"borderd/internal/evidence"
	"borderd/internal/fusion"
	"borderd/internal/ledger"
	"borderd/internal/statestore"
)

// openReadSide opens config, state store, and ledger for the read-only
// commands.
func openReadSide(configPath string) (*statestore.Store, *ledger.Ledger, error) {
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

func cmdInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file to create")
	fs.Parse(os.Args[2:])

	cfg := config.DefaultConfig()

	dirs := []string{
		config.DataDir(),
		filepath.Dir(*configPath),
		cfg.Storage.StateDir,
		filepath.Join(config.DataDir(), "models"),
	}
	for _, dir := range ledger.DefaultImageDirs(cfg.Storage.ImageRoot) {
		dirs = append(dirs, dir)
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory %s: %v\n", d, err)
			os.Exit(1)
		}
	}

	if _, err := os.Stat(*configPath); os.IsNotExist(err) {
		f, err := os.Create(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		if err := toml.NewEncoder(f).Encode(cfg); err != nil {
			f.Close()
			fmt.Fprintf(os.Stderr, "Error encoding config: %v\n", err)
			os.Exit(1)
		}
		f.Close()
		fmt.Printf("Wrote default config to %s\n", *configPath)
	} else {
		fmt.Printf("Config already exists at %s, leaving it alone\n", *configPath)
	}

	fmt.Println()
	fmt.Println("borderd initialized!")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Printf("  1. Place a detection model at %s\n", cfg.Vision.ModelPath)
	fmt.Println("  2. Start the sensors: 'borderd run' (or vision/spectral separately)")
	fmt.Println("  3. Check the picture: 'borderd status'")
}

func cmdStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file")
	fs.Parse(os.Args[2:])

	store, lg, err := openReadSide(*configPath)
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

	printSnapshot(snap)
}

// printSnapshot renders one fused snapshot as plain text.
func printSnapshot(snap *fusion.Snapshot) {
	fmt.Printf("=== Border Surveillance Status ===\n")
	fmt.Printf("Banner:   %s\n", snap.Banner)
	fmt.Printf("Vision:   %s\n", snap.Vision)
	fmt.Printf("Spectral: %s\n", snap.Spectral)

	human := snap.ThreatCounts[ledger.CategoryHuman]
	animal := snap.ThreatCounts[ledger.CategoryAnimal]
	fmt.Printf("Logged threats: %d human, %d animal\n", human, animal)

	if snap.LatestThreat != nil {
		fmt.Printf("Latest: #%d %s at %s (%s)\n",
			snap.LatestThreat.ID,
			snap.LatestThreat.Category,
			snap.LatestThreat.Timestamp,
			snap.LatestThreat.ImagePath,
		)
	} else {
		fmt.Println("Latest: none recorded")
	}
	fmt.Printf("Live frame: %s\n", snap.LiveFramePath)
}

func cmdLog() {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file")
	categoryFlag := fs.String("category", "", "Filter by category (Human or Animal)")
	n := fs.Int("n", 20, "Number of entries to show")
	fs.Parse(os.Args[2:])

	_, lg, err := openReadSide(*configPath)
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

func cmdExport() {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", config.DefaultConfigPath(), "Config file")
	out := fs.String("o", "", "Output file (default: stdout)")
	fs.Parse(os.Args[2:])

	_, lg, err := openReadSide(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()

	var entry *ledger.Entry
	if fs.NArg() < 1 || fs.Arg(0) == "latest" {
		entry, err = lg.MostRecent(nil)
	} else {
		var id int64
		id, err = strconv.ParseInt(fs.Arg(0), 10, 64)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Usage: borderd export [latest|<entry-id>] [-o file]")
			os.Exit(1)
		}
		entry, err = lg.GetEntry(id)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if entry == nil {
		fmt.Fprintln(os.Stderr, "No matching ledger entry.")
		os.Exit(1)
	}

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating output: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = f
	}

	if err := evidence.Export(w, entry); err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting packet: %v\n", err)
		os.Exit(1)
	}
}
