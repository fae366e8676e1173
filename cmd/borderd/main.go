// borderd - two-sensor border surveillance daemon
//
// borderd fuses a camera-driven object detector and a periodic
// radio-spectrum scanner into a single threat picture. The two sensor
// loops run as independent processes (or together under `run`) and
// coordinate only through the shared state directory and the threat
// ledger, so the presentation layer can come and go freely.
//
//	borderd init       Initialize directories and default config
//	borderd vision     Run the vision sensor loop
//	borderd spectral   Run the spectral sensor loop
//	borderd run        Run both sensor loops in one process
//	borderd status     Show the fused threat picture once
//	borderd log        Show recent threat log entries
//	borderd export     Export one ledger entry as an evidence packet
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "init":
		cmdInit()
	case "vision":
		cmdVision()
	case "spectral":
		cmdSpectral()
	case "run":
		cmdRun()
	case "status":
		cmdStatus()
	case "log":
		cmdLog()
	case "export":
		cmdExport()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`borderd - Border Surveillance Daemon

USAGE:
    borderd <command> [options]

COMMANDS:
    init        Initialize data directories and a default config file
    vision      Run the vision sensor loop (camera + object detection)
    spectral    Run the spectral sensor loop (Wi-Fi scan heuristic)
    run         Run both sensor loops in one process
    status      Show the fused threat picture once
    log         Show recent threat log entries
    export      Export a ledger entry as a JSON evidence packet
    help        Show this help message

DEPLOYMENT:
    The two sensors are independent: run 'borderd vision' and
    'borderd spectral' as separate processes, or both together with
    'borderd run'. They coordinate only through the state directory
    and the threat ledger, so the dashboard can attach and detach at
    any time without affecting detection.

COMMON OPTIONS:
    -config <path>   Config file (default: ~/.config/borderd/config.toml)

The threat log is append-only; every entry carries its annotated
evidence image and the image's content hash.`)
}
