// Package spectral implements the radio-spectrum sensor loop: periodic
// Wi-Fi scans scored against the isolation heuristic, with the verdict
// published to the shared state store.
package spectral

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Observation is one nearby emitter seen by a scan.
type Observation struct {
	// SSID is the advertised network name; may be empty for hidden
	// networks.
	SSID string
	// SignalPercent is the driver-reported signal quality in [0,100].
	SignalPercent int
}

// Scanner lists nearby radio emitters. A scan that fails or sees nothing
// returns an error or an empty slice; the loop treats both as "skip this
// period".
type Scanner interface {
	Scan(ctx context.Context) ([]Observation, error)
}

// RSSI converts the percentage quality measure to an approximate dBm
// value, mirroring the conversion used by common Wi-Fi tooling.
func (o Observation) RSSI() float64 {
	return float64(o.SignalPercent)/2 - 100
}

// NmcliScanner shells out to NetworkManager's nmcli to list nearby
// access points.
type NmcliScanner struct {
	// Interface restricts the scan to one wireless interface. Empty
	// scans all.
	Interface string
}

// Scan implements Scanner.
func (s NmcliScanner) Scan(ctx context.Context) ([]Observation, error) {
	args := []string{"-t", "-f", "SSID,SIGNAL", "device", "wifi", "list", "--rescan", "yes"}
	if s.Interface != "" {
		args = append(args, "ifname", s.Interface)
	}

	out, err := exec.CommandContext(ctx, "nmcli", args...).Output()
	if err != nil {
		return nil, fmt.Errorf("run nmcli: %w", err)
	}
	return parseNmcliOutput(out), nil
}

// parseNmcliOutput parses terse nmcli output, one "SSID:SIGNAL" line per
// network. Lines that do not parse are skipped.
func parseNmcliOutput(out []byte) []Observation {
	var obs []Observation
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		// SSIDs may contain escaped colons in terse mode; the signal is
		// always the last field.
		idx := strings.LastIndex(line, ":")
		if idx < 0 {
			continue
		}
		signal, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
		if err != nil {
			continue
		}
		obs = append(obs, Observation{
			SSID:          strings.ReplaceAll(line[:idx], `\:`, ":"),
			SignalPercent: signal,
		})
	}
	return obs
}
