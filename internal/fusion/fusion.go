// Package fusion implements the read-only view contract consumed by the
// presentation layer: both sensor verdicts combined with logical OR into
// one banner state, plus the latest threat evidence.
//
// Everything here is a pure reader. Missing or malformed state renders
// as an unknown/initializing banner, never as an error and never as
// either "safe" or "threat".
package fusion

import (
	"fmt"

	"borderd/internal/ledger"
	"borderd/internal/statestore"
)

// Banner is the single fused judgment shown to an operator.
type Banner string

const (
	// BannerUnknown means neither sensor has reported yet.
	BannerUnknown Banner = "UNKNOWN"
	// BannerClear means both sensors report no threat.
	BannerClear Banner = "CLEAR"
	// BannerThreat means at least one sensor reports a threat.
	BannerThreat Banner = "THREAT"
)

// Snapshot is one poll of the fused picture.
type Snapshot struct {
	Banner   Banner
	Vision   statestore.VisionVerdict
	Spectral statestore.SpectralVerdict

	// LatestThreat is the most recent ledger entry, nil when the ledger
	// is empty.
	LatestThreat *ledger.Entry
	// ThreatCounts is the total logged threats per category.
	ThreatCounts map[ledger.Category]int64
	// LiveFramePath is where the current annotated frame artifact
	// lives; the file may not exist yet.
	LiveFramePath string
}

// Take reads both sensors and the ledger and fuses them. The two sensor
// verdicts are sampled independently; there is no synchronized timestamp
// between them and none is assumed.
func Take(store *statestore.Store, lg *ledger.Ledger) (*Snapshot, error) {
	visionRaw, err := store.GetVerdict(statestore.SensorVision)
	if err != nil {
		return nil, fmt.Errorf("read vision verdict: %w", err)
	}
	spectralRaw, err := store.GetVerdict(statestore.SensorSpectral)
	if err != nil {
		return nil, fmt.Errorf("read spectral verdict: %w", err)
	}

	snap := &Snapshot{
		Vision:        statestore.VisionVerdict(visionRaw),
		Spectral:      statestore.SpectralVerdict(spectralRaw),
		LiveFramePath: store.LiveFramePath(),
	}
	snap.Banner = fuse(snap.Vision, snap.Spectral)

	if lg != nil {
		latest, err := lg.MostRecent(nil)
		if err != nil {
			return nil, fmt.Errorf("read latest threat: %w", err)
		}
		snap.LatestThreat = latest

		counts, err := lg.CountByCategory()
		if err != nil {
			return nil, fmt.Errorf("count threats: %w", err)
		}
		snap.ThreatCounts = counts
	}

	return snap, nil
}

// fuse ORs the two verdicts into a banner. Any threat wins. CLEAR
// requires BOTH sensors to affirmatively report (vision NORMAL, spectral
// RF_CLEAR); a sensor that never started, stopped, or errored must not
// render as safe, so everything else is unknown.
func fuse(vision statestore.VisionVerdict, spectral statestore.SpectralVerdict) Banner {
	if vision == statestore.VisionAlert || spectral == statestore.SpectralThreat {
		return BannerThreat
	}
	if vision == statestore.VisionNormal && spectral == statestore.SpectralClear {
		return BannerClear
	}
	return BannerUnknown
}
