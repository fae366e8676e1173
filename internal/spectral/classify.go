package spectral

import "borderd/internal/statestore"

// Classification defaults. A monitored border area is expected to be
// radio-quiet; a handful of networks with one very strong emitter reads
// as someone operating equipment nearby, while a crowded spectrum reads
// as ordinary civilian noise.
const (
	// DefaultMaxNetworksForIsolation is the largest total network count
	// still considered an isolated area.
	DefaultMaxNetworksForIsolation = 5
	// DefaultStrongRSSIdBm is the signal strength above which an
	// emitter counts as strong (very close or very powerful). Note the
	// percent-based RSSI estimate tops out at exactly -50 dBm, so with
	// this default and the strict comparison no emitter ever qualifies;
	// deployments must lower the bound for RF_THREAT to be reachable.
	DefaultStrongRSSIdBm = -50.0
)

// Rule holds the tunable bounds of the isolation heuristic.
type Rule struct {
	MaxNetworksForIsolation int
	StrongRSSIdBm           float64
}

// DefaultRule returns the rule with default bounds.
func DefaultRule() Rule {
	return Rule{
		MaxNetworksForIsolation: DefaultMaxNetworksForIsolation,
		StrongRSSIdBm:           DefaultStrongRSSIdBm,
	}
}

// Classify applies the isolation heuristic to one scan's observations.
//
// The verdict is RF_THREAT only when BOTH hold: the total emitter count
// is within the isolation bound AND at least one emitter is strong. The
// conjunction is deliberate; strong signals in a crowded spectrum are
// noise, not threat, and must not loosen into an either/or.
func Classify(obs []Observation, rule Rule) statestore.SpectralVerdict {
	totalCount := len(obs)
	strongCount := 0
	for _, o := range obs {
		if o.RSSI() > rule.StrongRSSIdBm {
			strongCount++
		}
	}

	if totalCount <= rule.MaxNetworksForIsolation && strongCount > 0 {
		return statestore.SpectralThreat
	}
	return statestore.SpectralClear
}
