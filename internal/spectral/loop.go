package spectral

import (
	"context"
	"fmt"
	"time"

	"borderd/internal/logging"
	"borderd/internal/statestore"
)

// DefaultPeriod is the interval between scans.
const DefaultPeriod = 5 * time.Second

// LoopConfig wires a spectral sensor loop.
type LoopConfig struct {
	Scanner Scanner
	State   *statestore.Store
	Rule    Rule

	// Period between scans. Zero means DefaultPeriod.
	Period time.Duration
}

// Loop is the spectral sensor loop. One instance owns the spectral
// status key; nothing else writes it.
type Loop struct {
	cfg LoopConfig
	log *logging.Logger
}

// NewLoop validates cfg and returns a runnable loop.
func NewLoop(cfg LoopConfig) (*Loop, error) {
	if cfg.Scanner == nil {
		return nil, fmt.Errorf("scanner is required")
	}
	if cfg.State == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	if cfg.Rule == (Rule{}) {
		cfg.Rule = DefaultRule()
	}
	return &Loop{
		cfg: cfg,
		log: logging.Default().WithComponent("spectral"),
	}, nil
}

// Run drives the loop until ctx is cancelled.
//
// RF_INIT is written on startup and RF_OFF on controlled shutdown. A
// failed or empty scan skips the period without writing a verdict;
// transient scan failure never escalates to RF_ERROR on its own.
func (l *Loop) Run(ctx context.Context) error {
	l.writeVerdict(statestore.SpectralInit)
	l.log.Info("spectral sensor loop started",
		"period", l.cfg.Period,
		"max_networks", l.cfg.Rule.MaxNetworksForIsolation,
		"strong_rssi_dbm", l.cfg.Rule.StrongRSSIdBm,
	)

	ticker := time.NewTicker(l.cfg.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.writeVerdict(statestore.SpectralOff)
			l.log.Info("spectral sensor loop stopped")
			return nil
		case <-ticker.C:
			l.iterate(ctx)
		}
	}
}

// iterate performs one scan-classify-publish cycle.
func (l *Loop) iterate(ctx context.Context) {
	obs, err := l.cfg.Scanner.Scan(ctx)
	if err != nil {
		l.log.Warn("scan failed, retrying next period", "error", err)
		return
	}
	if len(obs) == 0 {
		l.log.Debug("scan saw no emitters, retrying next period")
		return
	}

	verdict := Classify(obs, l.cfg.Rule)
	l.writeVerdict(verdict)

	l.log.Info("scan classified",
		"verdict", verdict,
		"networks", len(obs),
	)
}

func (l *Loop) writeVerdict(v statestore.SpectralVerdict) {
	if err := l.cfg.State.SetVerdict(statestore.SensorSpectral, string(v)); err != nil {
		l.log.Warn("verdict write failed", "verdict", v, "error", err)
	}
}
