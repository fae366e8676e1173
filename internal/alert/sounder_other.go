//go:build !linux

package alert

import (
	"context"
	"time"
)

// NotifySounder is only implemented on Linux; elsewhere it discards the
// alert so a misconfigured sink degrades instead of failing the loop.
type NotifySounder struct {
	Summary string
	Body    string
}

// Sound implements Sounder.
func (NotifySounder) Sound(ctx context.Context) error { return nil }

// SpeakerSounder is only implemented on Linux.
type SpeakerSounder struct {
	Frequency int
	Duration  time.Duration
}

// Sound implements Sounder.
func (SpeakerSounder) Sound(ctx context.Context) error { return nil }
