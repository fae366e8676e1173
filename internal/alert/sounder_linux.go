//go:build linux

package alert

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/godbus/dbus/v5"
	"golang.org/x/sys/unix"
)

// NotifySounder raises a desktop notification with an audible sound hint
// through org.freedesktop.Notifications on the session bus.
type NotifySounder struct {
	Summary string
	Body    string
}

// Sound implements Sounder.
func (n NotifySounder) Sound(ctx context.Context) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect session bus: %w", err)
	}

	summary := n.Summary
	if summary == "" {
		summary = "Intrusion detected"
	}

	obj := conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.CallWithContext(ctx, "org.freedesktop.Notifications.Notify", 0,
		"borderd",          // app name
		uint32(0),          // replaces id
		"security-high",    // icon
		summary,
		n.Body,
		[]string{},         // actions
		map[string]dbus.Variant{
			"urgency":    dbus.MakeVariant(byte(2)), // critical
			"sound-name": dbus.MakeVariant("alarm-clock-elapsed"),
		},
		int32(5000), // expire ms
	)
	if call.Err != nil {
		return fmt.Errorf("send notification: %w", call.Err)
	}
	return nil
}

// SpeakerSounder beeps the PC speaker through the console KIOCSOUND
// ioctl. Requires access to /dev/console, so it is mostly useful on
// dedicated field units running as root.
type SpeakerSounder struct {
	// Frequency in Hz; 0 means 500 Hz to match the historical beep.
	Frequency int
	// Duration of the beep; 0 means 500 ms.
	Duration time.Duration
}

const clockTickRate = 1193180 // PIT oscillator Hz

// kiocsound is the KIOCSOUND ioctl number from <linux/kd.h>; x/sys/unix
// does not export the console KD ioctls.
const kiocsound = 0x4B2F

// Sound implements Sounder.
func (s SpeakerSounder) Sound(ctx context.Context) error {
	freq := s.Frequency
	if freq <= 0 {
		freq = 500
	}
	dur := s.Duration
	if dur <= 0 {
		dur = 500 * time.Millisecond
	}

	console, err := os.OpenFile("/dev/console", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open console: %w", err)
	}
	defer console.Close()

	if err := unix.IoctlSetInt(int(console.Fd()), kiocsound, clockTickRate/freq); err != nil {
		return fmt.Errorf("start tone: %w", err)
	}

	select {
	case <-time.After(dur):
	case <-ctx.Done():
	}

	// 0 stops the tone.
	if err := unix.IoctlSetInt(int(console.Fd()), kiocsound, 0); err != nil {
		return fmt.Errorf("stop tone: %w", err)
	}
	return ctx.Err()
}
