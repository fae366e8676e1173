package alert

// NewSounder returns the Sounder for a configured sink name. Unknown
// names fall back to the no-op sink.
func NewSounder(sink string) Sounder {
	switch sink {
	case "dbus":
		return NotifySounder{
			Summary: "Intrusion detected",
			Body:    "The vision sensor reported a qualifying detection.",
		}
	case "speaker":
		return SpeakerSounder{}
	default:
		return NopSounder{}
	}
}
