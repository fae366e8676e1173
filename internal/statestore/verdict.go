package statestore

// VisionVerdict is the current judgment of the vision sensor loop.
type VisionVerdict string

const (
	// VisionInit means the vision sensor has never written a verdict.
	VisionInit VisionVerdict = "INIT"
	// VisionNormal means the last frame contained no qualifying detection.
	VisionNormal VisionVerdict = "NORMAL"
	// VisionAlert means the last frame contained at least one qualifying detection.
	VisionAlert VisionVerdict = "ALERT"
	// VisionError means the camera could not be opened; the loop has stopped.
	VisionError VisionVerdict = "ERROR"
	// VisionOff means the loop was shut down deliberately.
	VisionOff VisionVerdict = "SYSTEM_OFF"
)

// Valid reports whether v is a member of the closed vision verdict set.
func (v VisionVerdict) Valid() bool {
	switch v {
	case VisionInit, VisionNormal, VisionAlert, VisionError, VisionOff:
		return true
	}
	return false
}

// SpectralVerdict is the current judgment of the spectral sensor loop.
type SpectralVerdict string

const (
	// SpectralInit means the spectral sensor has never written a verdict.
	SpectralInit SpectralVerdict = "RF_INIT"
	// SpectralClear means the last scan matched no threat heuristic.
	SpectralClear SpectralVerdict = "RF_CLEAR"
	// SpectralThreat means the last scan matched the isolation heuristic.
	SpectralThreat SpectralVerdict = "RF_THREAT"
	// SpectralError means the scan capability is permanently unavailable.
	SpectralError SpectralVerdict = "RF_ERROR"
	// SpectralOff means the loop was shut down deliberately.
	SpectralOff SpectralVerdict = "RF_OFF"
)

// Valid reports whether v is a member of the closed spectral verdict set.
func (v SpectralVerdict) Valid() bool {
	switch v {
	case SpectralInit, SpectralClear, SpectralThreat, SpectralError, SpectralOff:
		return true
	}
	return false
}

// Sensor identifiers. Each sensor owns exactly one status key in the store.
const (
	SensorVision   = "vision"
	SensorSpectral = "spectral"
)

// defaultVerdict maps a sensor id to the verdict readers must assume when
// the key has never been written. Absence is always an INIT-family state,
// never "clear" and never "threat".
func defaultVerdict(sensorID string) string {
	switch sensorID {
	case SensorSpectral:
		return string(SpectralInit)
	default:
		return string(VisionInit)
	}
}

// validVerdict reports whether raw is a member of the sensor's closed set.
func validVerdict(sensorID, raw string) bool {
	switch sensorID {
	case SensorSpectral:
		return SpectralVerdict(raw).Valid()
	default:
		return VisionVerdict(raw).Valid()
	}
}
