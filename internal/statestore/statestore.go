// Package statestore provides the file-backed shared state surface through
// which the sensor loops and the presentation layer coordinate.
//
// Each sensor owns exactly one status key holding its current verdict
// string, and the vision sensor additionally owns the live frame image.
// Values are replaced whole on every write; there is no history and no
// cross-key transaction. A reader process with no prior coordination can
// observe the latest write by reading the files directly.
package statestore

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
)

const (
	statusSuffix  = ".status"
	liveFrameName = "live_frame.png"
)

// Store is a file-per-key state store rooted at a single directory.
//
// Writes go through a temp file and rename so concurrent readers never
// observe a torn value. Last write wins; each key has exactly one
// producing loop.
type Store struct {
	dir string
}

// Open creates the state directory if needed and returns a Store over it.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory root.
func (s *Store) Dir() string {
	return s.dir
}

// SetVerdict replaces the verdict for a sensor.
func (s *Store) SetVerdict(sensorID, verdict string) error {
	if sensorID == "" {
		return errors.New("sensor id is empty")
	}
	return s.writeAtomic(sensorID+statusSuffix, []byte(verdict+"\n"))
}

// GetVerdict returns the current verdict for a sensor.
//
// A key that was never written, and a key holding a value outside the
// sensor's closed verdict set, both read as the sensor's INIT-family
// default. Readers must never conflate "never started" with "confirmed
// safe", so absence is not an error here.
func (s *Store) GetVerdict(sensorID string) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, sensorID+statusSuffix))
	if err != nil {
		if os.IsNotExist(err) {
			return defaultVerdict(sensorID), nil
		}
		return "", fmt.Errorf("read verdict %s: %w", sensorID, err)
	}

	raw := strings.TrimSpace(string(data))
	if !validVerdict(sensorID, raw) {
		return defaultVerdict(sensorID), nil
	}
	return raw, nil
}

// SetLiveFrame replaces the live frame image.
func (s *Store) SetLiveFrame(img image.Image) error {
	if img == nil {
		return errors.New("live frame is nil")
	}

	tmp, err := os.CreateTemp(s.dir, ".live_frame-*.png")
	if err != nil {
		return fmt.Errorf("create live frame temp: %w", err)
	}
	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode live frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close live frame temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, liveFrameName)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace live frame: %w", err)
	}
	return nil
}

// GetLiveFrame returns the most recent live frame, or nil if none has
// been written yet.
func (s *Store) GetLiveFrame() (image.Image, error) {
	f, err := os.Open(filepath.Join(s.dir, liveFrameName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open live frame: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		// A reader can race the writer's rename on filesystems without
		// atomic replace semantics; treat a torn read like absence.
		return nil, nil
	}
	return img, nil
}

// LiveFramePath returns the path of the live frame artifact. The file may
// not exist yet.
func (s *Store) LiveFramePath() string {
	return filepath.Join(s.dir, liveFrameName)
}

// writeAtomic writes data to name under the store root via temp + rename.
func (s *Store) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, "."+name+"-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", name, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp for %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}
