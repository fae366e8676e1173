package fusion

import (
	"image"
	"path/filepath"
	"testing"

	"borderd/internal/ledger"
	"borderd/internal/statestore"
)

func openStores(t *testing.T) (*statestore.Store, *ledger.Ledger) {
	t.Helper()
	dir := t.TempDir()
	store, err := statestore.Open(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatalf("open state store: %v", err)
	}
	lg, err := ledger.Open(ledger.Options{
		DBPath:    filepath.Join(dir, "surveillance_log.db"),
		ImageDirs: ledger.DefaultImageDirs(dir),
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	t.Cleanup(func() { lg.Close() })
	return store, lg
}

func TestFuseTable(t *testing.T) {
	tests := []struct {
		name     string
		vision   statestore.VisionVerdict
		spectral statestore.SpectralVerdict
		want     Banner
	}{
		{"both init", statestore.VisionInit, statestore.SpectralInit, BannerUnknown},
		{"both off", statestore.VisionOff, statestore.SpectralOff, BannerUnknown},
		{"vision error spectral init", statestore.VisionError, statestore.SpectralInit, BannerUnknown},
		{"vision clear before spectral ever reports", statestore.VisionNormal, statestore.SpectralInit, BannerUnknown},
		{"vision clear while spectral stopped", statestore.VisionNormal, statestore.SpectralOff, BannerUnknown},
		{"vision clear while spectral errored", statestore.VisionNormal, statestore.SpectralError, BannerUnknown},
		{"spectral clear before vision ever reports", statestore.VisionInit, statestore.SpectralClear, BannerUnknown},
		{"both clear", statestore.VisionNormal, statestore.SpectralClear, BannerClear},
		{"vision alert wins", statestore.VisionAlert, statestore.SpectralClear, BannerThreat},
		{"spectral threat wins", statestore.VisionNormal, statestore.SpectralThreat, BannerThreat},
		{"both threat", statestore.VisionAlert, statestore.SpectralThreat, BannerThreat},
		{"threat while other sensor down", statestore.VisionOff, statestore.SpectralThreat, BannerThreat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fuse(tt.vision, tt.spectral); got != tt.want {
				t.Errorf("fuse(%s, %s) = %s, want %s", tt.vision, tt.spectral, got, tt.want)
			}
		})
	}
}

func TestTakeFreshStores(t *testing.T) {
	store, lg := openStores(t)

	snap, err := Take(store, lg)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if snap.Banner != BannerUnknown {
		t.Errorf("fresh banner = %s, want %s", snap.Banner, BannerUnknown)
	}
	if snap.Vision != statestore.VisionInit {
		t.Errorf("vision = %s, want %s", snap.Vision, statestore.VisionInit)
	}
	if snap.Spectral != statestore.SpectralInit {
		t.Errorf("spectral = %s, want %s", snap.Spectral, statestore.SpectralInit)
	}
	if snap.LatestThreat != nil {
		t.Error("fresh ledger should have no latest threat")
	}
	if len(snap.ThreatCounts) != 0 {
		t.Errorf("fresh counts = %v, want empty", snap.ThreatCounts)
	}
	if snap.LiveFramePath == "" {
		t.Error("live frame path should always be populated")
	}
}

func TestTakeWithThreatState(t *testing.T) {
	store, lg := openStores(t)

	if err := store.SetVerdict(statestore.SensorVision, string(statestore.VisionAlert)); err != nil {
		t.Fatalf("SetVerdict failed: %v", err)
	}
	if err := store.SetVerdict(statestore.SensorSpectral, string(statestore.SpectralClear)); err != nil {
		t.Fatalf("SetVerdict failed: %v", err)
	}
	id, err := lg.Append(ledger.CategoryHuman, image.NewRGBA(image.Rect(0, 0, 8, 8)))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	snap, err := Take(store, lg)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if snap.Banner != BannerThreat {
		t.Errorf("banner = %s, want %s", snap.Banner, BannerThreat)
	}
	if snap.LatestThreat == nil || snap.LatestThreat.ID != id {
		t.Errorf("latest threat = %+v, want id %d", snap.LatestThreat, id)
	}
	if snap.ThreatCounts[ledger.CategoryHuman] != 1 {
		t.Errorf("human count = %d, want 1", snap.ThreatCounts[ledger.CategoryHuman])
	}
}

func TestTakeWithoutLedger(t *testing.T) {
	store, _ := openStores(t)

	snap, err := Take(store, nil)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if snap.LatestThreat != nil || snap.ThreatCounts != nil {
		t.Error("nil ledger should leave threat fields empty")
	}
}
