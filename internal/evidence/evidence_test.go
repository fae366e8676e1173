package evidence

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"borderd/internal/ledger"
)

func testEntry() *ledger.Entry {
	return &ledger.Entry{
		ID:        7,
		Timestamp: "2026-03-14_09-26-53",
		Category:  ledger.CategoryHuman,
		ImagePath: "/var/lib/borderd/alert_images/Human_2026-03-14_09-26-53.png",
		ImageHash: bytes.Repeat([]byte{0xab}, 32),
	}
}

func TestNewPacket(t *testing.T) {
	p := NewPacket(testEntry())

	assert.Equal(t, PacketVersion, p.Version)
	assert.Equal(t, int64(7), p.EntryID)
	assert.Equal(t, "Human", p.Category)
	assert.Equal(t, strings.Repeat("ab", 32), p.ImageHash)
	assert.NotEmpty(t, p.ExportedAt)
}

func TestExportProducesValidJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Export(&buf, testEntry()))

	var p Packet
	require.NoError(t, json.Unmarshal(buf.Bytes(), &p))
	assert.Equal(t, int64(7), p.EntryID)
	assert.Equal(t, "2026-03-14_09-26-53", p.Timestamp)

	// The exported bytes themselves re-validate.
	assert.NoError(t, Validate(buf.Bytes()))
}

func TestExportWithoutHash(t *testing.T) {
	e := testEntry()
	e.ImageHash = nil

	var buf bytes.Buffer
	require.NoError(t, Export(&buf, e))
	assert.NotContains(t, buf.String(), "image_hash")
}

func TestValidateRejectsBadPackets(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"missing fields", `{"version": 1}`},
		{"bad category", `{"version":1,"exported_at":"x","entry_id":1,"timestamp":"2026-03-14_09-26-53","category":"Vehicle","image_path":"p"}`},
		{"bad timestamp layout", `{"version":1,"exported_at":"x","entry_id":1,"timestamp":"2026-03-14T09:26:53Z","category":"Human","image_path":"p"}`},
		{"zero entry id", `{"version":1,"exported_at":"x","entry_id":0,"timestamp":"2026-03-14_09-26-53","category":"Human","image_path":"p"}`},
		{"short hash", `{"version":1,"exported_at":"x","entry_id":1,"timestamp":"2026-03-14_09-26-53","category":"Human","image_path":"p","image_hash":"abcd"}`},
		{"unknown field", `{"version":1,"exported_at":"x","entry_id":1,"timestamp":"2026-03-14_09-26-53","category":"Human","image_path":"p","extra":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, Validate([]byte(tt.data)))
		})
	}
}
