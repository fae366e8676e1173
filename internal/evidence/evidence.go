// Package evidence exports threat log entries as self-describing JSON
// packets that can be handed to an external reviewer together with the
// evidence image.
package evidence

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"borderd/internal/ledger"
)

// PacketVersion identifies the packet format.
const PacketVersion = 1

// Packet is the exportable record of one confirmed threat.
type Packet struct {
	Version    int    `json:"version"`
	ExportedAt string `json:"exported_at"`

	EntryID   int64  `json:"entry_id"`
	Timestamp string `json:"timestamp"`
	Category  string `json:"category"`
	ImagePath string `json:"image_path"`
	// ImageHash is the hex BLAKE2b-256 digest of the evidence image as
	// recorded at append time, so a reviewer can verify the artifact
	// was not swapped after logging.
	ImageHash string `json:"image_hash,omitempty"`
}

// packetSchema constrains exported packets; Validate compiles it once
// per call, which is cheap at export frequency.
const packetSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "exported_at", "entry_id", "timestamp", "category", "image_path"],
  "properties": {
    "version": {"type": "integer", "minimum": 1},
    "exported_at": {"type": "string"},
    "entry_id": {"type": "integer", "minimum": 1},
    "timestamp": {"type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}_[0-9]{2}-[0-9]{2}-[0-9]{2}$"},
    "category": {"type": "string", "enum": ["Human", "Animal"]},
    "image_path": {"type": "string", "minLength": 1},
    "image_hash": {"type": "string", "pattern": "^[0-9a-f]{64}$"}
  },
  "additionalProperties": false
}`

// NewPacket builds a packet from a ledger entry.
func NewPacket(e *ledger.Entry) *Packet {
	return &Packet{
		Version:    PacketVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		EntryID:    e.ID,
		Timestamp:  e.Timestamp,
		Category:   string(e.Category),
		ImagePath:  e.ImagePath,
		ImageHash:  hex.EncodeToString(e.ImageHash),
	}
}

// Export validates the packet and writes it as indented JSON.
func Export(w io.Writer, e *ledger.Entry) error {
	packet := NewPacket(e)

	data, err := json.MarshalIndent(packet, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal packet: %w", err)
	}
	if err := Validate(data); err != nil {
		return fmt.Errorf("packet failed validation: %w", err)
	}

	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// Validate checks raw JSON against the packet schema.
func Validate(data []byte) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("unmarshal packet: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("evidence-packet.schema.json", bytes.NewReader([]byte(packetSchema))); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("evidence-packet.schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("validate packet: %w", err)
	}
	return nil
}
