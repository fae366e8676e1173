// Package ledger provides the durable, append-only threat log backed by
// SQLite, together with the evidence image artifacts each entry refers to.
package ledger

// Category classifies a confirmed threat. The set is closed; extending it
// means adding a constant here plus a classifier mapping rule in the
// vision package.
type Category string

const (
	// CategoryHuman is a person detected in the monitored area.
	CategoryHuman Category = "Human"
	// CategoryAnimal is a designated animal class detected in the area.
	CategoryAnimal Category = "Animal"
)

// Valid reports whether c is a member of the closed category set.
func (c Category) Valid() bool {
	switch c {
	case CategoryHuman, CategoryAnimal:
		return true
	}
	return false
}

// Entry is one immutable row of the threat log.
type Entry struct {
	// ID is assigned by the store and increases strictly across appends.
	ID int64
	// Timestamp is wall-clock time with second resolution,
	// formatted 2006-01-02_15-04-05.
	Timestamp string
	// Category is the threat classification.
	Category Category
	// ImagePath points at the evidence image persisted for this entry.
	ImagePath string
	// ImageHash is the BLAKE2b-256 digest of the encoded evidence image.
	ImageHash []byte
}

// TimestampFormat is the layout used for entry timestamps and evidence
// file names. Second resolution; two appends for the same category within
// one second reuse the file name and overwrite, which is an accepted
// limitation of the format.
const TimestampFormat = "2006-01-02_15-04-05"
