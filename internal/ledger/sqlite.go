package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/blake2b"
)

// Schema for the threat log.
const schema = `
CREATE TABLE IF NOT EXISTS threat_log (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp   TEXT NOT NULL,
    category    TEXT NOT NULL,
    image_path  TEXT NOT NULL,
    image_hash  BLOB
);

CREATE INDEX IF NOT EXISTS idx_threat_log_category ON threat_log(category, id);
`

// Ledger is the SQLite-backed threat log. It exclusively owns id
// assignment; sensor loops never invent ids.
type Ledger struct {
	db        *sql.DB
	imageDirs map[Category]string
	now       func() time.Time
}

// Options configures where the ledger keeps its database and evidence
// images.
type Options struct {
	// DBPath is the SQLite database file.
	DBPath string
	// ImageDirs maps each category to the directory its evidence images
	// are written to.
	ImageDirs map[Category]string
}

// DefaultImageDirs returns the per-category evidence directories under
// root, matching the layout the presentation layer expects.
func DefaultImageDirs(root string) map[Category]string {
	return map[Category]string{
		CategoryHuman:  filepath.Join(root, "alert_images"),
		CategoryAnimal: filepath.Join(root, "animal_images"),
	}
}

// Open opens or creates the threat log and its evidence directories.
func Open(opts Options) (*Ledger, error) {
	if opts.DBPath == "" {
		return nil, errors.New("ledger db path is empty")
	}
	if len(opts.ImageDirs) == 0 {
		return nil, errors.New("ledger image directories are empty")
	}

	if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	for cat, dir := range opts.ImageDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s image directory: %w", cat, err)
		}
	}

	db, err := sql.Open("sqlite3", opts.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	dirs := make(map[Category]string, len(opts.ImageDirs))
	for cat, dir := range opts.ImageDirs {
		dirs[cat] = dir
	}

	return &Ledger{db: db, imageDirs: dirs, now: time.Now}, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Append persists the evidence image and records one threat log entry,
// returning the assigned id.
//
// The image is written first; if that fails no row is inserted, so a
// reader never sees a row referencing a missing image. A row-insert
// failure after a successful image write leaves an orphaned image behind,
// which is the accepted side of that trade.
func (l *Ledger) Append(category Category, evidence image.Image) (int64, error) {
	if !category.Valid() {
		return 0, fmt.Errorf("unknown category: %s", category)
	}
	if evidence == nil {
		return 0, errors.New("evidence image is nil")
	}

	dir, ok := l.imageDirs[category]
	if !ok {
		return 0, fmt.Errorf("no image directory for category %s", category)
	}

	timestamp := l.now().Format(TimestampFormat)
	imagePath := filepath.Join(dir, fmt.Sprintf("%s_%s.png", category, timestamp))

	hash, err := writeEvidenceImage(imagePath, evidence)
	if err != nil {
		return 0, fmt.Errorf("persist evidence image: %w", err)
	}

	result, err := l.db.Exec(`
		INSERT INTO threat_log (timestamp, category, image_path, image_hash)
		VALUES (?, ?, ?, ?)`,
		timestamp, string(category), imagePath, hash,
	)
	if err != nil {
		return 0, fmt.Errorf("insert threat log entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	return id, nil
}

// MostRecent returns the highest-id entry, optionally filtered to one
// category. It returns nil when no matching entry exists.
func (l *Ledger) MostRecent(category *Category) (*Entry, error) {
	var row *sql.Row
	if category != nil {
		row = l.db.QueryRow(`
			SELECT id, timestamp, category, image_path, image_hash
			FROM threat_log
			WHERE category = ?
			ORDER BY id DESC
			LIMIT 1`, string(*category))
	} else {
		row = l.db.QueryRow(`
			SELECT id, timestamp, category, image_path, image_hash
			FROM threat_log
			ORDER BY id DESC
			LIMIT 1`)
	}

	var e Entry
	var cat string
	err := row.Scan(&e.ID, &e.Timestamp, &cat, &e.ImagePath, &e.ImageHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get most recent entry: %w", err)
	}
	e.Category = Category(cat)
	return &e, nil
}

// Recent returns up to n entries ordered most-recent-first.
func (l *Ledger) Recent(n int) ([]Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, timestamp, category, image_path, image_hash
		FROM threat_log
		ORDER BY id DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// RecentByCategory returns up to n entries of one category,
// most-recent-first.
func (l *Ledger) RecentByCategory(category Category, n int) ([]Entry, error) {
	rows, err := l.db.Query(`
		SELECT id, timestamp, category, image_path, image_hash
		FROM threat_log
		WHERE category = ?
		ORDER BY id DESC
		LIMIT ?`, string(category), n)
	if err != nil {
		return nil, fmt.Errorf("query entries by category: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetEntry retrieves an entry by id, or nil if it does not exist.
func (l *Ledger) GetEntry(id int64) (*Entry, error) {
	var e Entry
	var cat string
	err := l.db.QueryRow(`
		SELECT id, timestamp, category, image_path, image_hash
		FROM threat_log WHERE id = ?`, id,
	).Scan(&e.ID, &e.Timestamp, &cat, &e.ImagePath, &e.ImageHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	e.Category = Category(cat)
	return &e, nil
}

// CountByCategory returns the number of entries per category.
func (l *Ledger) CountByCategory() (map[Category]int64, error) {
	rows, err := l.db.Query(`
		SELECT category, COUNT(*)
		FROM threat_log
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("count entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[Category]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[Category(cat)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

// scanEntries is a helper to scan threat log rows into a slice.
func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var cat string
		if err := rows.Scan(&e.ID, &e.Timestamp, &cat, &e.ImagePath, &e.ImageHash); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Category = Category(cat)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}

// writeEvidenceImage encodes img as PNG at path and returns the
// BLAKE2b-256 digest of the encoded bytes.
func writeEvidenceImage(path string, img image.Image) ([]byte, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create image file: %w", err)
	}

	hasher, err := blake2b.New256(nil)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("init hasher: %w", err)
	}

	if err := png.Encode(io.MultiWriter(f, hasher), img); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("close image file: %w", err)
	}
	return hasher.Sum(nil), nil
}
