package ledger

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	dir := t.TempDir()
	lg, err := Open(Options{
		DBPath:    filepath.Join(dir, "surveillance_log.db"),
		ImageDirs: DefaultImageDirs(dir),
	})
	require.NoError(t, err)
	t.Cleanup(func() { lg.Close() })

	// Deterministic, strictly increasing clock so image names never
	// collide within a test.
	base := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	n := 0
	lg.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return lg
}

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	img.Set(4, 4, color.RGBA{R: 255, A: 255})
	return img
}

func TestAppendAssignsMonotonicIDs(t *testing.T) {
	lg := openTestLedger(t)

	var last int64
	for i := 0; i < 5; i++ {
		id, err := lg.Append(CategoryHuman, testImage())
		require.NoError(t, err)
		assert.Greater(t, id, last, "ids must strictly increase")
		last = id
	}
}

func TestAppendWritesImageAndHash(t *testing.T) {
	lg := openTestLedger(t)

	id, err := lg.Append(CategoryAnimal, testImage())
	require.NoError(t, err)

	entry, err := lg.GetEntry(id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, CategoryAnimal, entry.Category)
	assert.Contains(t, entry.ImagePath, "animal_images")
	assert.Contains(t, filepath.Base(entry.ImagePath), "Animal_")

	// The recorded hash must match the bytes on disk.
	data, err := os.ReadFile(entry.ImagePath)
	require.NoError(t, err)
	sum := blake2b.Sum256(data)
	assert.Equal(t, sum[:], entry.ImageHash)

	// Timestamp uses the filesystem-safe layout.
	_, err = time.Parse(TimestampFormat, entry.Timestamp)
	assert.NoError(t, err)
}

func TestAppendRejectsInvalidInput(t *testing.T) {
	lg := openTestLedger(t)

	_, err := lg.Append(Category("Vehicle"), testImage())
	assert.Error(t, err)

	_, err = lg.Append(CategoryHuman, nil)
	assert.Error(t, err)
}

func TestAppendFailedImageWriteInsertsNoRow(t *testing.T) {
	lg := openTestLedger(t)

	// Point the human category at a directory that does not exist so the
	// image write fails before any row insert.
	lg.imageDirs[CategoryHuman] = filepath.Join(t.TempDir(), "missing", "deeper")

	_, err := lg.Append(CategoryHuman, testImage())
	require.Error(t, err)

	latest, err := lg.MostRecent(nil)
	require.NoError(t, err)
	assert.Nil(t, latest, "failed append must not leave a row behind")
}

func TestMostRecentEmpty(t *testing.T) {
	lg := openTestLedger(t)

	entry, err := lg.MostRecent(nil)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestMostRecentByCategory(t *testing.T) {
	lg := openTestLedger(t)

	_, err := lg.Append(CategoryHuman, testImage())
	require.NoError(t, err)
	animalID, err := lg.Append(CategoryAnimal, testImage())
	require.NoError(t, err)
	humanID, err := lg.Append(CategoryHuman, testImage())
	require.NoError(t, err)

	latest, err := lg.MostRecent(nil)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, humanID, latest.ID)

	cat := CategoryAnimal
	latestAnimal, err := lg.MostRecent(&cat)
	require.NoError(t, err)
	require.NotNil(t, latestAnimal)
	assert.Equal(t, animalID, latestAnimal.ID)
}

func TestRecentOrderAndLimit(t *testing.T) {
	lg := openTestLedger(t)

	var ids []int64
	for i := 0; i < 4; i++ {
		id, err := lg.Append(CategoryHuman, testImage())
		require.NoError(t, err)
		ids = append(ids, id)
	}

	entries, err := lg.Recent(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ids[3], entries[0].ID)
	assert.Equal(t, ids[2], entries[1].ID)
	assert.Equal(t, ids[1], entries[2].ID)
}

func TestRecentByCategory(t *testing.T) {
	lg := openTestLedger(t)

	_, err := lg.Append(CategoryHuman, testImage())
	require.NoError(t, err)
	_, err = lg.Append(CategoryAnimal, testImage())
	require.NoError(t, err)
	_, err = lg.Append(CategoryHuman, testImage())
	require.NoError(t, err)

	entries, err := lg.RecentByCategory(CategoryAnimal, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, CategoryAnimal, entries[0].Category)
}

func TestGetEntryMissing(t *testing.T) {
	lg := openTestLedger(t)

	entry, err := lg.GetEntry(999)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestCountByCategory(t *testing.T) {
	lg := openTestLedger(t)

	for i := 0; i < 3; i++ {
		_, err := lg.Append(CategoryHuman, testImage())
		require.NoError(t, err)
	}
	_, err := lg.Append(CategoryAnimal, testImage())
	require.NoError(t, err)

	counts, err := lg.CountByCategory()
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[CategoryHuman])
	assert.Equal(t, int64(1), counts[CategoryAnimal])
}

func TestReopenPreservesEntries(t *testing.T) {
	dir := t.TempDir()
	opts := Options{
		DBPath:    filepath.Join(dir, "surveillance_log.db"),
		ImageDirs: DefaultImageDirs(dir),
	}

	lg, err := Open(opts)
	require.NoError(t, err)
	id, err := lg.Append(CategoryHuman, testImage())
	require.NoError(t, err)
	require.NoError(t, lg.Close())

	lg2, err := Open(opts)
	require.NoError(t, err)
	defer lg2.Close()

	entry, err := lg2.GetEntry(id)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, CategoryHuman, entry.Category)
}

func TestCategoryValid(t *testing.T) {
	assert.True(t, CategoryHuman.Valid())
	assert.True(t, CategoryAnimal.Valid())
	assert.False(t, Category("Vehicle").Valid())
	assert.False(t, Category("").Valid())
}
