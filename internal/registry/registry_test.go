package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "registered_signatures.json"))
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Jane Doe":      "jane doe",
		"  JANE DOE  ":  "jane doe",
		"\tJohn Smith ": "john smith",
		"":              "",
		"   ":           "",
	}
	for input, want := range cases {
		assert.Equal(t, want, Normalize(input))
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, s := range []string{"Jane Doe", "  JANE DOE  ", "josé GARCÍA", "x"} {
		assert.Equal(t, Normalize(s), Normalize(Normalize(s)))
	}
}

func TestContainsOnMissingFile(t *testing.T) {
	store := newStore(t)

	seen, err := store.Contains("jane doe")
	require.NoError(t, err)
	assert.False(t, seen)

	entries, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRecordAndContains(t *testing.T) {
	store := newStore(t)

	require.NoError(t, store.Record("Jane Doe"))

	seen, err := store.Contains("  JANE DOE  ")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = store.Contains("john smith")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRecordPersistsAsJSONArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registered_signatures.json")
	store := NewFileStore(path)

	require.NoError(t, store.Record("Jane Doe"))
	require.NoError(t, store.Record("John Smith"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []string
	require.NoError(t, json.Unmarshal(data, &entries))
	assert.Equal(t, []string{"jane doe", "john smith"}, entries)
}

func TestRecordIsNotIdempotent(t *testing.T) {
	// Callers guard with Contains; the store itself appends blindly.
	store := newStore(t)

	require.NoError(t, store.Record("jane doe"))
	require.NoError(t, store.Record("jane doe"))

	entries, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"jane doe", "jane doe"}, entries)
}

func TestUpdate(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Record("jane doe"))
	require.NoError(t, store.Record("john smith"))

	require.NoError(t, store.Update(1, "  John Q Smith "))

	entries, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"jane doe", "john q smith"}, entries)
}

func TestUpdateOutOfRange(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Record("jane doe"))

	assert.ErrorIs(t, store.Update(1, "x"), ErrOutOfRange)
	assert.ErrorIs(t, store.Update(-1, "x"), ErrOutOfRange)
}

func TestRemove(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Record("jane doe"))
	require.NoError(t, store.Record("john smith"))
	require.NoError(t, store.Record("ana lópez"))

	require.NoError(t, store.Remove(1))

	entries, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"jane doe", "ana lópez"}, entries)

	assert.ErrorIs(t, store.Remove(5), ErrOutOfRange)
}

func TestCorruptFileSurfacesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registered_signatures.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	store := NewFileStore(path)
	_, err := store.Contains("jane doe")
	assert.Error(t, err)
}
