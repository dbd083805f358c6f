package checkpoint

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func sampleRecord(items ...interface{}) *Record {
	return &Record{
		RunID:           "01J8ZQ8K2V9X4N5P6Q7R8S9T0A",
		CompletedRanges: [][2]int{{0, 2}, {4, 6}},
		Items:           items,
		Metadata:        []interface{}{"a", "b"},
		Config:          map[string]interface{}{"chunkCount": 3, "totalItems": 6},
		Timestamp:       time.Now().UTC(),
	}
}

func TestWriterPersistAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	w := NewWriter(nil, path)

	require.NoError(t, w.Persist(sampleRecord("x", "y", "z", "w")))

	record, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "01J8ZQ8K2V9X4N5P6Q7R8S9T0A", record.RunID)
	assert.Equal(t, [][2]int{{0, 2}, {4, 6}}, record.CompletedRanges)
	assert.Len(t, record.Items, 4)
	assert.Equal(t, "x", record.Items[0])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temporary file must not survive a persist")
}

func TestWriterOverwriteIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	w := NewWriter(nil, path)

	first := sampleRecord("x")
	first.CompletedRanges = [][2]int{{0, 1}}
	require.NoError(t, w.Persist(first))

	second := sampleRecord("x", "y")
	second.CompletedRanges = [][2]int{{0, 2}}
	require.NoError(t, w.Persist(second))
	require.NoError(t, w.Persist(second))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "exactly one checkpoint file after repeated persists")

	record, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, [][2]int{{0, 2}}, record.CompletedRanges)
	assert.Len(t, record.Items, 2)
}

func TestWriterCreatesParentDirs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deeper", "run.json")
	w := NewWriter(&LocalFileSystem{}, path)

	require.NoError(t, w.Persist(sampleRecord()))

	record, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, "01J8ZQ8K2V9X4N5P6Q7R8S9T0A", record.RunID)
}

func TestWriterCleansTempOnEncodeError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.json")
	w := NewWriter(nil, path)

	bad := sampleRecord(make(chan int))
	err := w.Persist(bad)
	require.Error(t, err)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "failed persist must not leave files behind")
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(nil, filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLocalFileSystem(t *testing.T) {
	dir := t.TempDir()
	fs := &LocalFileSystem{}

	exists, err := fs.Exists(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.False(t, exists)

	name := filepath.Join(dir, "a.txt")
	out, err := fs.Create(name)
	require.NoError(t, err)
	_, err = out.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, out.Close())

	exists, err = fs.Exists(name)
	require.NoError(t, err)
	assert.True(t, exists)

	renamed := filepath.Join(dir, "b.txt")
	require.NoError(t, fs.Rename(name, renamed))
	exists, _ = fs.Exists(name)
	assert.False(t, exists)

	require.NoError(t, fs.Remove(renamed))
	exists, _ = fs.Exists(renamed)
	assert.False(t, exists)
}
