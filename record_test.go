package main

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorded(r *Record, input string) bool {
	_, ok := r.Get(input)
	return ok
}

func TestRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "record.json")

	r, err := LoadRecord(path)
	require.NoError(t, err)
	assert.False(t, recorded(r, "a.jpg"))

	require.NoError(t, r.Mark("a.jpg", "a.xlsx"))
	assert.FileExists(t, path)

	r, err = LoadRecord(path)
	require.NoError(t, err)

	output, ok := r.Get("a.jpg")
	assert.True(t, ok)
	assert.Equal(t, "a.xlsx", output)
}

func TestRecordConcurrent(t *testing.T) {
	r, err := LoadRecord(filepath.Join(t.TempDir(), "record.json"))
	require.NoError(t, err)

	var wg sync.WaitGroup

	for _, name := range []string{"a", "b", "c", "d", "e", "f"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			assert.NoError(t, r.Mark(name+".jpg", name+".xlsx"))
		}(name)
	}

	wg.Wait()

	r, err = LoadRecord(r.path)
	require.NoError(t, err)
	assert.Len(t, r.entries, 6)
}

func TestRecordCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	r, err := LoadRecord(path)
	require.NoError(t, err)
	assert.Empty(t, r.entries)

	// Empty is fine too.
	require.NoError(t, os.WriteFile(path, nil, 0644))

	r, err = LoadRecord(path)
	require.NoError(t, err)
	assert.Empty(t, r.entries)
}
