package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, dir string, name string, age time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("log"), 0644))

	when := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, when, when))

	return path
}

func TestCleanLogsByAge(t *testing.T) {
	dir := t.TempDir()
	old := writeLog(t, dir, "old.log", 10*24*time.Hour)
	recent := writeLog(t, dir, "recent.log", time.Hour)
	other := writeLog(t, dir, "old.txt", 10*24*time.Hour)

	removed, err := CleanLogs(dir, 7, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
	assert.FileExists(t, other)
}

func TestCleanLogsByCount(t *testing.T) {
	dir := t.TempDir()
	newest := writeLog(t, dir, "c.log", time.Minute)
	middle := writeLog(t, dir, "b.log", time.Hour)
	oldest := writeLog(t, dir, "a.log", 2*time.Hour)

	removed, err := CleanLogs(dir, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.FileExists(t, newest)
	assert.FileExists(t, middle)
	assert.NoFileExists(t, oldest)
}

func TestCleanLogsMissingDir(t *testing.T) {
	removed, err := CleanLogs(filepath.Join(t.TempDir(), "missing"), 7, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}
