package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Editor lock files and partial downloads.
var excludePatterns = []string{"~$", ".tmp"}

func hasExtension(path string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(path))

	for _, allowed := range extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}

	return false
}

func excluded(name string) bool {
	for _, pattern := range excludePatterns {
		if strings.Contains(name, pattern) {
			return true
		}
	}

	return false
}

type fileTime struct {
	path    string
	modTime time.Time
}

// ListFiles returns the files in dir with one of the extensions, newest first.
func ListFiles(dir string, extensions []string, keep func(name string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	files := []fileTime{}

	for _, entry := range entries {
		name := entry.Name()

		if entry.IsDir() || excluded(name) || !hasExtension(name, extensions) {
			continue
		}

		if keep != nil && !keep(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		files = append(files, fileTime{path: filepath.Join(dir, name), modTime: info.ModTime()})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}

	return paths, nil
}

// LatestFile is the newest file ListFiles would return.
func LatestFile(dir string, extensions []string, keep func(name string) bool) (string, error) {
	files, err := ListFiles(dir, extensions, keep)
	if err != nil {
		return "", err
	}

	if len(files) == 0 {
		return "", ErrNoInputFile
	}

	return files[0], nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func baseName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
