package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Record remembers which inputs have already produced which outputs, so reruns skip work already done.  It is saved
// after every change; OCR workers share one.
type Record struct {
	path    string
	mu      sync.Mutex
	entries map[string]string
}

func LoadRecord(path string) (*Record, error) {
	r := &Record{
		path:    path,
		entries: map[string]string{},
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read record %s: %w", path, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.entries); err != nil {
			// A corrupt record only costs us some repeated work.
			sugar.Warnf("Ignoring unreadable record %s: %v", path, err)
			r.entries = map[string]string{}
		}
	}

	return r, nil
}

func (r *Record) Get(input string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	output, ok := r.entries[input]
	return output, ok
}

func (r *Record) Mark(input string, output string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[input] = output

	return r.save()
}

func (r *Record) save() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return err
	}

	return os.WriteFile(r.path, data, 0644)
}
