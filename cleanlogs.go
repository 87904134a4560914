package main

import (
	"os"
	"time"
)

// CleanLogs deletes .log files in dir older than maxDays, then the oldest beyond the newest maxFiles.  Zero disables
// either limit.  It returns how many files went.
func CleanLogs(dir string, maxDays int, maxFiles int) (int, error) {
	logs, err := ListFiles(dir, []string{".log"}, nil)
	if os.IsNotExist(err) {
		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	cutoff := time.Now().AddDate(0, 0, -maxDays)
	removed := 0

	for i, path := range logs {
		remove := maxFiles > 0 && i >= maxFiles

		if !remove && maxDays > 0 {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}

			remove = info.ModTime().Before(cutoff)
		}

		if !remove {
			continue
		}

		if err := os.Remove(path); err != nil {
			sugar.Warnf("Could not delete %s: %v", path, err)
			continue
		}

		sugar.Debugf("Deleted log %s", path)
		removed++
	}

	sugar.Infof("Cleaned %d of %d logs in %s", removed, len(logs), dir)

	return removed, nil
}
