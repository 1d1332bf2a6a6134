package app

import (
	"fmt"
	"os"
	"time"
)

// nextDelay returns the time until the next multiple of interval counted from
// the start of the day, so a 15 minute interval runs at 0, 15, 30 and 45.
func nextDelay(now time.Time, interval time.Duration) time.Duration {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	elapsed := now.Sub(midnight)
	next := (elapsed/interval + 1) * interval
	return next - elapsed
}

func writeHealthFile(path string, now time.Time) error {
	if path == "" {
		return nil
	}
	tmp := path + ".tmp"
	err := os.WriteFile(tmp, []byte(now.UTC().Format(time.RFC3339)+"\n"), 0644)
	if err != nil {
		return fmt.Errorf("error writing health file: %w", err)
	}
	return os.Rename(tmp, path)
}
