package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const filePrefix = "llmseo-"

// dailyFile appends to <dir>/llmseo-YYYY-MM-DD.log and switches files when
// the date changes. Only the newest maxDays files are kept.
type dailyFile struct {
	mu      sync.Mutex
	dir     string
	maxDays int
	now     func() time.Time

	date string
	f    *os.File
}

func openDailyFile(dir string, maxDays int, now func() time.Time) (*dailyFile, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	d := &dailyFile{dir: dir, maxDays: maxDays, now: now}
	if err := d.rotate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *dailyFile) path(date string) string {
	return filepath.Join(d.dir, filePrefix+date+".log")
}

// rotate opens today's file if it is not open yet. Callers hold mu.
func (d *dailyFile) rotate() error {
	today := d.now().Format("2006-01-02")
	if d.f != nil && d.date == today {
		return nil
	}
	f, err := os.OpenFile(d.path(today), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if d.f != nil {
		d.f.Close()
	}
	d.f, d.date = f, today
	d.prune()
	return nil
}

func (d *dailyFile) prune() {
	files, err := filepath.Glob(filepath.Join(d.dir, filePrefix+"*.log"))
	if err != nil || len(files) <= d.maxDays {
		return
	}
	// date-stamped names sort chronologically
	sort.Strings(files)
	for _, old := range files[:len(files)-d.maxDays] {
		os.Remove(old)
	}
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.rotate(); err != nil {
		fmt.Fprintf(os.Stderr, "Logger rotation error: %v\n", err)
		return len(p), nil
	}
	if d.f == nil {
		return len(p), nil
	}
	return d.f.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	return err
}
