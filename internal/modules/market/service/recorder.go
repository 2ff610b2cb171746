package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Mr-Gerald/NEXUSAI/internal/models"
)

// Recorder appends freshly closed M5 bars to the same per-asset CSV files the
// bootstrap reads, so the local history heals itself from the live feed.
// Assets without a configured file are skipped.
type Recorder struct {
	mu    sync.Mutex
	dir   string
	files map[string]string // asset -> filename
}

func NewRecorder(dir string, files map[string]string) *Recorder {
	return &Recorder{dir: dir, files: files}
}

func (r *Recorder) Append(asset string, c models.Candle) error {
	name, ok := r.files[asset]
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	f, err := os.OpenFile(filepath.Join(r.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open history file")
	}
	defer f.Close()

	ts := time.UnixMilli(c.OpenTime).UTC().Format(time.RFC3339)
	// live ticks carry no volume, so the column is written as 0
	line := fmt.Sprintf("%q,%g,%g,%g,%g,0\n", ts, c.Open, c.High, c.Low, c.Close)
	if _, err := f.WriteString(line); err != nil {
		return errors.Wrap(err, "append candle")
	}
	return nil
}
