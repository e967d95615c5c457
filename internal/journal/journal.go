// Package journal provides a local append-only fallback journal for detected
// errors. When the durable store is unreachable, detections are appended here
// as JSON lines so the in-memory pipeline can continue and nothing observed
// is lost. The file is flock-guarded for safe concurrent appends across
// goroutines and processes.
package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/harrison/remedy/internal/models"
)

// Journal appends detected errors to a JSONL file under an exclusive
// file lock.
type Journal struct {
	path     string
	lockPath string
}

// entry is one journal line.
type entry struct {
	LoggedAt time.Time             `json:"logged_at"`
	Reason   string                `json:"reason"`
	Error    *models.DetectedError `json:"error"`
}

// New creates a Journal writing to path. The parent directory is created on
// first append, not here, so constructing a journal never fails.
func New(path string) *Journal {
	return &Journal{
		path:     path,
		lockPath: path + ".lock",
	}
}

// Append records a detected error with the reason persistence was bypassed
// (typically the store error message).
func (j *Journal) Append(e *models.DetectedError, reason string) error {
	line, err := json.Marshal(entry{
		LoggedAt: time.Now().UTC(),
		Reason:   reason,
		Error:    e,
	})
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("create journal directory: %w", err)
	}

	lock := flock.New(j.lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire journal lock: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// ReadAll returns every journaled error, oldest first. Used by operators to
// replay detections once the store is reachable again.
func (j *Journal) ReadAll() ([]*models.DetectedError, error) {
	lock := flock.New(j.lockPath)
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("acquire journal lock: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	var out []*models.DetectedError
	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var e entry
		if err := dec.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode journal entry: %w", err)
		}
		out = append(out, e.Error)
	}
	return out, nil
}
