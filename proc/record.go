// Package proc tracks the polling scheduler process: the single-slot PID
// record on disk and the spawn/liveness/terminate operations on the process.
package proc

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/teranos/dawn/errors"
)

// Record is the RunningProcessRecord: which scheduler process is presumed running.
// The file's first line is the bare PID, so plain PID-file readers still work.
type Record struct {
	PID        int       `json:"pid" yaml:"pid"`
	StartedAt  time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Version    string    `json:"version,omitempty" yaml:"version,omitempty"`
	InstanceID string    `json:"instance_id,omitempty" yaml:"instance_id,omitempty"`
}

// RecordStore persists a single Record at a fixed path. Writes overwrite.
// There is no locking: concurrent install and uninstall can race.
type RecordStore struct {
	path string
}

// NewRecordStore creates a store for the record file at path
func NewRecordStore(path string) *RecordStore {
	return &RecordStore{path: path}
}

// Path returns the record file location
func (s *RecordStore) Path() string {
	return s.path
}

// Load reads the record. Returns (nil, nil) when no record exists.
func (s *RecordStore) Load() (*Record, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open process record %s", s.path)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, errors.Newf("process record %s is empty", s.path)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || pid <= 0 {
		return nil, errors.Newf("process record %s has invalid pid %q", s.path, scanner.Text())
	}
	rec := &Record{PID: pid}

	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "started_at":
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
				rec.StartedAt = t
			}
		case "version":
			rec.Version = strings.TrimSpace(value)
		case "instance_id":
			rec.InstanceID = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read process record %s", s.path)
	}

	return rec, nil
}

// Save writes the record, creating the parent directory if needed
func (s *RecordStore) Save(rec *Record) error {
	if rec == nil || rec.PID <= 0 {
		return errors.New("process record requires a positive pid")
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return errors.Setupf(err, "create state directory %s", filepath.Dir(s.path))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d\n", rec.PID)
	if !rec.StartedAt.IsZero() {
		fmt.Fprintf(&b, "started_at=%s\n", rec.StartedAt.Format(time.RFC3339))
	}
	if rec.Version != "" {
		fmt.Fprintf(&b, "version=%s\n", rec.Version)
	}
	if rec.InstanceID != "" {
		fmt.Fprintf(&b, "instance_id=%s\n", rec.InstanceID)
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0644); err != nil {
		return errors.Setupf(err, "write process record %s", s.path)
	}
	return nil
}

// Remove deletes the record. A missing record is not an error.
func (s *RecordStore) Remove() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Setupf(err, "remove process record %s", s.path)
	}
	return nil
}
