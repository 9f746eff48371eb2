// Package ledger tracks per-file documentation status across runs. The
// ledger is a versioned JSON file rewritten atomically under an
// exclusive lock; prior state drives the promotion guard and regression
// detection.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FormatVersion is the newest ledger schema this build reads and writes.
const FormatVersion = 1

// ErrUnsupportedVersion marks a ledger written by a newer build.
var ErrUnsupportedVersion = errors.New("ledger format version not supported")

// ErrLocked means another process holds the ledger lock.
var ErrLocked = errors.New("ledger is locked by another process")

// Status grades how completely a source file is documented.
type Status string

const (
	StatusUndocumented Status = "undocumented"
	StatusStub         Status = "stub"
	StatusComplete     Status = "complete"
)

// Rank orders statuses for regression detection; higher is better.
func (s Status) Rank() int {
	switch s {
	case StatusComplete:
		return 2
	case StatusStub:
		return 1
	case StatusUndocumented:
		return 0
	default:
		return -1
	}
}

// RefCounts aggregates resolution outcomes for the references targeting
// one source file.
type RefCounts struct {
	Verified   int `json:"verified"`
	Drifted    int `json:"drifted"`
	Missing    int `json:"missing"`
	Unreadable int `json:"unreadable"`
}

func (c RefCounts) resolvable() int { return c.Verified + c.Drifted }

// Entry is the ledger record for one source file.
type Entry struct {
	SourcePath  string `json:"sourcePath"`
	SourceHash  string `json:"sourceHash,omitempty"`
	SourceLines int    `json:"sourceLines"`

	PrimaryDoc string `json:"primaryDoc,omitempty"`
	DocHash    string `json:"docHash,omitempty"`
	DocLines   int    `json:"docLines,omitempty"`

	Status Status `json:"status"`
	// Note carries the promotion-guard annotation.
	Note string `json:"note,omitempty"`

	References RefCounts `json:"references"`

	FirstSeenRun   string `json:"firstSeenRun"`
	LastUpdatedRun string `json:"lastUpdatedRun"`
}

// Ledger is the on-disk document.
type Ledger struct {
	Version        int               `json:"version"`
	RunID          string            `json:"runId"`
	GeneratedAt    time.Time         `json:"generatedAt"`
	MinDocLines    int               `json:"minDocLines"`
	MinSourceLines int               `json:"minSourceLines"`
	Entries        map[string]*Entry `json:"entries"`
}

// Load reads a ledger file. A missing file returns (nil, nil); callers
// treat that as a first run.
func Load(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse ledger: %w", err)
	}
	if l.Version > FormatVersion {
		return nil, fmt.Errorf("%w: file has version %d, this build understands up to %d", ErrUnsupportedVersion, l.Version, FormatVersion)
	}
	if l.Entries == nil {
		l.Entries = make(map[string]*Entry)
	}
	return &l, nil
}

// Save writes the ledger atomically: temp file in the same directory,
// then rename. Callers hold the ledger lock across their load, derive,
// save sequence.
func Save(path string, l *Ledger) error {
	l.Version = FormatVersion

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename ledger: %w", err)
	}
	return nil
}
