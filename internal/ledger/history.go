package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// WriteHistory stores a compressed snapshot of the ledger under the
// history directory, named after the run. Returns the snapshot path.
func WriteHistory(historyDir string, l *Ledger) (string, error) {
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create history directory: %w", err)
	}

	raw, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal ledger snapshot: %w", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return "", fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(raw, nil)
	_ = enc.Close()

	path := filepath.Join(historyDir, l.RunID+".json.zst")
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, compressed, 0644); err != nil {
		return "", fmt.Errorf("failed to write history snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename history snapshot: %w", err)
	}
	return path, nil
}

// ReadHistory loads one snapshot back, for doctor and tests.
func ReadHistory(path string) (*Ledger, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read history snapshot: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress history snapshot: %w", err)
	}

	var l Ledger
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, fmt.Errorf("failed to parse history snapshot: %w", err)
	}
	return &l, nil
}
