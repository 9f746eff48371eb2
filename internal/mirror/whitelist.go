package mirror

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Whitelist holds doublestar patterns that silence mirror findings for
// the directories they match. Plain paths match only themselves.
type Whitelist struct {
	patterns []string
}

// NewWhitelist builds a whitelist from already-validated patterns.
func NewWhitelist(patterns ...string) *Whitelist {
	w := &Whitelist{}
	w.patterns = append(w.patterns, patterns...)
	return w
}

// LoadWhitelist reads a newline-delimited pattern file. Blank lines and
// lines starting with # are ignored. A missing file yields an empty
// whitelist, not an error.
func LoadWhitelist(path string) (*Whitelist, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Whitelist{}, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	w := &Whitelist{}
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !doublestar.ValidatePattern(line) {
			return nil, fmt.Errorf("whitelist %s:%d: invalid pattern %q", path, lineNum, line)
		}
		w.patterns = append(w.patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read whitelist %s: %w", path, err)
	}
	return w, nil
}

// Add appends extra patterns, typically contributed by DOCMAP.toml.
func (w *Whitelist) Add(patterns ...string) error {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("invalid whitelist pattern %q", p)
		}
		w.patterns = append(w.patterns, p)
	}
	return nil
}

// Matches reports whether any pattern matches the slash-separated
// relative directory path.
func (w *Whitelist) Matches(rel string) bool {
	for _, p := range w.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Patterns returns the patterns in declaration order.
func (w *Whitelist) Patterns() []string {
	return w.patterns
}
