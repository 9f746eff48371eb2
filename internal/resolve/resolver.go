package resolve

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"

	"docsync/internal/extract"
	"docsync/internal/tree"
)

// minExactChars is the shortest trimmed source line accepted as an
// exact anchor match; anything shorter (braces, "else") matches
// everywhere and proves nothing.
const minExactChars = 4

// Options controls resolution behavior.
type Options struct {
	// WindowSizes are the widening search radii around the cited line,
	// strictly ascending.
	WindowSizes []int
	// FuzzyThreshold is the minimum similarity ratio for a fuzzy match.
	FuzzyThreshold float64
}

// DefaultOptions returns the standard widening windows and threshold.
func DefaultOptions() Options {
	return Options{
		WindowSizes:    []int{5, 20, 100},
		FuzzyThreshold: 0.75,
	}
}

// Resolver checks references against the source tree. File content is
// loaded once into an immutable line slice and shared between
// goroutines, so one Resolver may serve many concurrent Resolve calls.
type Resolver struct {
	source    *tree.Snapshot
	windows   []int
	threshold float64
	lines     sync.Map // path -> *fileLines
}

type fileLines struct {
	lines []string
	err   error
}

// NewResolver creates a Resolver over the given source snapshot.
func NewResolver(source *tree.Snapshot, opts Options) *Resolver {
	if len(opts.WindowSizes) == 0 {
		opts.WindowSizes = DefaultOptions().WindowSizes
	}
	if opts.FuzzyThreshold <= 0 {
		opts.FuzzyThreshold = DefaultOptions().FuzzyThreshold
	}
	return &Resolver{
		source:    source,
		windows:   opts.WindowSizes,
		threshold: opts.FuzzyThreshold,
	}
}

// Resolve classifies a single reference. Identical trees and reference
// always produce the identical outcome.
func (r *Resolver) Resolve(ref extract.CodeReference) Outcome {
	meta, found, ambiguous := r.source.Resolve(ref.TargetPath)
	if ambiguous {
		return Outcome{Kind: Missing, Note: "cited path matches multiple source files"}
	}
	if !found {
		return Outcome{Kind: Missing}
	}

	out := r.resolveInFile(meta, ref)
	out.ResolvedPath = meta.Path
	return out
}

// resolveInFile checks a reference against the one file it identified.
func (r *Resolver) resolveInFile(meta *tree.FileMeta, ref extract.CodeReference) Outcome {
	if meta.Unreadable {
		return Outcome{Kind: SourceUnreadable}
	}

	lines, err := r.loadLines(meta)
	if err != nil {
		return Outcome{Kind: SourceUnreadable}
	}

	cited := ref.StartLine

	// A bare existence claim: the citation asserted nothing beyond the
	// file and line being there
	if ref.Anchor == "" {
		if cited <= len(lines) {
			return Outcome{Kind: Verified, Confidence: 1.0}
		}
		return Outcome{Kind: Missing, Note: "cited line beyond end of file"}
	}

	prevRadius := -1
	for _, radius := range r.windows {
		if outcome, matched := r.searchWindow(lines, cited, prevRadius, radius, ref.Anchor); matched {
			return outcome
		}
		prevRadius = radius
	}

	return Outcome{Kind: Missing, Note: "anchor not found near cited line"}
}

// searchWindow scans the lines at distances (prevRadius, radius] from
// the cited line, ascending distance with the smaller line number
// first. Exact substring matches beat fuzzy similarity; the match
// decides verified (at the cited line) vs drifted (elsewhere).
func (r *Resolver) searchWindow(lines []string, cited, prevRadius, radius int, anchor string) (Outcome, bool) {
	type hit struct {
		line int
		sim  float64
	}

	var exact []int
	var bestFuzzy []hit

	anchorLines := splitTrimmed(anchor)

	consider := func(lineNo int) {
		if lineNo < 1 || lineNo > len(lines) {
			return
		}
		trimmed := strings.TrimSpace(lines[lineNo-1])
		if trimmed == "" {
			return
		}

		if len(trimmed) >= minExactChars && strings.Contains(anchor, trimmed) {
			exact = append(exact, lineNo)
			return
		}

		sim := 0.0
		for _, al := range anchorLines {
			if s := similarity(trimmed, al); s > sim {
				sim = s
			}
		}
		if sim < r.threshold {
			return
		}
		if len(bestFuzzy) == 0 || sim > bestFuzzy[0].sim {
			bestFuzzy = []hit{{line: lineNo, sim: sim}}
		} else if sim == bestFuzzy[0].sim {
			bestFuzzy = append(bestFuzzy, hit{line: lineNo, sim: sim})
		}
	}

	for d := prevRadius + 1; d <= radius; d++ {
		if d == 0 {
			consider(cited)
			continue
		}
		consider(cited - d)
		consider(cited + d)
	}

	if len(exact) > 0 {
		first := exact[0]
		switch {
		case first == cited:
			return Outcome{Kind: Verified, Confidence: 1.0}, true
		case len(exact) == 1:
			return Outcome{Kind: Drifted, SuggestedLine: first, Confidence: 0.9}, true
		default:
			return Outcome{
				Kind:          Drifted,
				SuggestedLine: first,
				Confidence:    0.5,
				Note:          fmt.Sprintf("low confidence: %d equally plausible lines", len(exact)),
			}, true
		}
	}

	if len(bestFuzzy) > 0 {
		first := bestFuzzy[0]
		confidence := 0.9
		note := ""
		if len(bestFuzzy) > 1 {
			confidence = 0.5
			note = fmt.Sprintf("low confidence: %d equally similar lines", len(bestFuzzy))
		}
		if first.line == cited {
			return Outcome{Kind: Verified, Confidence: confidence, Note: note}, true
		}
		return Outcome{Kind: Drifted, SuggestedLine: first.line, Confidence: confidence, Note: note}, true
	}

	return Outcome{}, false
}

// loadLines returns the shared immutable line slice for a source file,
// reading it on first use. Concurrent first loads may both read the
// file; the first store wins and later calls observe that copy.
func (r *Resolver) loadLines(meta *tree.FileMeta) ([]string, error) {
	if v, ok := r.lines.Load(meta.Path); ok {
		fl := v.(*fileLines)
		return fl.lines, fl.err
	}

	var fl *fileLines
	content, err := os.ReadFile(r.source.AbsPath(meta.Path))
	if err != nil {
		fl = &fileLines{err: err}
	} else {
		fl = &fileLines{lines: splitContent(string(content))}
	}

	actual, _ := r.lines.LoadOrStore(meta.Path, fl)
	got := actual.(*fileLines)
	return got.lines, got.err
}

// splitContent splits file content into lines, not counting a trailing
// newline as an extra empty line.
func splitContent(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(content, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// splitTrimmed breaks an anchor into its trimmed lines, dropping lines
// too short to distinguish (braces, lone keywords) so they cannot
// dominate the fuzzy comparison.
func splitTrimmed(anchor string) []string {
	raw := strings.Split(anchor, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if t := strings.TrimSpace(l); len(t) >= minExactChars {
			out = append(out, t)
		}
	}
	return out
}

// similarity computes the Levenshtein-based similarity ratio between
// two strings. DiffTimeout is zeroed so the ratio never depends on
// wall-clock time.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMain(a, b, false)
	distance := dmp.DiffLevenshtein(diffs)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	return 1.0 - float64(distance)/float64(maxLen)
}
