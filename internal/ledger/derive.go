package ledger

import (
	"path"
	"sort"
	"strings"
	"time"

	"docsync/internal/tree"
)

// FileStats aggregates the resolved references targeting one source
// file during a run.
type FileStats struct {
	Verified   int
	Drifted    int
	Missing    int
	Unreadable int

	// CitingDocs maps doc path to how many citations of the file it
	// holds.
	CitingDocs map[string]int
}

func (s *FileStats) counts() RefCounts {
	return RefCounts{
		Verified:   s.Verified,
		Drifted:    s.Drifted,
		Missing:    s.Missing,
		Unreadable: s.Unreadable,
	}
}

// DeriveParams carries one run's inputs into ledger derivation.
type DeriveParams struct {
	RunID string
	Now   time.Time

	// Prior is the previously persisted ledger, nil on a first run.
	Prior *Ledger

	Source *tree.Snapshot
	Docs   *tree.Snapshot

	// Stats is keyed by canonical source path.
	Stats map[string]*FileStats

	MinDocLines    int
	MinSourceLines int
}

// Derive computes the next ledger from the current trees and resolution
// stats. Entries follow source files: new files create entries, deleted
// files drop theirs. The promotion guard keeps a file out of complete
// until its documentation content actually changed.
func Derive(p DeriveParams) *Ledger {
	next := &Ledger{
		Version:        FormatVersion,
		RunID:          p.RunID,
		GeneratedAt:    p.Now.UTC(),
		MinDocLines:    p.MinDocLines,
		MinSourceLines: p.MinSourceLines,
		Entries:        make(map[string]*Entry, p.Source.Len()),
	}

	for _, srcPath := range p.Source.Paths() {
		meta, _ := p.Source.Lookup(srcPath)
		next.Entries[srcPath] = deriveEntry(p, meta)
	}
	return next
}

func deriveEntry(p DeriveParams, meta *tree.FileMeta) *Entry {
	e := &Entry{
		SourcePath:  meta.Path,
		SourceHash:  meta.Hash,
		SourceLines: meta.Lines,
	}

	stats := p.Stats[meta.Path]
	if stats != nil {
		e.References = stats.counts()
	}

	e.PrimaryDoc = primaryDoc(p.Docs, meta.Path, stats)
	if e.PrimaryDoc != "" {
		if docMeta, ok := p.Docs.Lookup(e.PrimaryDoc); ok {
			e.DocHash = docMeta.Hash
			e.DocLines = docMeta.Lines
		}
	}

	e.Status = deriveStatus(e, p.MinDocLines, p.MinSourceLines)

	var prior *Entry
	if p.Prior != nil {
		prior = p.Prior.Entries[meta.Path]
	}
	applyGuard(e, prior)
	stampRuns(e, prior, p.RunID)
	return e
}

// primaryDoc picks the page that owns a source file: the name-matched
// page in the mirrored directory, else the page citing it most often
// (ties broken by the lexicographically first path).
func primaryDoc(docs *tree.Snapshot, srcPath string, stats *FileStats) string {
	dir := path.Dir(srcPath)
	base := path.Base(srcPath)
	stem := strings.TrimSuffix(base, path.Ext(base))

	for _, cand := range []string{
		path.Join(dir, stem+".md"),
		path.Join(dir, base+".md"),
	} {
		if _, ok := docs.Lookup(cand); ok {
			return cand
		}
	}

	if stats == nil || len(stats.CitingDocs) == 0 {
		return ""
	}

	docPaths := make([]string, 0, len(stats.CitingDocs))
	for d := range stats.CitingDocs {
		docPaths = append(docPaths, d)
	}
	sort.Strings(docPaths)

	best := ""
	bestCount := 0
	for _, d := range docPaths {
		if stats.CitingDocs[d] > bestCount {
			best, bestCount = d, stats.CitingDocs[d]
		}
	}
	return best
}

// deriveStatus grades an entry before the promotion guard runs.
func deriveStatus(e *Entry, minDocLines, minSourceLines int) Status {
	if e.PrimaryDoc == "" {
		return StatusUndocumented
	}

	trivial := e.SourceLines <= minSourceLines
	allResolve := e.References.Missing == 0 && e.References.Unreadable == 0
	if e.DocLines >= minDocLines && allResolve && (e.References.resolvable() >= 1 || trivial) {
		return StatusComplete
	}
	return StatusStub
}

// applyGuard enforces the promotion rule: complete is entered only when
// the entry is new or the recorded doc content changed since the prior
// run. Downgrades always apply.
func applyGuard(e *Entry, prior *Entry) {
	if e.Status != StatusComplete || prior == nil || prior.Status == StatusComplete {
		return
	}
	if prior.DocHash == e.DocHash {
		e.Status = prior.Status
		e.Note = "pending re-verification"
	}
}

func stampRuns(e *Entry, prior *Entry, runID string) {
	if prior == nil {
		e.FirstSeenRun = runID
		e.LastUpdatedRun = runID
		return
	}
	e.FirstSeenRun = prior.FirstSeenRun
	if materialChange(e, prior) {
		e.LastUpdatedRun = runID
	} else {
		e.LastUpdatedRun = prior.LastUpdatedRun
	}
}

// materialChange compares everything except the run stamps themselves.
func materialChange(a, b *Entry) bool {
	x, y := *a, *b
	x.FirstSeenRun, y.FirstSeenRun = "", ""
	x.LastUpdatedRun, y.LastUpdatedRun = "", ""
	return x != y
}

// Regression is a status downgrade relative to the prior ledger.
type Regression struct {
	SourcePath string `json:"sourcePath"`
	From       Status `json:"from"`
	To         Status `json:"to"`
}

// Regressions lists entries whose status dropped between two ledgers,
// sorted by source path. Entries that left the source tree do not
// count.
func Regressions(prior, next *Ledger) []Regression {
	if prior == nil || next == nil {
		return nil
	}

	var out []Regression
	for srcPath, before := range prior.Entries {
		after, ok := next.Entries[srcPath]
		if !ok {
			continue
		}
		if after.Status.Rank() < before.Status.Rank() {
			out = append(out, Regression{SourcePath: srcPath, From: before.Status, To: after.Status})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourcePath < out[j].SourcePath })
	return out
}
