// Package mirror checks that the documentation tree mirrors the source
// tree: every source directory holding files has a corresponding doc
// directory with at least one Markdown page, and no doc directory points
// at source that does not exist.
package mirror

import (
	"fmt"
	"sort"

	"docsync/internal/tree"
)

// Kind classifies a mirror finding.
type Kind string

const (
	// Undocumented marks a source directory with files but no mirrored
	// doc page.
	Undocumented Kind = "undocumented"
	// Orphaned marks a doc directory whose source counterpart is gone.
	Orphaned Kind = "orphaned"
)

// Finding reports one directory violating the mirror rule.
type Finding struct {
	Kind   Kind   `json:"kind"`
	Path   string `json:"path"`
	Detail string `json:"detail,omitempty"`
}

// Validate applies the mirror rule between the two trees. The first
// slice holds the reportable findings, the second the findings a
// whitelist pattern suppressed; both are sorted by (kind, path).
func Validate(source, docs *tree.Snapshot, wl *Whitelist) (findings, suppressed []Finding) {
	if wl == nil {
		wl = &Whitelist{}
	}

	for _, dir := range source.DirsWithFiles() {
		if docs.HasDir(dir) && docs.DirHasFiles(dir) {
			continue
		}
		f := Finding{
			Kind:   Undocumented,
			Path:   dir,
			Detail: fmt.Sprintf("%d source file(s) lack a mirrored doc page", len(source.FilesInDir(dir))),
		}
		if wl.Matches(dir) {
			suppressed = append(suppressed, f)
		} else {
			findings = append(findings, f)
		}
	}

	for _, dir := range docs.Dirs() {
		if dir == "." || source.HasDir(dir) {
			continue
		}
		f := Finding{
			Kind:   Orphaned,
			Path:   dir,
			Detail: "doc directory has no source counterpart",
		}
		if wl.Matches(dir) {
			suppressed = append(suppressed, f)
		} else {
			findings = append(findings, f)
		}
	}

	sortFindings(findings)
	sortFindings(suppressed)
	return findings, suppressed
}

func sortFindings(fs []Finding) {
	sort.Slice(fs, func(i, j int) bool {
		if fs[i].Kind != fs[j].Kind {
			return fs[i].Kind < fs[j].Kind
		}
		return fs[i].Path < fs[j].Path
	})
}
