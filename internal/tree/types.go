// Package tree builds immutable snapshots of the source and documentation
// trees. A snapshot records every inventoried file with its content hash and
// line count plus the directory structure, and answers path lookups for
// citation resolution and mirror validation.
package tree

import (
	"path"
	"strings"
)

// FileMeta describes one inventoried file.
type FileMeta struct {
	// Path is the root-relative path with forward slashes.
	Path string
	// Size in bytes at scan time.
	Size int64
	// Lines is the number of lines; a trailing partial line counts.
	Lines int
	// Hash is the BLAKE2b-256 content hash, hex-encoded. Empty when
	// the file could not be read.
	Hash string
	// Unreadable marks files that existed but could not be opened.
	Unreadable bool
}

// Snapshot is an immutable inventory of one tree root.
type Snapshot struct {
	// Root is the absolute root path.
	Root string

	files         map[string]*FileMeta
	paths         []string // sorted
	dirs          []string // sorted, includes "."
	dirSet        map[string]bool
	dirsWithFiles []string // sorted dirs containing >=1 file directly
	dirFileSet    map[string]bool
	byBase        map[string][]string // basename -> sorted relpaths
	filesByDir    map[string][]string // dir -> sorted direct file paths
	subdirsByDir  map[string][]string // dir -> sorted direct child dirs
}

// Len returns the number of inventoried files.
func (s *Snapshot) Len() int {
	return len(s.files)
}

// Paths returns all file paths in sorted order.
func (s *Snapshot) Paths() []string {
	return s.paths
}

// Lookup returns the metadata for an exact root-relative path.
func (s *Snapshot) Lookup(rel string) (*FileMeta, bool) {
	m, ok := s.files[rel]
	return m, ok
}

// Resolve finds the file a cited path refers to: an exact relative path,
// or the unique tree path the citation is a suffix of. The third return
// is true when the suffix matches more than one file.
func (s *Snapshot) Resolve(rel string) (*FileMeta, bool, bool) {
	if m, ok := s.files[rel]; ok {
		return m, true, false
	}

	candidates := s.byBase[path.Base(rel)]
	var found *FileMeta
	matches := 0
	for _, cand := range candidates {
		if cand == rel || strings.HasSuffix(cand, "/"+rel) {
			matches++
			if found == nil {
				found = s.files[cand]
			}
		}
	}
	switch matches {
	case 0:
		return nil, false, false
	case 1:
		return found, true, false
	default:
		return nil, false, true
	}
}

// Dirs returns every directory seen during the walk, sorted, "." included.
func (s *Snapshot) Dirs() []string {
	return s.dirs
}

// HasDir reports whether the relative directory exists in the tree.
func (s *Snapshot) HasDir(rel string) bool {
	return s.dirSet[rel]
}

// DirsWithFiles returns directories directly containing at least one
// inventoried file, sorted.
func (s *Snapshot) DirsWithFiles() []string {
	return s.dirsWithFiles
}

// DirHasFiles reports whether the directory directly contains at least
// one inventoried file.
func (s *Snapshot) DirHasFiles(rel string) bool {
	return s.dirFileSet[rel]
}

// FilesInDir returns the inventoried files directly under dir, sorted.
func (s *Snapshot) FilesInDir(dir string) []string {
	return s.filesByDir[dir]
}

// Subdirs returns the direct child directories of dir, sorted.
func (s *Snapshot) Subdirs(dir string) []string {
	return s.subdirsByDir[dir]
}
