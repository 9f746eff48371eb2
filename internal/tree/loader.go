package tree

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"

	"docsync/internal/logging"
)

// Options controls a tree walk.
type Options struct {
	// Extensions lists file extensions to inventory, with or without
	// the leading dot. Empty means every file. Comparison is
	// case-sensitive so "s" and "S" assembly files stay distinct.
	Extensions []string
	// ExcludeDirs lists directory names skipped wherever they appear.
	// Dot-directories are always skipped.
	ExcludeDirs []string
	// MaxFileSizeBytes skips larger files when positive.
	MaxFileSizeBytes int
	// Workers sizes the hashing pool; <=0 means runtime.NumCPU().
	Workers int
	Logger  *logging.Logger
}

type candidate struct {
	rel  string
	abs  string
	size int64
}

// Load walks root and builds a snapshot. Files that exist but cannot be
// read are inventoried with Unreadable set so downstream consumers can
// report them instead of silently dropping citations.
func Load(ctx context.Context, root string, opts Options) (*Snapshot, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", absRoot)
	}

	extSet := make(map[string]bool, len(opts.Extensions))
	for _, ext := range opts.Extensions {
		extSet[strings.TrimPrefix(ext, ".")] = true
	}
	excluded := make(map[string]bool, len(opts.ExcludeDirs))
	for _, name := range opts.ExcludeDirs {
		excluded[name] = true
	}

	var candidates []candidate
	var dirs []string

	err = filepath.Walk(absRoot, func(p string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil //nolint:nilerr // Skip inaccessible entries, continue walking
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, relErr := filepath.Rel(absRoot, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if fi.IsDir() {
			name := fi.Name()
			if rel != "." && (strings.HasPrefix(name, ".") || excluded[name]) {
				return filepath.SkipDir
			}
			dirs = append(dirs, rel)
			return nil
		}

		if len(extSet) > 0 {
			ext := strings.TrimPrefix(filepath.Ext(rel), ".")
			if !extSet[ext] {
				return nil
			}
		}

		if opts.MaxFileSizeBytes > 0 && fi.Size() > int64(opts.MaxFileSizeBytes) {
			if opts.Logger != nil {
				opts.Logger.Debug("Skipping oversized file", map[string]interface{}{
					"path": rel,
					"size": fi.Size(),
				})
			}
			return nil
		}

		candidates = append(candidates, candidate{rel: rel, abs: p, size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	files, err := hashAll(ctx, candidates, opts)
	if err != nil {
		return nil, err
	}

	return assemble(absRoot, files, dirs), nil
}

// hashAll runs the hashing pool over the candidates.
func hashAll(ctx context.Context, candidates []candidate, opts Options) (map[string]*FileMeta, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(candidates) && len(candidates) > 0 {
		workers = len(candidates)
	}

	files := make(map[string]*FileMeta, len(candidates))
	if len(candidates) == 0 {
		return files, nil
	}

	jobs := make(chan candidate)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				if ctx.Err() != nil {
					continue
				}
				meta := analyze(c, opts.Logger)
				mu.Lock()
				files[meta.Path] = meta
				mu.Unlock()
			}
		}()
	}

feed:
	for _, c := range candidates {
		select {
		case jobs <- c:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return files, nil
}

// analyze hashes one file and counts its lines in a single pass.
func analyze(c candidate, logger *logging.Logger) *FileMeta {
	hash, lines, size, err := hashAndCount(c.abs)
	if err != nil {
		if logger != nil {
			logger.Warn("Unreadable file", map[string]interface{}{
				"path":  c.rel,
				"error": err.Error(),
			})
		}
		return &FileMeta{Path: c.rel, Size: c.size, Unreadable: true}
	}
	return &FileMeta{Path: c.rel, Size: size, Lines: lines, Hash: hash}
}

func hashAndCount(abs string) (string, int, int64, error) {
	f, err := os.Open(abs)
	if err != nil {
		return "", 0, 0, err
	}
	defer func() { _ = f.Close() }()

	h, _ := blake2b.New256(nil)
	buf := make([]byte, 64*1024)
	var size int64
	lines := 0
	var last byte

	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			size += int64(n)
			_, _ = h.Write(buf[:n])
			lines += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", 0, 0, readErr
		}
	}

	// A trailing partial line still counts as a line
	if size > 0 && last != '\n' {
		lines++
	}

	return hex.EncodeToString(h.Sum(nil)), lines, size, nil
}

// assemble builds the sorted indexes. All ordering is fixed here so every
// consumer observes the same sequence regardless of walk or pool timing.
func assemble(absRoot string, files map[string]*FileMeta, dirs []string) *Snapshot {
	s := &Snapshot{
		Root:         absRoot,
		files:        files,
		dirSet:       make(map[string]bool, len(dirs)),
		dirFileSet:   make(map[string]bool),
		byBase:       make(map[string][]string),
		filesByDir:   make(map[string][]string),
		subdirsByDir: make(map[string][]string),
	}

	s.paths = make([]string, 0, len(files))
	for p := range files {
		s.paths = append(s.paths, p)
	}
	sort.Strings(s.paths)

	sort.Strings(dirs)
	s.dirs = dirs
	for _, d := range dirs {
		s.dirSet[d] = true
		if d == "." {
			continue
		}
		parent := path.Dir(d)
		s.subdirsByDir[parent] = append(s.subdirsByDir[parent], d)
	}

	for _, p := range s.paths {
		base := path.Base(p)
		s.byBase[base] = append(s.byBase[base], p)

		dir := path.Dir(p)
		s.filesByDir[dir] = append(s.filesByDir[dir], p)
		s.dirFileSet[dir] = true
	}

	s.dirsWithFiles = make([]string, 0, len(s.dirFileSet))
	for d := range s.dirFileSet {
		s.dirsWithFiles = append(s.dirsWithFiles, d)
	}
	sort.Strings(s.dirsWithFiles)

	return s
}

// AbsPath joins the root with a relative file path.
func (s *Snapshot) AbsPath(rel string) string {
	parts := strings.Split(rel, "/")
	return filepath.Join(append([]string{s.Root}, parts...)...)
}
