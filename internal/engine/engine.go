// Package engine runs the docsync pipeline: snapshot both trees,
// extract citations from every doc page, resolve them against the
// source, and apply the mirror rule. Stage outputs are sorted so two
// runs over identical trees produce identical results.
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docsync/internal/config"
	"docsync/internal/docmap"
	"docsync/internal/extract"
	"docsync/internal/ledger"
	"docsync/internal/logging"
	"docsync/internal/mirror"
	"docsync/internal/nav"
	"docsync/internal/resolve"
	"docsync/internal/scancache"
	"docsync/internal/tree"
)

// Params holds the per-invocation inputs the CLI resolves before a run.
type Params struct {
	SourceRoot string
	DocRoot    string
	Whitelist  *mirror.Whitelist
	Docmap     *docmap.Docmap
	// Cache is optional; nil scans every page fresh.
	Cache *scancache.Cache
}

// Engine wires the pipeline stages together.
type Engine struct {
	cfg    *config.Config
	logger *logging.Logger
	params Params
}

// New creates an engine for one invocation.
func New(cfg *config.Config, logger *logging.Logger, params Params) *Engine {
	return &Engine{cfg: cfg, logger: logger, params: params}
}

// Result collects everything one pipeline run produced.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Source *tree.Snapshot
	Docs   *tree.Snapshot

	// Extraction holds one entry per doc page, ordered by doc path.
	Extraction []extract.Result
	// Resolved holds every reference with its outcome, ordered by
	// (doc path, line, column).
	Resolved []resolve.ResolvedReference

	MirrorFindings   []mirror.Finding
	MirrorSuppressed []mirror.Finding

	CacheHits   int
	CacheMisses int
}

// Run executes the full pipeline.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: start.UTC(),
	}

	source, docs, err := e.loadTrees(ctx)
	if err != nil {
		return nil, err
	}
	res.Source = source
	res.Docs = docs

	if err := e.extractAll(ctx, res); err != nil {
		return nil, err
	}
	if err := e.resolveAll(ctx, res); err != nil {
		return nil, err
	}

	res.MirrorFindings, res.MirrorSuppressed = mirror.Validate(source, docs, e.params.Whitelist)

	res.Duration = time.Since(start)
	tally := res.Tally()
	e.logger.Info("run complete", map[string]interface{}{
		"run_id":       res.RunID,
		"source_files": tally.SourceFiles,
		"doc_pages":    tally.DocPages,
		"references":   tally.References,
		"duration_ms":  res.Duration.Milliseconds(),
	})
	return res, nil
}

// LoadDocs snapshots only the documentation tree.
func (e *Engine) LoadDocs(ctx context.Context) (*tree.Snapshot, error) {
	return tree.Load(ctx, e.params.DocRoot, e.docOptions())
}

// BuildNav synthesizes navigation without running the full pipeline.
func (e *Engine) BuildNav(ctx context.Context) (*nav.Tree, error) {
	docs, err := e.LoadDocs(ctx)
	if err != nil {
		return nil, fmt.Errorf("doc tree: %w", err)
	}
	return nav.Build(docs, e.params.Docmap), nil
}

func (e *Engine) sourceOptions() tree.Options {
	return tree.Options{
		Extensions:       e.cfg.Scan.Extensions,
		ExcludeDirs:      e.cfg.Scan.ExcludeDirs,
		MaxFileSizeBytes: e.cfg.Scan.MaxFileSizeBytes,
		Workers:          e.cfg.Scan.Workers,
		Logger:           e.logger,
	}
}

func (e *Engine) docOptions() tree.Options {
	opts := e.sourceOptions()
	opts.Extensions = []string{"md"}
	return opts
}

func (e *Engine) loadTrees(ctx context.Context) (*tree.Snapshot, *tree.Snapshot, error) {
	var (
		wg     sync.WaitGroup
		source *tree.Snapshot
		docs   *tree.Snapshot
		srcErr error
		docErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		source, srcErr = tree.Load(ctx, e.params.SourceRoot, e.sourceOptions())
	}()
	go func() {
		defer wg.Done()
		docs, docErr = tree.Load(ctx, e.params.DocRoot, e.docOptions())
	}()
	wg.Wait()

	if srcErr != nil {
		return nil, nil, fmt.Errorf("source tree: %w", srcErr)
	}
	if docErr != nil {
		return nil, nil, fmt.Errorf("doc tree: %w", docErr)
	}

	e.logger.Debug("trees loaded", map[string]interface{}{
		"source_files": source.Len(),
		"doc_pages":    docs.Len(),
	})
	return source, docs, nil
}

// extractAll scans every doc page, serving unchanged pages from the
// cache. Cache failures downgrade to a fresh scan, never to a failed
// run.
func (e *Engine) extractAll(ctx context.Context, res *Result) error {
	paths := res.Docs.Paths()
	results := make([]extract.Result, len(paths))
	hits := make([]bool, len(paths))
	ex := extract.NewExtractor(res.Source, e.cfg.Scan.Extensions)

	err := runPool(ctx, len(paths), e.workers(), func(i int) {
		rel := paths[i]
		meta, _ := res.Docs.Lookup(rel)
		if e.params.Cache != nil && meta.Hash != "" {
			cached, ok, err := e.params.Cache.Get(rel, meta.Hash)
			if err != nil {
				e.logger.Warn("scan cache read failed", map[string]interface{}{
					"doc":   rel,
					"error": err.Error(),
				})
			} else if ok {
				results[i] = *cached
				hits[i] = true
				return
			}
		}
		results[i] = ex.ExtractFile(res.Docs.AbsPath(rel), rel)
	})
	if err != nil {
		return err
	}

	var fresh []scancache.Entry
	for i := range results {
		if hits[i] {
			res.CacheHits++
			continue
		}
		res.CacheMisses++
		if e.params.Cache == nil {
			continue
		}
		if meta, _ := res.Docs.Lookup(paths[i]); meta.Hash != "" {
			fresh = append(fresh, scancache.Entry{ContentHash: meta.Hash, Result: &results[i]})
		}
	}

	if e.params.Cache != nil {
		if err := e.params.Cache.StoreAll(fresh); err != nil {
			e.logger.Warn("scan cache write failed", map[string]interface{}{"error": err.Error()})
		}
		keep := make(map[string]bool, len(paths))
		for _, p := range paths {
			keep[p] = true
		}
		if removed, err := e.params.Cache.Prune(keep); err != nil {
			e.logger.Warn("scan cache prune failed", map[string]interface{}{"error": err.Error()})
		} else if removed > 0 {
			e.logger.Debug("pruned stale cache entries", map[string]interface{}{"removed": removed})
		}
	}

	res.Extraction = results
	return nil
}

func (e *Engine) resolveAll(ctx context.Context, res *Result) error {
	var refs []extract.CodeReference
	for _, er := range res.Extraction {
		refs = append(refs, er.References...)
	}

	outcomes := make([]resolve.Outcome, len(refs))
	r := resolve.NewResolver(res.Source, resolve.Options{
		WindowSizes:    e.cfg.Resolution.WindowSizes,
		FuzzyThreshold: e.cfg.Resolution.FuzzyThreshold,
	})

	err := runPool(ctx, len(refs), e.workers(), func(i int) {
		outcomes[i] = r.Resolve(refs[i])
	})
	if err != nil {
		return err
	}

	resolved := make([]resolve.ResolvedReference, len(refs))
	for i := range refs {
		resolved[i] = resolve.ResolvedReference{Ref: refs[i], Outcome: outcomes[i]}
	}
	sort.SliceStable(resolved, func(i, j int) bool {
		a, b := resolved[i].Ref, resolved[j].Ref
		if a.DocPath != b.DocPath {
			return a.DocPath < b.DocPath
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
	res.Resolved = resolved
	return nil
}

func (e *Engine) workers() int {
	if e.cfg.Scan.Workers > 0 {
		return e.cfg.Scan.Workers
	}
	return runtime.NumCPU()
}

// runPool fans job indexes 0..n-1 out to a fixed-size worker pool.
// Feeding stops when ctx is canceled; started jobs run to completion.
func runPool(ctx context.Context, n, workers int, fn func(int)) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers > n {
		workers = n
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}

feed:
	for i := 0; i < n; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	return ctx.Err()
}

// Stats aggregates resolution outcomes per cited source file for
// ledger derivation. References that never identified a file do not
// contribute.
func (r *Result) Stats() map[string]*ledger.FileStats {
	stats := make(map[string]*ledger.FileStats)
	for _, rr := range r.Resolved {
		srcPath := rr.Outcome.ResolvedPath
		if srcPath == "" {
			continue
		}
		s := stats[srcPath]
		if s == nil {
			s = &ledger.FileStats{CitingDocs: make(map[string]int)}
			stats[srcPath] = s
		}
		switch rr.Outcome.Kind {
		case resolve.Verified:
			s.Verified++
		case resolve.Drifted:
			s.Drifted++
		case resolve.Missing:
			s.Missing++
		case resolve.SourceUnreadable:
			s.Unreadable++
		}
		s.CitingDocs[rr.Ref.DocPath]++
	}
	return stats
}

// Tally summarizes a run for reporting.
type Tally struct {
	SourceFiles      int
	DocPages         int
	References       int
	Verified         int
	Drifted          int
	Missing          int
	SourceUnreadable int
	ExtractionErrors int
	MirrorFindings   int
	MirrorSuppressed int
}

// Tally counts the run's outcomes.
func (r *Result) Tally() Tally {
	t := Tally{
		SourceFiles:      r.Source.Len(),
		DocPages:         r.Docs.Len(),
		References:       len(r.Resolved),
		MirrorFindings:   len(r.MirrorFindings),
		MirrorSuppressed: len(r.MirrorSuppressed),
	}
	for _, er := range r.Extraction {
		t.ExtractionErrors += len(er.Errors)
	}
	for _, rr := range r.Resolved {
		switch rr.Outcome.Kind {
		case resolve.Verified:
			t.Verified++
		case resolve.Drifted:
			t.Drifted++
		case resolve.Missing:
			t.Missing++
		case resolve.SourceUnreadable:
			t.SourceUnreadable++
		}
	}
	return t
}
