package resolve

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docsync/internal/extract"
	"docsync/internal/tree"
)

func writeSource(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func loadSource(t *testing.T, root string) *tree.Snapshot {
	t.Helper()
	snap, err := tree.Load(context.Background(), root, tree.Options{Extensions: []string{".c", ".h"}})
	if err != nil {
		t.Fatalf("load source tree: %v", err)
	}
	return snap
}

// fillerFile builds a file of numbered lines with selected overrides, so
// tests control exactly which lines can match an anchor.
func fillerFile(total int, overrides map[int]string) string {
	var b strings.Builder
	for i := 1; i <= total; i++ {
		if line, ok := overrides[i]; ok {
			b.WriteString(line)
		} else {
			fmt.Fprintf(&b, "filler line %d", i)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func ref(target string, line int, anchor string) extract.CodeReference {
	return extract.CodeReference{
		DocPath:    "doc/sys/kern/scheduler.md",
		Line:       10,
		Column:     1,
		TargetPath: target,
		StartLine:  line,
		EndLine:    line,
		Anchor:     anchor,
	}
}

func TestResolve_VerifiedExactAtCitedLine(t *testing.T) {
	root := t.TempDir()
	content := fillerFile(40, map[int]string{
		20: "msleep(ident, mtx, priority, wmesg, timo);",
	})
	writeSource(t, root, "sys/kern/kern_synch.c", content)
	r := NewResolver(loadSource(t, root), DefaultOptions())

	anchor := "The sleep entry point is\nmsleep(ident, mtx, priority, wmesg, timo);\nwhich releases the mutex."
	got := r.Resolve(ref("sys/kern/kern_synch.c", 20, anchor))

	if got.Kind != Verified {
		t.Fatalf("kind = %s, want %s (note %q)", got.Kind, Verified, got.Note)
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0", got.Confidence)
	}
	if got.SuggestedLine != 0 {
		t.Errorf("suggestedLine = %d, want 0", got.SuggestedLine)
	}
	if got.ResolvedPath != "sys/kern/kern_synch.c" {
		t.Errorf("resolvedPath = %q", got.ResolvedPath)
	}
}

func TestResolve_DriftedSuggestsNewLine(t *testing.T) {
	root := t.TempDir()
	content := fillerFile(300, map[int]string{
		260: "static int sched_pickcpu(struct thread *td)",
	})
	writeSource(t, root, "sys/kern/sched_ule.c", content)
	r := NewResolver(loadSource(t, root), DefaultOptions())

	anchor := "CPU selection lives in\nstatic int sched_pickcpu(struct thread *td)\nwhich balances the run queues."
	got := r.Resolve(ref("sys/kern/sched_ule.c", 253, anchor))

	if got.Kind != Drifted {
		t.Fatalf("kind = %s, want %s (note %q)", got.Kind, Drifted, got.Note)
	}
	if got.SuggestedLine != 260 {
		t.Errorf("suggestedLine = %d, want 260", got.SuggestedLine)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.Confidence)
	}
}

func TestResolve_NoAnchorExistenceOnly(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "sys/kern/init_main.c", fillerFile(20, nil))
	r := NewResolver(loadSource(t, root), DefaultOptions())

	tests := []struct {
		name string
		line int
		want Kind
	}{
		{"in bounds", 10, Verified},
		{"last line", 20, Verified},
		{"beyond EOF", 21, Missing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Resolve(ref("sys/kern/init_main.c", tt.line, ""))
			if got.Kind != tt.want {
				t.Fatalf("kind = %s, want %s (note %q)", got.Kind, tt.want, got.Note)
			}
			if tt.want == Verified && got.Confidence != 1.0 {
				t.Errorf("confidence = %v, want 1.0", got.Confidence)
			}
		})
	}
}

func TestResolve_MissingTarget(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "sys/kern/kern_exec.c", fillerFile(10, nil))
	writeSource(t, root, "sys/contrib/dup/kern_exec.c", fillerFile(10, nil))
	r := NewResolver(loadSource(t, root), DefaultOptions())

	t.Run("absent file", func(t *testing.T) {
		got := r.Resolve(ref("sys/kern/gone.c", 5, ""))
		if got.Kind != Missing {
			t.Fatalf("kind = %s, want %s", got.Kind, Missing)
		}
	})

	t.Run("ambiguous suffix", func(t *testing.T) {
		got := r.Resolve(ref("kern_exec.c", 5, ""))
		if got.Kind != Missing {
			t.Fatalf("kind = %s, want %s", got.Kind, Missing)
		}
		if got.Note != "cited path matches multiple source files" {
			t.Errorf("note = %q, want ambiguity explanation", got.Note)
		}
	})

	t.Run("unique suffix resolves", func(t *testing.T) {
		got := r.Resolve(ref("dup/kern_exec.c", 5, ""))
		if got.Kind != Verified {
			t.Fatalf("kind = %s, want %s (note %q)", got.Kind, Verified, got.Note)
		}
		if got.ResolvedPath != "sys/contrib/dup/kern_exec.c" {
			t.Errorf("resolvedPath = %q, want canonical tree path", got.ResolvedPath)
		}
	})
}

func TestResolve_SourceUnreadable(t *testing.T) {
	root := t.TempDir()
	writeSource(t, root, "sys/kern/kern_fork.c", fillerFile(10, nil))
	snap := loadSource(t, root)

	// Snapshot taken, then the file vanishes before resolution.
	if err := os.Remove(filepath.Join(root, "sys", "kern", "kern_fork.c")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	r := NewResolver(snap, DefaultOptions())
	got := r.Resolve(ref("sys/kern/kern_fork.c", 5, "fork1(td, flags, pages, procp);"))
	if got.Kind != SourceUnreadable {
		t.Fatalf("kind = %s, want %s", got.Kind, SourceUnreadable)
	}
}

func TestResolve_WindowWidening(t *testing.T) {
	root := t.TempDir()
	content := fillerFile(400, map[int]string{
		150: "vm_map_lock(map);",
		305: "uma_zalloc_arg(zone, udata, flags);",
	})
	writeSource(t, root, "sys/vm/vm_map.c", content)
	r := NewResolver(loadSource(t, root), DefaultOptions())

	t.Run("found in widest window", func(t *testing.T) {
		got := r.Resolve(ref("sys/vm/vm_map.c", 100, "the entry path calls\nvm_map_lock(map);\nbefore lookup"))
		if got.Kind != Drifted {
			t.Fatalf("kind = %s, want %s (note %q)", got.Kind, Drifted, got.Note)
		}
		if got.SuggestedLine != 150 {
			t.Errorf("suggestedLine = %d, want 150", got.SuggestedLine)
		}
	})

	t.Run("beyond widest window", func(t *testing.T) {
		got := r.Resolve(ref("sys/vm/vm_map.c", 100, "allocation goes through\numa_zalloc_arg(zone, udata, flags);\nright after"))
		if got.Kind != Missing {
			t.Fatalf("kind = %s, want %s", got.Kind, Missing)
		}
		if got.Note != "anchor not found near cited line" {
			t.Errorf("note = %q, want exhausted-search explanation", got.Note)
		}
	})
}

func TestResolve_AmbiguousCandidatesLowConfidence(t *testing.T) {
	root := t.TempDir()
	content := fillerFile(30, map[int]string{
		10: "\tmtx_lock(&sched_lock);",
		14: "\tmtx_lock(&sched_lock);",
	})
	writeSource(t, root, "sys/kern/sched_4bsd.c", content)
	r := NewResolver(loadSource(t, root), DefaultOptions())

	anchor := "grabs the scheduler lock via\n\tmtx_lock(&sched_lock);\nbefore touching the run queue"
	got := r.Resolve(ref("sys/kern/sched_4bsd.c", 12, anchor))

	if got.Kind != Drifted {
		t.Fatalf("kind = %s, want %s (note %q)", got.Kind, Drifted, got.Note)
	}
	if got.SuggestedLine != 10 {
		t.Errorf("suggestedLine = %d, want 10 (smaller line wins at equal distance)", got.SuggestedLine)
	}
	if got.Confidence != 0.5 {
		t.Errorf("confidence = %v, want 0.5", got.Confidence)
	}
	if got.Note == "" {
		t.Error("expected a low-confidence note")
	}
}

func TestResolve_FuzzyMatchAfterEdit(t *testing.T) {
	root := t.TempDir()
	content := fillerFile(20, map[int]string{
		8: "\treturn (error);",
	})
	writeSource(t, root, "sys/kern/kern_descrip.c", content)
	r := NewResolver(loadSource(t, root), DefaultOptions())

	// The doc quoted the line before a variable rename.
	anchor := "the fallthrough path is\n\treturn (err);\nwhich propagates the failure"
	got := r.Resolve(ref("sys/kern/kern_descrip.c", 8, anchor))

	if got.Kind != Verified {
		t.Fatalf("kind = %s, want %s (note %q)", got.Kind, Verified, got.Note)
	}
	if got.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", got.Confidence)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	root := t.TempDir()
	content := fillerFile(300, map[int]string{
		260: "static int sched_pickcpu(struct thread *td)",
	})
	writeSource(t, root, "sys/kern/sched_ule.c", content)
	snap := loadSource(t, root)

	anchor := "the selector is\nstatic int sched_pickcpu(struct thread *td)\nas of this writing"
	reference := ref("sys/kern/sched_ule.c", 253, anchor)

	first := NewResolver(snap, DefaultOptions()).Resolve(reference)
	for i := 0; i < 5; i++ {
		got := NewResolver(snap, DefaultOptions()).Resolve(reference)
		if got != first {
			t.Fatalf("run %d: outcome %+v differs from first %+v", i, got, first)
		}
	}
}

func TestNewResolver_Defaults(t *testing.T) {
	r := NewResolver(nil, Options{})
	if len(r.windows) != 3 || r.windows[0] != 5 || r.windows[1] != 20 || r.windows[2] != 100 {
		t.Errorf("windows = %v, want [5 20 100]", r.windows)
	}
	if r.threshold != 0.75 {
		t.Errorf("threshold = %v, want 0.75", r.threshold)
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "vm_page_alloc(object, pindex, req)", "vm_page_alloc(object, pindex, req)", 1.0},
		{"empty a", "", "something", 0.0},
		{"empty b", "something", "", 0.0},
		{"single substitution", "abcdef", "abcxef", 1.0 - 1.0/6.0},
		{"single insertion", "vmap", "map", 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := similarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestSplitContent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"trailing newline", "a\nb\n", 2},
		{"no trailing newline", "a\nb", 2},
		{"single line", "x\n", 1},
		{"empty", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(splitContent(tt.in)); got != tt.want {
				t.Errorf("splitContent(%q) yields %d lines, want %d", tt.in, got, tt.want)
			}
		})
	}
}
