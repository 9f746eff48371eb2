package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"docsync/internal/tree"
)

var testExtensions = []string{"c", "h", "S", "go", "sh"}

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	abs := filepath.Join(dir, name)
	if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return abs
}

func sourceSnapshot(t *testing.T, relPaths ...string) *tree.Snapshot {
	t.Helper()
	root := t.TempDir()
	for _, rel := range relPaths {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(abs, []byte("int x;\n"), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	snap, err := tree.Load(context.Background(), root, tree.Options{Extensions: testExtensions})
	if err != nil {
		t.Fatalf("tree.Load: %v", err)
	}
	return snap
}

func TestExtractFile_BasicCitations(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "mbuf.md", `# Mbuf allocation

The allocator lives in sys/kern/uipc_mbuf.c:253 and the cluster
variant spans sys/kern/uipc_mbuf.c:300-340 next to it.
`)

	e := NewExtractor(nil, testExtensions)
	result := e.ExtractFile(doc, "kern/mbuf.md")

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.References) != 2 {
		t.Fatalf("len(References) = %d, want 2", len(result.References))
	}

	first := result.References[0]
	if first.TargetPath != "sys/kern/uipc_mbuf.c" {
		t.Errorf("TargetPath = %q, want %q", first.TargetPath, "sys/kern/uipc_mbuf.c")
	}
	if first.StartLine != 253 || first.EndLine != 253 {
		t.Errorf("range = %d-%d, want 253-253", first.StartLine, first.EndLine)
	}
	if first.Line != 3 {
		t.Errorf("Line = %d, want 3", first.Line)
	}
	if first.DocPath != "kern/mbuf.md" {
		t.Errorf("DocPath = %q, want %q", first.DocPath, "kern/mbuf.md")
	}

	second := result.References[1]
	if second.StartLine != 300 || second.EndLine != 340 {
		t.Errorf("range = %d-%d, want 300-340", second.StartLine, second.EndLine)
	}
}

func TestExtractFile_MultiplePerLine(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "x.md", "See sys/kern/a.c:1 and sys/kern/b.c:2 together.\n")

	e := NewExtractor(nil, testExtensions)
	result := e.ExtractFile(doc, "x.md")

	if len(result.References) != 2 {
		t.Fatalf("len(References) = %d, want 2", len(result.References))
	}
	if result.References[0].Column >= result.References[1].Column {
		t.Error("references on one line should be ordered by column")
	}
	if result.References[0].TargetPath != "sys/kern/a.c" {
		t.Errorf("first target = %q, want sys/kern/a.c", result.References[0].TargetPath)
	}
}

func TestExtractFile_Malformed(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantReason string
	}{
		{"zero line", "Broken sys/kern/a.c:0 citation.\n", "non-positive line number"},
		{"negative line", "Broken sys/kern/a.c:-5 citation.\n", "non-positive line number"},
		{"inverted range", "Broken sys/kern/a.c:40-20 citation.\n", "inverted line range"},
		{"escaping path", "Broken ../../etc/passwd.c:5 citation.\n", "path escapes the source tree"},
		{"huge line number", "Broken sys/kern/a.c:99999999999999999999 citation.\n", "line number out of range"},
	}

	e := NewExtractor(nil, testExtensions)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			doc := writeDoc(t, dir, "bad.md", tt.content)

			result := e.ExtractFile(doc, "bad.md")

			if len(result.References) != 0 {
				t.Errorf("malformed citation produced references: %v", result.References)
			}
			if len(result.Errors) != 1 {
				t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
			}
			if result.Errors[0].Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", result.Errors[0].Reason, tt.wantReason)
			}
			if result.Errors[0].Line != 1 {
				t.Errorf("Line = %d, want 1", result.Errors[0].Line)
			}
		})
	}
}

func TestExtractFile_FencedCitations(t *testing.T) {
	snap := sourceSnapshot(t, "sys/kern/kern_exec.c")

	dir := t.TempDir()
	doc := writeDoc(t, dir, "exec.md", "Intro sys/kern/kern_exec.c:10 here.\n"+
		"```\n"+
		"real fenced sys/kern/kern_exec.c:20\n"+
		"fake fenced examples/hello.c:1\n"+
		"```\n"+
		"~~~\n"+
		"also fake tools/demo.c:3\n"+
		"~~~\n")

	e := NewExtractor(snap, testExtensions)
	result := e.ExtractFile(doc, "exec.md")

	if len(result.References) != 2 {
		t.Fatalf("len(References) = %d, want 2 (prose + tree-confirmed fenced), got %v", len(result.References), result.References)
	}
	if result.References[0].StartLine != 10 {
		t.Errorf("first reference start = %d, want 10", result.References[0].StartLine)
	}
	if result.References[1].StartLine != 20 {
		t.Errorf("fenced tree-confirmed reference start = %d, want 20", result.References[1].StartLine)
	}
}

func TestExtractFile_FenceDelimiterMatching(t *testing.T) {
	dir := t.TempDir()
	// The ~~~ inside a ``` fence does not close it
	doc := writeDoc(t, dir, "f.md", "```\n"+
		"~~~\n"+
		"inside sys/kern/a.c:5\n"+
		"```\n"+
		"outside sys/kern/b.c:6\n")

	e := NewExtractor(nil, testExtensions)
	result := e.ExtractFile(doc, "f.md")

	// Fenced citation dropped (nil tree); the post-fence one survives
	if len(result.References) != 1 {
		t.Fatalf("len(References) = %d, want 1", len(result.References))
	}
	if result.References[0].TargetPath != "sys/kern/b.c" {
		t.Errorf("TargetPath = %q, want sys/kern/b.c", result.References[0].TargetPath)
	}
}

func TestExtractFile_Anchors(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "a.md", "first sys/kern/a.c:1 line\nmiddle line\nlast sys/kern/b.c:2 line")

	e := NewExtractor(nil, testExtensions)
	result := e.ExtractFile(doc, "a.md")

	if len(result.References) != 2 {
		t.Fatalf("len(References) = %d, want 2", len(result.References))
	}

	wantFirst := "first sys/kern/a.c:1 line\nmiddle line"
	if result.References[0].Anchor != wantFirst {
		t.Errorf("first anchor = %q, want %q", result.References[0].Anchor, wantFirst)
	}

	wantLast := "middle line\nlast sys/kern/b.c:2 line"
	if result.References[1].Anchor != wantLast {
		t.Errorf("last anchor = %q, want %q", result.References[1].Anchor, wantLast)
	}
}

func TestExtractFile_NonCitations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no slash", "The file kern_exec.c:10 has no directory.\n"},
		{"unknown extension", "See notes/todo.txt:5 for details.\n"},
		{"no line number", "The file sys/kern/kern_exec.c is central.\n"},
		{"bare paths", "Directories sys/kern and sys/vm mirror each other.\n"},
	}

	e := NewExtractor(nil, testExtensions)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			doc := writeDoc(t, dir, "n.md", tt.content)

			result := e.ExtractFile(doc, "n.md")

			if len(result.References) != 0 {
				t.Errorf("non-citation extracted: %v", result.References)
			}
			if len(result.Errors) != 0 {
				t.Errorf("non-citation errored: %v", result.Errors)
			}
		})
	}
}

func TestExtractFile_DotSlashCleaned(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "d.md", "See ./sys/kern/kern_exec.c:12 for the entry point.\n")

	e := NewExtractor(nil, testExtensions)
	result := e.ExtractFile(doc, "d.md")

	if len(result.References) != 1 {
		t.Fatalf("len(References) = %d, want 1", len(result.References))
	}
	if got := result.References[0].TargetPath; got != "sys/kern/kern_exec.c" {
		t.Errorf("TargetPath = %q, want cleaned sys/kern/kern_exec.c", got)
	}
}

func TestExtractFile_Unreadable(t *testing.T) {
	e := NewExtractor(nil, testExtensions)
	result := e.ExtractFile(filepath.Join(t.TempDir(), "missing.md"), "missing.md")

	if len(result.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
	}
	if result.Errors[0].Line != 0 {
		t.Errorf("file-level error Line = %d, want 0", result.Errors[0].Line)
	}
}

func TestBuildCitationPattern_CustomExtensions(t *testing.T) {
	e := NewExtractor(nil, []string{"rs"})

	dir := t.TempDir()
	doc := writeDoc(t, dir, "r.md", "Rust lives in src/main.rs:10 but C in sys/kern/a.c:5 is ignored.\n")

	result := e.ExtractFile(doc, "r.md")

	if len(result.References) != 1 {
		t.Fatalf("len(References) = %d, want 1", len(result.References))
	}
	if result.References[0].TargetPath != "src/main.rs" {
		t.Errorf("TargetPath = %q, want src/main.rs", result.References[0].TargetPath)
	}
}
