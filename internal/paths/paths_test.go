package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanonicalizePath(t *testing.T) {
	// Create a temp directory for testing
	tempDir, err := os.MkdirTemp("", "docsync-paths-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	// Create test file
	testFile := filepath.Join(tempDir, "subdir", "test.c")
	if err := os.MkdirAll(filepath.Dir(testFile), 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}
	if err := os.WriteFile(testFile, []byte("int main(void) { return 0; }\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	// Test canonicalization
	canonical, err := CanonicalizePath(testFile, tempDir)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}

	expected := "subdir/test.c"
	if canonical != expected {
		t.Errorf("Expected %s, got %s", expected, canonical)
	}
}

func TestCanonicalizePath_NonexistentFile(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "docsync-paths-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	// A file that doesn't exist yet still canonicalizes
	missing := filepath.Join(tempDir, "not", "yet", "here.md")
	canonical, err := CanonicalizePath(missing, tempDir)
	if err != nil {
		t.Fatalf("CanonicalizePath failed: %v", err)
	}

	expected := "not/yet/here.md"
	if canonical != expected {
		t.Errorf("Expected %s, got %s", expected, canonical)
	}
}

func TestIsWithinRoot(t *testing.T) {
	// Create a temp directory for testing
	tempDir, err := os.MkdirTemp("", "docsync-paths-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	// Create a file inside the tree
	testFile := filepath.Join(tempDir, "subdir", "test.c")
	if err := os.MkdirAll(filepath.Dir(testFile), 0755); err != nil {
		t.Fatalf("Failed to create subdir: %v", err)
	}
	if err := os.WriteFile(testFile, []byte("int x;\n"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	// File inside the tree should return true
	if !IsWithinRoot(testFile, tempDir) {
		t.Error("Expected file to be within root")
	}

	// File outside the tree should return false
	outsideFile := filepath.Join(os.TempDir(), "outside.c")
	if IsWithinRoot(outsideFile, tempDir) {
		t.Error("Expected file outside root to return false")
	}
}

func TestNormalizePath(t *testing.T) {
	// Test that forward slashes are preserved
	result := NormalizePath("path/to/file")
	expected := "path/to/file"
	if result != expected {
		t.Errorf("NormalizePath(path/to/file): expected %s, got %s", expected, result)
	}

	// Note: filepath.ToSlash only converts the OS-specific separator
	// On Unix, backslashes are valid filename characters and won't be converted
	// On Windows, backslashes would be converted to forward slashes
}

func TestCleanRelative(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{"plain path", "sys/kern/kern_exec.c", "sys/kern/kern_exec.c", true},
		{"leading dot slash", "./sys/kern/kern_exec.c", "sys/kern/kern_exec.c", true},
		{"internal dot segments", "sys/./kern/../kern/vfs_bio.c", "sys/kern/vfs_bio.c", true},
		{"surrounding whitespace", "  lib/libc/stdio/printf.c  ", "lib/libc/stdio/printf.c", true},
		{"escapes root", "../etc/passwd", "", false},
		{"bare dotdot", "..", "", false},
		{"absolute path", "/etc/passwd", "", false},
		{"empty", "", "", false},
		{"dot only", ".", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CleanRelative(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("CleanRelative(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("CleanRelative(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestJoinRoot(t *testing.T) {
	result := JoinRoot("/tree/root", "path/to/file.c")
	expected := filepath.Join("/tree/root", "path", "to", "file.c")
	if result != expected {
		t.Errorf("JoinRoot: expected %s, got %s", expected, result)
	}
}
