package paths

import (
	"os"
	"path"
	"path/filepath"
	"strings"
)

// CanonicalizePath converts an absolute path to a root-relative canonical path
// - Resolves symlinks to real paths
// - Makes path relative to the tree root
// - Converts backslashes to forward slashes
// - Returns root-relative path with forward slashes
func CanonicalizePath(absolutePath string, root string) (string, error) {
	// Resolve symlinks
	resolved, err := filepath.EvalSymlinks(absolutePath)
	if err != nil {
		// If the file doesn't exist yet, use the path as-is
		if os.IsNotExist(err) {
			resolved = absolutePath
		} else {
			return "", err
		}
	}

	// Make path relative to the tree root
	rootResolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		if os.IsNotExist(err) {
			rootResolved = root
		} else {
			return "", err
		}
	}

	relativePath, err := filepath.Rel(rootResolved, resolved)
	if err != nil {
		return "", err
	}

	// Convert to forward slashes (platform independent)
	canonicalPath := filepath.ToSlash(relativePath)

	return canonicalPath, nil
}

// IsWithinRoot checks if a path is within the tree root
func IsWithinRoot(p string, root string) bool {
	canonical, err := CanonicalizePath(p, root)
	if err != nil {
		return false
	}

	// Path is outside the tree if it starts with ..
	return !strings.HasPrefix(canonical, "..")
}

// NormalizePath normalizes a path by converting backslashes to forward slashes
// This is useful for paths that are already relative but need normalization
func NormalizePath(p string) string {
	return filepath.ToSlash(p)
}

// CleanRelative cleans a cited path for tree lookup. It strips a leading
// "./", collapses "." and ".." segments, and forces forward slashes.
// The second return is false when the path escapes the tree root or is
// empty after cleaning.
func CleanRelative(p string) (string, bool) {
	cleaned := path.Clean(filepath.ToSlash(strings.TrimSpace(p)))
	if cleaned == "." || cleaned == "" {
		return "", false
	}
	if strings.HasPrefix(cleaned, "../") || cleaned == ".." || strings.HasPrefix(cleaned, "/") {
		return "", false
	}
	return cleaned, true
}

// JoinRoot joins a tree root with a canonical relative path
func JoinRoot(root string, canonicalPath string) string {
	// Ensure we use forward slashes in the canonical path
	normalizedPath := strings.ReplaceAll(canonicalPath, "\\", "/")
	// Convert to OS-specific path separator for joining
	parts := strings.Split(normalizedPath, "/")
	return filepath.Join(append([]string{root}, parts...)...)
}
