// Package nav synthesizes a navigation tree from the documentation tree
// and encodes it as a YAML, TOML, or JSON artifact. Output depends only
// on tree content and DOCMAP.toml declarations, so an unchanged tree
// reproduces the artifact byte for byte.
package nav

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"docsync/internal/docmap"
	"docsync/internal/tree"
)

// titleScanLimit caps how far into a page the title search reads.
const titleScanLimit = 100

// Node is one navigation entry: a page (Path set) or a directory
// section (Children set).
type Node struct {
	Title    string  `json:"title"`
	Path     string  `json:"path,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Tree is the synthesized navigation with any non-fatal warnings
// collected while building it.
type Tree struct {
	Root     *Node
	Warnings []string
}

// Build synthesizes navigation for the doc tree. Ordering per
// directory: index.md, then DOCMAP pins in declaration order, then
// remaining pages by title, then subdirectories by name. Directories
// with no pages anywhere beneath are omitted.
func Build(docs *tree.Snapshot, dm *docmap.Docmap) *Tree {
	b := &builder{docs: docs, dm: dm, headings: make(map[string]string)}
	return &Tree{Root: b.buildDir("."), Warnings: b.warnings}
}

type builder struct {
	docs     *tree.Snapshot
	dm       *docmap.Docmap
	headings map[string]string
	warnings []string
}

func (b *builder) buildDir(dir string) *Node {
	files := b.docs.FilesInDir(dir)

	var indexRel string
	for _, f := range files {
		if path.Base(f) == "index.md" {
			indexRel = f
			break
		}
	}

	node := &Node{Title: b.dirTitle(dir, indexRel)}
	placed := make(map[string]bool)

	if indexRel != "" {
		node.Children = append(node.Children, &Node{Title: b.pageTitle(indexRel), Path: indexRel})
		placed[indexRel] = true
	}

	if b.dm != nil {
		for _, pin := range b.dm.PinsFor(dir) {
			rel := path.Join(dir, pin)
			if placed[rel] {
				continue
			}
			if _, ok := b.docs.Lookup(rel); !ok {
				b.warnings = append(b.warnings, fmt.Sprintf("docmap pins %q but %s has no such page", pin, dir))
				continue
			}
			node.Children = append(node.Children, &Node{Title: b.pageTitle(rel), Path: rel})
			placed[rel] = true
		}
	}

	type page struct {
		title string
		rel   string
	}
	var rest []page
	for _, f := range files {
		if placed[f] {
			continue
		}
		rest = append(rest, page{title: b.pageTitle(f), rel: f})
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].title != rest[j].title {
			return rest[i].title < rest[j].title
		}
		return rest[i].rel < rest[j].rel
	})
	for _, p := range rest {
		node.Children = append(node.Children, &Node{Title: p.title, Path: p.rel})
	}

	for _, sub := range b.docs.Subdirs(dir) {
		child := b.buildDir(sub)
		if len(child.Children) == 0 {
			continue
		}
		node.Children = append(node.Children, child)
	}

	return node
}

// dirTitle is the index page's heading when it has one, else the
// directory name (the doc root's basename for ".").
func (b *builder) dirTitle(dir, indexRel string) string {
	if indexRel != "" {
		if h := b.headingOf(indexRel); h != "" {
			return h
		}
	}
	if dir == "." {
		return filepath.Base(b.docs.Root)
	}
	return path.Base(dir)
}

func (b *builder) pageTitle(rel string) string {
	if h := b.headingOf(rel); h != "" {
		return h
	}
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}

func (b *builder) headingOf(rel string) string {
	if h, ok := b.headings[rel]; ok {
		return h
	}
	h := b.readHeading(rel)
	b.headings[rel] = h
	return h
}

// readHeading returns the first `# ` heading within the scan limit, or
// "" when the page has none or cannot be read.
func (b *builder) readHeading(rel string) string {
	f, err := os.Open(b.docs.AbsPath(rel))
	if err != nil {
		b.warnings = append(b.warnings, fmt.Sprintf("cannot read %s for its title: %v", rel, err))
		return ""
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	for i := 0; i < titleScanLimit && scanner.Scan(); i++ {
		line := scanner.Text()
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
