package nav

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bstoml "github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Format selects the artifact encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// Encode renders the navigation tree in the requested format. The same
// tree always encodes to the same bytes.
func Encode(t *Tree, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return encodeYAML(t)
	case FormatTOML:
		return encodeTOML(t)
	case FormatJSON:
		return encodeJSON(t)
	default:
		return nil, fmt.Errorf("unknown artifact format %q", format)
	}
}

// encodeYAML emits an mkdocs-style nav list: each entry is a single-key
// mapping of title to page path or child list.
func encodeYAML(t *Tree) ([]byte, error) {
	doc := &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			scalarNode("nav"),
			sequenceNode(t.Root.Children),
		},
	}
	return yaml.Marshal(doc)
}

func sequenceNode(nodes []*Node) *yaml.Node {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, n := range nodes {
		var value *yaml.Node
		if n.Path != "" {
			value = scalarNode(n.Path)
		} else {
			value = sequenceNode(n.Children)
		}
		seq.Content = append(seq.Content, &yaml.Node{
			Kind:    yaml.MappingNode,
			Content: []*yaml.Node{scalarNode(n.Title), value},
		})
	}
	return seq
}

func scalarNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

type tomlEntry struct {
	Title    string      `toml:"title"`
	Path     string      `toml:"path,omitempty"`
	Children []tomlEntry `toml:"children,omitempty"`
}

type tomlDoc struct {
	Entries []tomlEntry `toml:"entry"`
}

// encodeTOML emits a Hugo-style data file of [[entry]] tables.
func encodeTOML(t *Tree) ([]byte, error) {
	var buf bytes.Buffer
	if err := bstoml.NewEncoder(&buf).Encode(tomlDoc{Entries: tomlEntries(t.Root.Children)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tomlEntries(nodes []*Node) []tomlEntry {
	out := make([]tomlEntry, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, tomlEntry{
			Title:    n.Title,
			Path:     n.Path,
			Children: tomlEntries(n.Children),
		})
	}
	return out
}

func encodeJSON(t *Tree) ([]byte, error) {
	nav := t.Root.Children
	if nav == nil {
		nav = []*Node{}
	}
	data, err := json.MarshalIndent(struct {
		Nav []*Node `json:"nav"`
	}{Nav: nav}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// WriteArtifact writes the artifact atomically: the bytes land in a
// temp file in the destination directory and are renamed into place, so
// readers never observe a partial artifact.
func WriteArtifact(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".nav-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
