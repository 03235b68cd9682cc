package taxonomy

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Taxonomy errors.
var (
	ErrUnknownPath     = errors.New("unknown category path")
	ErrEmptyPath       = errors.New("empty category path")
	ErrTooDeep         = errors.New("category path too deep")
	ErrTooManyChildren = errors.New("too many child categories")
	ErrInvalidDocument = errors.New("invalid taxonomy document")
)

// Registry resolves category paths to type codes.
type Registry interface {
	TypeByPath(path ...string) (Type, error)
}

// Taxonomy is an immutable-after-build category tree.
type Taxonomy struct {
	byPath   map[string]Type
	names    map[Type]string
	children map[Type]uint32 // number of children assigned so far, keyed by parent
}

// New builds a taxonomy from dash-separated paths such as "railway-station-subway".
// Intermediate categories are created implicitly, in order of first appearance.
func New(paths ...string) (*Taxonomy, error) {
	t := newTaxonomy()
	for _, p := range paths {
		if _, err := t.add(SplitPath(p)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func newTaxonomy() *Taxonomy {
	return &Taxonomy{
		byPath:   make(map[string]Type),
		names:    make(map[Type]string),
		children: make(map[Type]uint32),
	}
}

// add inserts a path and all its ancestors, returning the leaf type.
func (t *Taxonomy) add(path []string) (Type, error) {
	if len(path) == 0 || (len(path) == 1 && path[0] == "") {
		return 0, ErrEmptyPath
	}
	if len(path) > MaxDepth {
		return 0, fmt.Errorf("%w: %s", ErrTooDeep, strings.Join(path, PathSeparator))
	}

	var parent Type
	for i := range path {
		if path[i] == "" {
			return 0, fmt.Errorf("%w: %q", ErrEmptyPath, strings.Join(path, PathSeparator))
		}
		key := strings.Join(path[:i+1], PathSeparator)
		if existing, ok := t.byPath[key]; ok {
			parent = existing
			continue
		}
		next := t.children[parent] + 1
		if next > MaxChildren {
			return 0, fmt.Errorf("%w: under %q", ErrTooManyChildren, strings.Join(path[:i], PathSeparator))
		}
		t.children[parent] = next
		child := parent.withIndex(next)
		t.byPath[key] = child
		t.names[child] = key
		parent = child
	}
	return parent, nil
}

// TypeByPath resolves path components, e.g. TypeByPath("amenity", "bank").
// A single dash-separated component is also accepted.
func (t *Taxonomy) TypeByPath(path ...string) (Type, error) {
	if len(path) == 1 {
		path = SplitPath(path[0])
	}
	key := strings.Join(path, PathSeparator)
	if key == "" {
		return 0, ErrEmptyPath
	}
	typ, ok := t.byPath[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownPath, key)
	}
	return typ, nil
}

// Name returns the dash-separated path of a type, or "" if it is unknown.
func (t *Taxonomy) Name(typ Type) string {
	return t.names[typ]
}

// Len returns the number of categories in the tree.
func (t *Taxonomy) Len() int {
	return len(t.byPath)
}

// Holder resolves raw tag paths into a Types holder.
func (t *Taxonomy) Holder(paths ...string) (Types, error) {
	types := make(Types, 0, len(paths))
	for _, p := range paths {
		typ, err := t.TypeByPath(p)
		if err != nil {
			return nil, err
		}
		types = append(types, typ)
	}
	return types, nil
}

// Load reads a YAML category tree. Each mapping key is a category; its value
// is either empty or a nested mapping of subcategories:
//
//	amenity:
//	  restaurant:
//	  cafe:
//	railway:
//	  station:
//	    subway:
func Load(r io.Reader) (*Taxonomy, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return newTaxonomy(), nil
		}
		return nil, fmt.Errorf("failed to decode taxonomy: %w", err)
	}

	t := newTaxonomy()
	if len(doc.Content) == 0 {
		return t, nil
	}
	if err := t.walk(doc.Content[0], nil); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadFile reads a YAML category tree from disk.
func LoadFile(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy file: %w", err)
	}
	return Load(bytes.NewReader(data))
}

func (t *Taxonomy) walk(node *yaml.Node, prefix []string) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			return nil
		}
		return fmt.Errorf("%w: unexpected scalar %q at line %d", ErrInvalidDocument, node.Value, node.Line)
	case yaml.MappingNode:
	default:
		return fmt.Errorf("%w: expected mapping at line %d", ErrInvalidDocument, node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		path := append(append([]string(nil), prefix...), key)
		if _, err := t.add(path); err != nil {
			return err
		}
		if err := t.walk(node.Content[i+1], path); err != nil {
			return err
		}
	}
	return nil
}

//go:embed data/taxonomy.yaml
var defaultTaxonomyYAML []byte

var (
	defaultOnce     sync.Once
	defaultTaxonomy *Taxonomy
	defaultErr      error
)

// Default returns the built-in taxonomy. It is parsed once per process.
func Default() (*Taxonomy, error) {
	defaultOnce.Do(func() {
		defaultTaxonomy, defaultErr = Load(bytes.NewReader(defaultTaxonomyYAML))
	})
	return defaultTaxonomy, defaultErr
}
