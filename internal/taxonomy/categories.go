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

// ErrUnknownCategory is returned when no search category carries the requested name.
var ErrUnknownCategory = errors.New("unknown search category")

// Categories resolves a localized search category name to its member types.
type Categories interface {
	CategoryTypes(name, lang string) ([]Type, error)
}

// Category is one search category: a set of types plus localized synonyms.
type Category struct {
	Types    []Type
	Synonyms map[string][]string // lang -> names
}

// CategoryIndex is an immutable list of search categories.
type CategoryIndex struct {
	categories []Category
}

type categoryDoc struct {
	Names map[string][]string `yaml:"names"`
	Types []string            `yaml:"types"`
}

// LoadCategories reads a YAML list of categories and resolves every type path
// against reg. An unresolvable path is a configuration error.
//
//	- names:
//	    en: [sights, attractions]
//	  types: [tourism-attraction, historic-castle]
func LoadCategories(r io.Reader, reg Registry) (*CategoryIndex, error) {
	var docs []categoryDoc
	if err := yaml.NewDecoder(r).Decode(&docs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}

	idx := &CategoryIndex{categories: make([]Category, 0, len(docs))}
	for i, doc := range docs {
		cat := Category{
			Types:    make([]Type, 0, len(doc.Types)),
			Synonyms: make(map[string][]string, len(doc.Names)),
		}
		for _, p := range doc.Types {
			typ, err := reg.TypeByPath(p)
			if err != nil {
				return nil, fmt.Errorf("category %d: %w", i, err)
			}
			cat.Types = append(cat.Types, typ)
		}
		for lang, names := range doc.Names {
			for _, n := range names {
				cat.Synonyms[lang] = append(cat.Synonyms[lang], strings.ToLower(strings.TrimSpace(n)))
			}
		}
		idx.categories = append(idx.categories, cat)
	}
	return idx, nil
}

// LoadCategoriesFile reads categories from disk.
func LoadCategoriesFile(path string, reg Registry) (*CategoryIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}
	return LoadCategories(bytes.NewReader(data), reg)
}

// CategoryTypes returns the union of types of every category that has name
// as a synonym in lang. Matching is case-insensitive.
func (c *CategoryIndex) CategoryTypes(name, lang string) ([]Type, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	var types []Type
	found := false
	for _, cat := range c.categories {
		for _, syn := range cat.Synonyms[lang] {
			if syn == want {
				types = append(types, cat.Types...)
				found = true
				break
			}
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s (%s)", ErrUnknownCategory, name, lang)
	}
	return types, nil
}

// Len returns the number of categories.
func (c *CategoryIndex) Len() int {
	return len(c.categories)
}

//go:embed data/categories.yaml
var defaultCategoriesYAML []byte

var (
	defaultCategoriesOnce sync.Once
	defaultCategories     *CategoryIndex
	defaultCategoriesErr  error
)

// DefaultCategories returns the built-in categories resolved against Default().
func DefaultCategories() (*CategoryIndex, error) {
	defaultCategoriesOnce.Do(func() {
		tax, err := Default()
		if err != nil {
			defaultCategoriesErr = err
			return
		}
		defaultCategories, defaultCategoriesErr = LoadCategories(bytes.NewReader(defaultCategoriesYAML), tax)
	})
	return defaultCategories, defaultCategoriesErr
}
