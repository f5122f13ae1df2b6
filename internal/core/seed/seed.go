// Package seed holds the default category catalog loaded into empty stores.
package seed

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// CategorySeed is one category with the names of its sub-categories.
type CategorySeed struct {
	Name          string   `yaml:"name"`
	SubCategories []string `yaml:"subCategories"`
}

type catalog struct {
	Categories []CategorySeed `yaml:"categories"`
}

// Catalog returns the embedded default catalog.
func Catalog() ([]CategorySeed, error) {
	return Parse(catalogYAML)
}

// Parse decodes a catalog document. Categories must be named and unique.
func Parse(data []byte) ([]CategorySeed, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Categories))
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("category %d: name is required", i)
		}
		if _, dup := seen[cat.Name]; dup {
			return nil, fmt.Errorf("category %q: duplicate name", cat.Name)
		}
		seen[cat.Name] = struct{}{}
	}
	return c.Categories, nil
}
