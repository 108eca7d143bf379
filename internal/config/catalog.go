package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// CatalogSource describes one remote ontology catalog in a sources.toml file.
type CatalogSource struct {
	ID             string   `toml:"id"`
	Label          string   `toml:"label"`
	BaseURL        string   `toml:"base_url"`
	PageSize       int      `toml:"page_size"`
	XrefNamespaces []string `toml:"xref_namespaces"`
}

// Catalog is a declarative list of syncable sources, decoded from TOML:
//
//	[[source]]
//	id = "efo"
//	label = "Experimental Factor Ontology"
//	base_url = "https://www.ebi.ac.uk/ols4/api"
//	page_size = 20
//	xref_namespaces = ["MSH", "MeSH", "MESH"]
type Catalog struct {
	Sources []CatalogSource `toml:"source"`
}

// LoadCatalog reads and validates a sources.toml file.
func LoadCatalog(path string) (*Catalog, error) {
	var catalog Catalog
	if _, err := toml.DecodeFile(path, &catalog); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if len(catalog.Sources) == 0 {
		return nil, fmt.Errorf("catalog %s declares no sources", path)
	}

	seen := make(map[string]bool, len(catalog.Sources))
	for i, src := range catalog.Sources {
		if src.ID == "" {
			return nil, fmt.Errorf("catalog %s: source %d has no id", path, i)
		}
		if src.BaseURL == "" {
			return nil, fmt.Errorf("catalog %s: source %q has no base_url", path, src.ID)
		}
		if seen[src.ID] {
			return nil, fmt.Errorf("catalog %s: duplicate source id %q", path, src.ID)
		}
		seen[src.ID] = true
	}

	return &catalog, nil
}

// Lookup returns the catalog entry with the given id.
func (c *Catalog) Lookup(id string) (*CatalogSource, bool) {
	for i := range c.Sources {
		if c.Sources[i].ID == id {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

// ApplyCatalog overrides the configured source with the catalog entry
// matching Source.ID. The entry must exist.
func (c *Config) ApplyCatalog(catalog *Catalog) error {
	src, ok := catalog.Lookup(c.Source.ID)
	if !ok {
		return fmt.Errorf("source %q not found in catalog", c.Source.ID)
	}

	c.Source.BaseURL = src.BaseURL
	if src.PageSize > 0 {
		c.Source.PageSize = src.PageSize
	}
	if len(src.XrefNamespaces) > 0 {
		c.Source.XrefNamespaces = src.XrefNamespaces
	}
	return nil
}
