package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// WatchlistFile is the on-disk company alias map. Inputs like
// "Anthropic PBC" resolve to the canonical name the data sources index by.
//
// Example YAML structure:
//
//	schema_version: v1
//	companies:
//	  - name: anthropic
//	    aliases: ["Anthropic PBC", "Anthropic, Inc."]
//	  - name: acme robotics
//	    aliases: ["ACME", "Acme Robotics GmbH"]
type WatchlistFile struct {
	// SchemaVersion is the explicit config schema version (e.g., "v1").
	SchemaVersion string `koanf:"schema_version"`

	Companies []CompanyEntry `koanf:"companies"`
}

// CompanyEntry maps one canonical company name to its aliases.
type CompanyEntry struct {
	// Name is the canonical form. Must be unique across the file.
	Name string `koanf:"name"`

	Aliases []string `koanf:"aliases"`
}

// Validate checks the watchlist structure. Canonical names and aliases
// must be unique under case folding.
func (f *WatchlistFile) Validate() error {
	if f.SchemaVersion != "v1" {
		return NewConfigError(fmt.Sprintf(
			"unsupported schema_version: %q (expected \"v1\")", f.SchemaVersion))
	}

	seen := make(map[string]string)
	claim := func(raw, owner string, index int) error {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			return NewConfigError(fmt.Sprintf("companies[%d]: empty name or alias", index))
		}
		if prev, ok := seen[key]; ok {
			return NewConfigError(fmt.Sprintf(
				"companies[%d]: %q already claimed by %q", index, raw, prev))
		}
		seen[key] = owner
		return nil
	}

	for i, entry := range f.Companies {
		if strings.TrimSpace(entry.Name) == "" {
			return NewConfigError(fmt.Sprintf("companies[%d]: name is required", i))
		}
		if err := claim(entry.Name, entry.Name, i); err != nil {
			return err
		}
		for _, alias := range entry.Aliases {
			if err := claim(alias, entry.Name, i); err != nil {
				return err
			}
		}
	}
	return nil
}

// LoadWatchlist loads and validates a watchlist file.
func LoadWatchlist(path string) (*WatchlistFile, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("loading watchlist from %q: %w", path, err)
	}
	var wl WatchlistFile
	if err := k.UnmarshalWithConf("", &wl, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("parsing watchlist from %q: %w", path, err)
	}
	if err := wl.Validate(); err != nil {
		return nil, fmt.Errorf("watchlist validation failed for %q: %w", path, err)
	}
	return &wl, nil
}

// Resolver answers alias lookups. Build one with Resolver(); the value is
// immutable, so hot reload swaps whole resolvers.
type Resolver struct {
	canonical map[string]string
}

// Resolver builds an alias resolver from the file.
func (f *WatchlistFile) Resolver() *Resolver {
	canonical := make(map[string]string)
	for _, entry := range f.Companies {
		name := strings.TrimSpace(entry.Name)
		canonical[strings.ToLower(name)] = name
		for _, alias := range entry.Aliases {
			canonical[strings.ToLower(strings.TrimSpace(alias))] = name
		}
	}
	return &Resolver{canonical: canonical}
}

// Resolve maps an input to its canonical company name. Unknown inputs pass
// through trimmed but otherwise unchanged.
func (r *Resolver) Resolve(input string) string {
	trimmed := strings.TrimSpace(input)
	if r == nil {
		return trimmed
	}
	if name, ok := r.canonical[strings.ToLower(trimmed)]; ok {
		return name
	}
	return trimmed
}
