package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeWatchlist(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "watchlist.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing watchlist: %v", err)
	}
	return path
}

const validWatchlist = `schema_version: v1
companies:
  - name: anthropic
    aliases: ["Anthropic PBC", "Anthropic, Inc."]
  - name: acme robotics
    aliases: ["ACME"]
`

func TestLoadWatchlist(t *testing.T) {
	wl, err := LoadWatchlist(writeWatchlist(t, validWatchlist))
	if err != nil {
		t.Fatalf("LoadWatchlist failed: %v", err)
	}
	if len(wl.Companies) != 2 {
		t.Fatalf("companies = %d, want 2", len(wl.Companies))
	}

	r := wl.Resolver()
	tests := []struct{ in, want string }{
		{"Anthropic PBC", "anthropic"},
		{"anthropic pbc", "anthropic"},
		{"  ANTHROPIC, INC.  ", "anthropic"},
		{"acme", "acme robotics"},
		{"Acme Robotics", "acme robotics"},
		{"Unknown Corp", "Unknown Corp"},
	}
	for _, tt := range tests {
		if got := r.Resolve(tt.in); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolverNilPassthrough(t *testing.T) {
	var r *Resolver
	if got := r.Resolve("  Acme  "); got != "Acme" {
		t.Errorf("nil resolver Resolve = %q, want trimmed input", got)
	}
}

func TestLoadWatchlistRejectsBadSchema(t *testing.T) {
	_, err := LoadWatchlist(writeWatchlist(t, `schema_version: v999
companies:
  - name: anthropic
`))
	if err == nil || !strings.Contains(err.Error(), "schema_version") {
		t.Fatalf("expected schema_version error, got %v", err)
	}
}

func TestLoadWatchlistRejectsDuplicateAlias(t *testing.T) {
	_, err := LoadWatchlist(writeWatchlist(t, `schema_version: v1
companies:
  - name: anthropic
    aliases: ["ACME"]
  - name: acme robotics
    aliases: ["acme"]
`))
	if err == nil || !strings.Contains(err.Error(), "already claimed") {
		t.Fatalf("expected duplicate alias error, got %v", err)
	}
}

func TestLoadWatchlistRejectsMissingName(t *testing.T) {
	_, err := LoadWatchlist(writeWatchlist(t, `schema_version: v1
companies:
  - aliases: ["acme"]
`))
	if err == nil || !strings.Contains(err.Error(), "name is required") {
		t.Fatalf("expected missing name error, got %v", err)
	}
}
