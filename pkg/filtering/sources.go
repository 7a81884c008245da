package filtering

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// SourceSpec collects every place sources can be declared.
type SourceSpec struct {
	Catalog    map[string]ListDefinition
	CatalogIDs []string
	Lists      map[string]ListConfig
	BlackURLs  []string
	WhiteURLs  []string
}

// BuildSources converts list configuration into loadable sources. Sources
// sharing a location and role are declared once.
func BuildSources(spec SourceSpec) ([]Source, error) {
	sources := make([]Source, 0)
	seen := make(map[string]bool)
	add := func(src Source) {
		key := string(src.Role) + "|" + src.Location
		if seen[key] {
			return
		}
		seen[key] = true
		sources = append(sources, src)
	}

	for _, id := range spec.CatalogIDs {
		def, ok := spec.Catalog[id]
		if !ok {
			return nil, fmt.Errorf("unknown catalog list %q", id)
		}
		add(Source{ID: def.ID, Location: def.URL, Role: def.Role, Enabled: true})
	}

	ids := make([]string, 0, len(spec.Lists))
	for id := range spec.Lists {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		cfg := spec.Lists[id]
		if !cfg.Enabled {
			continue
		}
		role, err := ParseRole(cfg.Role)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", id, err)
		}
		location := cfg.URL
		if location == "" {
			if def, ok := spec.Catalog[id]; ok {
				location = def.URL
				if cfg.Role == "" {
					role = def.Role
				}
			}
		}
		if location == "" {
			continue
		}
		add(Source{
			ID:       id,
			Location: location,
			Role:     role,
			Enabled:  true,
			Auth: AuthConfig{
				Username: cfg.Username,
				Password: cfg.Password,
				Token:    cfg.Token,
				Header:   cfg.Header,
				Scheme:   cfg.Scheme,
			},
		})
	}

	appendURLs := func(urls []string, role Role) {
		for i, entry := range urls {
			trimmed := strings.TrimSpace(entry)
			if trimmed == "" {
				continue
			}
			add(Source{
				ID:       fmt.Sprintf("%s_%d", role, i+1),
				Location: trimmed,
				Role:     role,
				Enabled:  true,
			})
		}
	}
	appendURLs(spec.BlackURLs, RoleBlack)
	appendURLs(spec.WhiteURLs, RoleWhite)

	return sources, nil
}

// ReadSourceFile reads a newline-delimited list of source locations. Blank
// lines and lines starting with # are ignored.
func ReadSourceFile(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	file, err := os.Open(path) // #nosec G304 -- path is provided via config.
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = file.Close() }()

	return readSourceLines(file)
}

func readSourceLines(r io.Reader) ([]string, error) {
	var urls []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(stripBOM(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan source file: %w", err)
	}
	return urls, nil
}
