// Package migrations carries the schema of the document and analytics stores.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// DocumentSchema holds the postgres scripts for stored_documents.
//
//go:embed postgres/*.sql
var DocumentSchema embed.FS

// AnalyticsSchema holds the clickhouse scripts for subject_rows.
//
//go:embed clickhouse/*.sql
var AnalyticsSchema embed.FS

// script is one schema file.
type script struct {
	name string
	body string
}

// scripts returns the non-blank .sql files of dir, ordered by name.
func scripts(fsys fs.FS, dir string) ([]script, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s schema: %w", dir, err)
	}

	var out []script
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		out = append(out, script{name: e.Name(), body: string(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out, nil
}
