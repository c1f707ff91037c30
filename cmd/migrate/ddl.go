package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type migration struct {
	name       string
	statements []string
}

// migrationFiles loads every .sql file in dir, sorted by name.
func migrationFiles(dir string) ([]migration, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(paths)

	out := make([]migration, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		stmts := splitDDL(string(content))
		if len(stmts) == 0 {
			continue
		}
		out = append(out, migration{name: filepath.Base(p), statements: stmts})
	}
	return out, nil
}

// splitDDL drops full-line comments and splits on semicolons.
// UpdateDatabaseDdl rejects trailing semicolons and comments.
func splitDDL(content string) []string {
	var b strings.Builder
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
