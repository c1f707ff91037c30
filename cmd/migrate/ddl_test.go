package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDDL(t *testing.T) {
	src := `-- ledger
CREATE TABLE t (
  id STRING(36) NOT NULL,
) PRIMARY KEY (id);

-- index
CREATE INDEX idx_t ON t(id);
`
	got := splitDDL(src)
	require.Len(t, got, 2)
	assert.Equal(t, "CREATE TABLE t (\nid STRING(36) NOT NULL,\n) PRIMARY KEY (id)", got[0])
	assert.Equal(t, "CREATE INDEX idx_t ON t(id)", got[1])
	assert.Empty(t, splitDDL("-- nothing here\n\n"))
}

func TestMigrationFiles_SortedAndSkipsEmpty(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	write("002_b.sql", "CREATE INDEX i ON t(x);")
	write("001_a.sql", "CREATE TABLE t (x INT64) PRIMARY KEY (x);")
	write("003_empty.sql", "-- placeholder\n")
	write("notes.txt", "ignored")

	files, err := migrationFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "001_a.sql", files[0].name)
	assert.Equal(t, "002_b.sql", files[1].name)
}

func TestMigrationFiles_RepoSchema(t *testing.T) {
	files, err := migrationFiles(filepath.Join("..", "..", "migrations"))
	require.NoError(t, err)
	require.NotEmpty(t, files)
	assert.True(t, hasTable(files[0].statements, "chain_actions"))
}

func TestHasTable(t *testing.T) {
	ddl := []string{
		"CREATE TABLE schema_migrations (\n  name STRING(256) NOT NULL\n) PRIMARY KEY (name)",
		"CREATE INDEX idx ON chain_actions(state)",
	}
	assert.True(t, hasTable(ddl, "schema_migrations"))
	assert.False(t, hasTable(ddl, "chain_actions"))
	assert.False(t, hasTable(ddl, "schema"))
}
