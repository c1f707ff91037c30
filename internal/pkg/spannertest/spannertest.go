// Package spannertest connects integration tests to the Spanner emulator.
// Tests using it carry the integration build tag and expect the schema under
// migrations/ to be applied with cmd/migrate.
package spannertest

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/spanner"
	"github.com/stretchr/testify/require"
)

// DefaultDatabase is used when SPANNER_TEST_DATABASE is unset.
const DefaultDatabase = "projects/test-project/instances/dev-instance/databases/farmily-test"

// Tables are truncated before and after every test.
var Tables = []string{"action_events", "chain_actions"}

// Database returns the test database path.
func Database() string {
	if db := os.Getenv("SPANNER_TEST_DATABASE"); db != "" {
		return db
	}
	return DefaultDatabase
}

// Setup returns a client on a clean database. The test is skipped when no
// emulator is configured.
func Setup(t *testing.T) *spanner.Client {
	t.Helper()
	if os.Getenv("SPANNER_EMULATOR_HOST") == "" {
		t.Skip("SPANNER_EMULATOR_HOST not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := spanner.NewClient(ctx, Database())
	require.NoError(t, err, "failed to create Spanner client")

	Clean(t, client)
	t.Cleanup(func() {
		Clean(t, client)
		client.Close()
	})
	return client
}

// Clean deletes every row of Tables.
func Clean(t *testing.T, client *spanner.Client) {
	t.Helper()
	muts := make([]*spanner.Mutation, 0, len(Tables))
	for _, table := range Tables {
		muts = append(muts, spanner.Delete(table, spanner.AllKeys()))
	}
	_, err := client.Apply(context.Background(), muts)
	require.NoError(t, err, "failed to clean database")
}

// RowCount returns the number of rows in table.
func RowCount(t *testing.T, client *spanner.Client, table string) int64 {
	t.Helper()
	iter := client.Single().Query(context.Background(), spanner.Statement{
		SQL: fmt.Sprintf("SELECT COUNT(*) FROM %s", table),
	})
	defer iter.Stop()

	row, err := iter.Next()
	require.NoError(t, err, "failed to count %s", table)
	var n int64
	require.NoError(t, row.Columns(&n))
	return n
}
