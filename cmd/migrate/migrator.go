package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/spanner"
	database "cloud.google.com/go/spanner/admin/database/apiv1"
	"cloud.google.com/go/spanner/admin/database/apiv1/databasepb"
	instance "cloud.google.com/go/spanner/admin/instance/apiv1"
	"cloud.google.com/go/spanner/admin/instance/apiv1/instancepb"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const migrationsTable = "schema_migrations"

const createMigrationsTable = `CREATE TABLE schema_migrations (
  name STRING(256) NOT NULL,
  applied_at TIMESTAMP NOT NULL OPTIONS (allow_commit_timestamp=true),
) PRIMARY KEY (name)`

type migrator struct {
	cfg       config
	log       zerolog.Logger
	instances *instance.InstanceAdminClient
	databases *database.DatabaseAdminClient
	client    *spanner.Client
}

func newMigrator(ctx context.Context, cfg config, log zerolog.Logger) (*migrator, error) {
	instances, err := instance.NewInstanceAdminClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("instance admin client: %w", err)
	}
	databases, err := database.NewDatabaseAdminClient(ctx)
	if err != nil {
		instances.Close()
		return nil, fmt.Errorf("database admin client: %w", err)
	}
	return &migrator{cfg: cfg, log: log, instances: instances, databases: databases}, nil
}

func (m *migrator) Close() {
	if m.client != nil {
		m.client.Close()
	}
	m.databases.Close()
	m.instances.Close()
}

func (m *migrator) ensureInstance(ctx context.Context) error {
	_, err := m.instances.GetInstance(ctx, &instancepb.GetInstanceRequest{Name: m.cfg.instancePath()})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		// a missing instance surfaces in ensureDatabase
		m.log.Warn().Err(err).Msg("instance lookup failed, continuing")
		return nil
	}

	m.log.Info().Str("instance", m.cfg.instance).Msg("creating instance")
	op, err := m.instances.CreateInstance(ctx, &instancepb.CreateInstanceRequest{
		Parent:     "projects/" + m.cfg.project,
		InstanceId: m.cfg.instance,
		Instance: &instancepb.Instance{
			Config:      fmt.Sprintf("projects/%s/instanceConfigs/emulator-config", m.cfg.project),
			DisplayName: "Farmily ledger",
			NodeCount:   1,
		},
	})
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := op.Wait(ctx); err != nil && status.Code(err) != codes.AlreadyExists {
		m.log.Warn().Err(err).Msg("waiting for instance")
	}
	return nil
}

func (m *migrator) ensureDatabase(ctx context.Context) error {
	_, err := m.databases.GetDatabase(ctx, &databasepb.GetDatabaseRequest{Name: m.cfg.databasePath()})
	switch {
	case err == nil:
		return nil
	case status.Code(err) != codes.NotFound:
		if m.cfg.emulator != "" {
			m.log.Warn().Err(err).Msg("database lookup failed, continuing against emulator")
			return nil
		}
		return err
	}

	m.log.Info().Str("database", m.cfg.database).Msg("creating database")
	op, err := m.databases.CreateDatabase(ctx, &databasepb.CreateDatabaseRequest{
		Parent:          m.cfg.instancePath(),
		CreateStatement: fmt.Sprintf("CREATE DATABASE `%s`", m.cfg.database),
	})
	if status.Code(err) == codes.AlreadyExists {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = op.Wait(ctx)
	return err
}

// applied returns the migration names already recorded, creating the
// bookkeeping table on first run.
func (m *migrator) applied(ctx context.Context) (map[string]bool, error) {
	ddl, err := m.databases.GetDatabaseDdl(ctx, &databasepb.GetDatabaseDdlRequest{Database: m.cfg.databasePath()})
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	if !hasTable(ddl.GetStatements(), migrationsTable) {
		if err := m.updateDDL(ctx, []string{createMigrationsTable}); err != nil {
			return nil, fmt.Errorf("create %s: %w", migrationsTable, err)
		}
	}

	m.client, err = spanner.NewClient(ctx, m.cfg.databasePath())
	if err != nil {
		return nil, fmt.Errorf("spanner client: %w", err)
	}

	done := make(map[string]bool)
	iter := m.client.Single().Read(ctx, migrationsTable, spanner.AllKeys(), []string{"name"})
	defer iter.Stop()
	for {
		row, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return done, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", migrationsTable, err)
		}
		var name string
		if err := row.Columns(&name); err != nil {
			return nil, err
		}
		done[name] = true
	}
}

// apply runs one file's DDL and then records it. DDL cannot share a
// transaction with the insert, so a crash in between reruns the file.
func (m *migrator) apply(ctx context.Context, f migration) error {
	if err := m.updateDDL(ctx, f.statements); err != nil {
		return err
	}
	_, err := m.client.Apply(ctx, []*spanner.Mutation{
		spanner.InsertOrUpdate(migrationsTable, []string{"name", "applied_at"}, []interface{}{f.name, spanner.CommitTimestamp}),
	})
	return err
}

func (m *migrator) updateDDL(ctx context.Context, statements []string) error {
	op, err := m.databases.UpdateDatabaseDdl(ctx, &databasepb.UpdateDatabaseDdlRequest{
		Database:   m.cfg.databasePath(),
		Statements: statements,
	})
	if err != nil {
		return err
	}
	return op.Wait(ctx)
}

func hasTable(statements []string, table string) bool {
	prefix := "CREATE TABLE " + strings.ToUpper(table)
	for _, s := range statements {
		if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), prefix+" ") ||
			strings.HasPrefix(strings.ToUpper(strings.TrimSpace(s)), prefix+"(") {
			return true
		}
	}
	return false
}
