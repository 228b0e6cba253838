package platform

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/bxcodec/dbresolver/v2"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// PostgresConnection is a hub dealing with primary/replica postgres
// connections, grounded on common/mpostgres.PostgresConnection. The engine
// is a single-relational-store design (spec.md Non-goals), so both
// connection strings may point at the same database; the read/write split
// still exists at the dbresolver level for replica-backed read paths like
// projection polling.
type PostgresConnection struct {
	ConnectionStringPrimary string
	ConnectionStringReplica string
	PrimaryDBName           string
	MigrationsSourceURL     string

	ConnectionDB *dbresolver.DB
	Connected    bool

	Logger Logger
}

// Connect opens primary/replica pools, runs pending migrations against the
// primary and pings the resolver.
func (pc *PostgresConnection) Connect() error {
	logger := pc.logger()
	logger.Info("connecting to primary and replica databases")

	dbPrimary, err := sql.Open("pgx", pc.ConnectionStringPrimary)
	if err != nil {
		return fmt.Errorf("open primary database: %w", err)
	}

	dbReplica, err := sql.Open("pgx", pc.ConnectionStringReplica)
	if err != nil {
		return fmt.Errorf("open replica database: %w", err)
	}

	connectionDB := dbresolver.New(
		dbresolver.WithPrimaryDBs(dbPrimary),
		dbresolver.WithReplicaDBs(dbReplica),
		dbresolver.WithLoadBalancer(dbresolver.RoundRobinLB),
	)

	if pc.MigrationsSourceURL != "" {
		driver, err := postgres.WithInstance(dbPrimary, &postgres.Config{
			MultiStatementEnabled: true,
			DatabaseName:          pc.PrimaryDBName,
			SchemaName:            "public",
		})
		if err != nil {
			return fmt.Errorf("build migration driver: %w", err)
		}

		m, err := migrate.NewWithDatabaseInstance(pc.MigrationsSourceURL, pc.PrimaryDBName, driver)
		if err != nil {
			return fmt.Errorf("load migrations: %w", err)
		}

		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}

	if err := connectionDB.Ping(); err != nil {
		return fmt.Errorf("ping postgres resolver: %w", err)
	}

	pc.Connected = true
	pc.ConnectionDB = &connectionDB

	logger.Info("connected to postgres")

	return nil
}

// GetDB returns the resolver, connecting lazily if necessary.
func (pc *PostgresConnection) GetDB(ctx context.Context) (dbresolver.DB, error) {
	if pc.ConnectionDB == nil {
		if err := pc.Connect(); err != nil {
			return nil, err
		}
	}

	return *pc.ConnectionDB, nil
}

func (pc *PostgresConnection) logger() Logger {
	if pc.Logger != nil {
		return pc.Logger
	}

	return &NoneLogger{}
}
