package registry

import (
	"context"
	"database/sql"

	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

// Store persists registered schemas to Postgres and hydrates the
// in-memory Registry on startup, so a restarted engine doesn't lose
// previously registered event schemas.
type Store struct {
	db  *platform.PostgresConnection
	reg *Registry
}

// NewStore wires a Postgres-backed Store around an in-memory Registry.
func NewStore(db *platform.PostgresConnection, reg *Registry) *Store {
	return &Store{db: db, reg: reg}
}

// Register persists entry and registers it in the in-memory Registry.
func (s *Store) Register(ctx context.Context, entry SchemaEntry) error {
	if err := s.reg.Register(ctx, entry); err != nil {
		return err
	}

	db, err := s.db.GetDB(ctx)
	if err != nil {
		return platform.WrapInternal("get database connection", err)
	}

	const query = `
		INSERT INTO event_type_registry (type_name, schema_version, json_schema, description)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (type_name, schema_version) DO UPDATE
		SET json_schema = EXCLUDED.json_schema, description = EXCLUDED.description`

	if _, err := db.ExecContext(ctx, query, entry.TypeName, entry.SchemaVersion, entry.JSONSchema, entry.Description); err != nil {
		return platform.WrapInternal("persist schema registration", err)
	}

	return nil
}

// LoadAll hydrates the in-memory Registry from every row in
// event_type_registry, called once at startup.
func (s *Store) LoadAll(ctx context.Context) error {
	db, err := s.db.GetDB(ctx)
	if err != nil {
		return platform.WrapInternal("get database connection", err)
	}

	rows, err := db.QueryContext(ctx, `SELECT type_name, schema_version, json_schema, description FROM event_type_registry`)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil
		}

		return platform.WrapInternal("load registered schemas", err)
	}
	defer rows.Close()

	for rows.Next() {
		var entry SchemaEntry

		if err := rows.Scan(&entry.TypeName, &entry.SchemaVersion, &entry.JSONSchema, &entry.Description); err != nil {
			return platform.WrapInternal("scan registered schema row", err)
		}

		if err := s.reg.Register(ctx, entry); err != nil {
			return err
		}
	}

	return rows.Err()
}
