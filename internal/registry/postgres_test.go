package registry

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/bxcodec/dbresolver/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

func testConn(t *testing.T) (*platform.PostgresConnection, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	resolver := dbresolver.New(dbresolver.WithPrimaryDBs(db))

	return &platform.PostgresConnection{ConnectionDB: &resolver, Connected: true}, mock
}

func TestStore_Register_PersistsAndRegistersInMemory(t *testing.T) {
	pc, mock := testConn(t)
	mock.ExpectExec(`INSERT INTO event_type_registry`).WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(pc, New())

	err := store.Register(context.Background(), SchemaEntry{
		TypeName: "mdm.vendor.created", SchemaVersion: 1, JSONSchema: sampleSchema,
	})

	require.NoError(t, err)
	_, ok := store.reg.GetSchema("mdm.vendor.created", 1)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_LoadAll_HydratesRegistryFromRows(t *testing.T) {
	pc, mock := testConn(t)
	rows := sqlmock.NewRows([]string{"type_name", "schema_version", "json_schema", "description"}).
		AddRow("mdm.vendor.created", 1, sampleSchema, "vendor creation event")
	mock.ExpectQuery(`SELECT type_name, schema_version, json_schema, description FROM event_type_registry`).
		WillReturnRows(rows)

	reg := New()
	store := NewStore(pc, reg)

	require.NoError(t, store.LoadAll(context.Background()))

	entry, ok := reg.GetSchema("mdm.vendor.created", 1)
	require.True(t, ok)
	assert.Equal(t, "vendor creation event", entry.Description)
	assert.NoError(t, mock.ExpectationsWereMet())
}
