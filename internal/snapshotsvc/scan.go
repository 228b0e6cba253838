package snapshotsvc

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bxcodec/dbresolver/v2"

	"github.com/mcarvalho21/nova-sub000/internal/domain/projectiondom"
	"github.com/mcarvalho21/nova-sub000/internal/platform"
)

const snapshotColumns = `id, projection_type, sequence_number, snapshot_data, is_stale, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner) (*projectiondom.Snapshot, error) {
	var (
		s        projectiondom.Snapshot
		dataJSON []byte
	)

	if err := row.Scan(&s.SnapshotID, &s.ProjectionType, &s.SequenceNumber, &dataJSON, &s.IsStale, &s.CreatedAt); err != nil {
		return nil, err
	}

	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &s.SnapshotData); err != nil {
			return nil, err
		}
	}

	return &s, nil
}

func (s *Service) insertSnapshot(ctx context.Context, db dbresolver.DB, snapshot *projectiondom.Snapshot) error {
	dataJSON, err := json.Marshal(snapshot.SnapshotData)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO projection_snapshots (id, projection_type, sequence_number, snapshot_data, is_stale, created_at)
		VALUES ($1,$2,$3,$4,$5,now())
		RETURNING created_at`

	return db.QueryRowContext(ctx, query, snapshot.SnapshotID, snapshot.ProjectionType, snapshot.SequenceNumber, dataJSON, snapshot.IsStale).
		Scan(&snapshot.CreatedAt)
}

// readAllRows reads every row of a projection table into a slice of
// column-name-keyed maps, schema-agnostically via platform.ScanRowsToMaps.
func (s *Service) readAllRows(ctx context.Context, db dbresolver.DB, identity projectiondom.TableIdentity) ([]map[string]any, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", identity.TableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return platform.ScanRowsToMaps(rows)
}

// insertRow bulk-inserts one schema-agnostic row back into table during
// restore, building the column list from the row's own keys.
func insertRow(ctx context.Context, tx *sql.Tx, table string, row map[string]any) error {
	columns := make([]string, 0, len(row))
	placeholders := make([]string, 0, len(row))
	values := make([]any, 0, len(row))

	i := 1

	for col, val := range row {
		columns = append(columns, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		values = append(values, val)
		i++
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	_, err := tx.ExecContext(ctx, query, values...)

	return err
}
