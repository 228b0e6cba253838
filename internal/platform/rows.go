package platform

import "database/sql"

// ScanRowsToMaps reads every row into a column-name-keyed map,
// schema-agnostically via sql.Rows.Columns — the shape the snapshot
// service's table capture and the projections HTTP endpoint both need.
func ScanRowsToMaps(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []map[string]any

	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}

		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = normalizeScanned(values[i])
		}

		result = append(result, row)
	}

	return result, rows.Err()
}

// normalizeScanned converts driver-specific byte-slice values (commonly
// returned for numeric/text/jsonb columns by lib/pq and pgx) into plain
// strings so scanned rows round-trip cleanly through JSON.
func normalizeScanned(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}

	return v
}
