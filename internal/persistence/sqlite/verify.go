// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// VerifyIntegrity runs PRAGMA quick_check (or integrity_check when full is
// set) on db. It returns the diagnostic rows when problems were found and
// nil when the database is healthy.
func VerifyIntegrity(ctx context.Context, db *sql.DB, full bool) ([]string, error) {
	pragma := "PRAGMA quick_check;"
	if full {
		pragma = "PRAGMA integrity_check;"
	}

	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, fmt.Errorf("integrity pragma failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []string
	for rows.Next() {
		var res string
		if err := rows.Scan(&res); err != nil {
			return nil, fmt.Errorf("scan integrity result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read integrity results: %w", err)
	}

	switch {
	case len(results) == 1 && strings.EqualFold(results[0], "ok"):
		return nil, nil
	case len(results) == 0:
		return []string{"no results returned from integrity check"}, nil
	default:
		return results, nil
	}
}
