package storage

import (
	"context"
	"fmt"
)

// ListUnprocessedDumps returns the tenant's pending notes, oldest first.
func (s *Store) ListUnprocessedDumps(ctx context.Context, tenantID string) ([]RawDump, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, tenant_id, content, is_processed, created_at
		FROM raw_dumps WHERE tenant_id = ? AND is_processed = 0
		ORDER BY created_at ASC, id ASC`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing dumps: %w", err)
	}
	defer rows.Close()

	var results []RawDump
	for rows.Next() {
		var d RawDump
		var processed int
		var createdAt string
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Content, &processed, &createdAt); err != nil {
			return nil, err
		}
		d.Processed = processed != 0
		if d.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

func (s *Store) InsertDump(ctx context.Context, d RawDump) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO raw_dumps (id, tenant_id, content, is_processed, created_at)
		VALUES (?, ?, ?, 0, ?)`),
		d.ID, d.TenantID, d.Content, formatTime(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting dump: %w", err)
	}
	return nil
}

// MarkDumpsProcessed flips is_processed for exactly the given ids of the
// tenant. Rows already processed are not touched. It returns the number of
// rows that changed.
func (s *Store) MarkDumpsProcessed(ctx context.Context, tenantID string, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, tenantID)
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		UPDATE raw_dumps SET is_processed = 1
		WHERE tenant_id = ? AND is_processed = 0 AND id IN (`+inClause(len(ids))+`)`), args...)
	if err != nil {
		return 0, fmt.Errorf("marking dumps processed: %w", err)
	}
	return res.RowsAffected()
}
