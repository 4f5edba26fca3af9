package storage

import (
	"context"
	"fmt"
	"strings"
)

// InsertLog appends a log entry. An identical entry (same tenant, type and
// content) is ignored; the result reports whether a row was written.
func (s *Store) InsertLog(ctx context.Context, l LogEntry) (bool, error) {
	if l.CreatedAt.IsZero() {
		l.CreatedAt = nowUTC()
	}
	res, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO logs (id, tenant_id, entry_type, content, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`),
		l.ID, l.TenantID, l.EntryType, l.Content, formatTime(l.CreatedAt),
	)
	if err != nil {
		return false, fmt.Errorf("inserting log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListLogs returns the tenant's most recent log entries. When typeContains is
// set only entries whose type contains it (case-insensitive) are returned.
func (s *Store) ListLogs(ctx context.Context, tenantID, typeContains string, limit int) ([]LogEntry, error) {
	query := `SELECT id, tenant_id, entry_type, content, created_at FROM logs WHERE tenant_id = ?`
	args := []any{tenantID}
	if typeContains != "" {
		query += ` AND UPPER(entry_type) LIKE ?`
		args = append(args, "%"+strings.ToUpper(typeContains)+"%")
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}
	defer rows.Close()

	var results []LogEntry
	for rows.Next() {
		var l LogEntry
		var createdAt string
		if err := rows.Scan(&l.ID, &l.TenantID, &l.EntryType, &l.Content, &createdAt); err != nil {
			return nil, err
		}
		if l.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		results = append(results, l)
	}
	return results, rows.Err()
}
