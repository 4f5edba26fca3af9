package storage

import (
	"context"
	"fmt"
)

// ListPeople returns the tenant's stakeholders, highest strategic weight first.
func (s *Store) ListPeople(ctx context.Context, tenantID string) ([]Person, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, tenant_id, name, role, strategic_weight, created_at
		FROM people WHERE tenant_id = ? ORDER BY strategic_weight DESC, name ASC`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing people: %w", err)
	}
	defer rows.Close()

	var results []Person
	for rows.Next() {
		var p Person
		var createdAt string
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.Role, &p.StrategicWeight, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *Store) InsertPerson(ctx context.Context, p Person) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO people (id, tenant_id, name, role, strategic_weight, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		p.ID, p.TenantID, p.Name, p.Role, p.StrategicWeight, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting person %q: %w", p.Name, err)
	}
	return nil
}
