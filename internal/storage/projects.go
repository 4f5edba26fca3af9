package storage

import (
	"context"
	"fmt"
)

func (s *Store) ListProjects(ctx context.Context, tenantID string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, tenant_id, name, org_tag, status, created_at
		FROM projects WHERE tenant_id = ? ORDER BY created_at ASC, id ASC`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var results []Project
	for rows.Next() {
		var p Project
		var createdAt string
		if err := rows.Scan(&p.ID, &p.TenantID, &p.Name, &p.OrgTag, &p.Status, &createdAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

func (s *Store) InsertProject(ctx context.Context, p Project) error {
	if p.Status == "" {
		p.Status = "active"
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = nowUTC()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO projects (id, tenant_id, name, org_tag, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		p.ID, p.TenantID, p.Name, p.OrgTag, p.Status, formatTime(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting project %q: %w", p.Name, err)
	}
	return nil
}
