package storage

import (
	"context"
	"fmt"
	"time"
)

// OnboardedKey marks a tenant whose onboarding produced a goal; only those
// tenants are enumerated for briefing runs.
const OnboardedKey = "current_season"

// ListTenantIDs returns the distinct ids of tenants with completed onboarding.
func (s *Store) ListTenantIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT DISTINCT tenant_id FROM tenant_config WHERE key = ? ORDER BY tenant_id`), OnboardedKey)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetTenantConfig returns every config row for the tenant, oldest first.
func (s *Store) GetTenantConfig(ctx context.Context, tenantID string) ([]ConfigEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT tenant_id, key, content, created_at FROM tenant_config WHERE tenant_id = ? ORDER BY created_at ASC, key ASC`), tenantID)
	if err != nil {
		return nil, fmt.Errorf("loading tenant config: %w", err)
	}
	defer rows.Close()

	var entries []ConfigEntry
	for rows.Next() {
		var e ConfigEntry
		var createdAt string
		if err := rows.Scan(&e.TenantID, &e.Key, &e.Content, &createdAt); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetTenantConfig upserts one config key. The original created_at is kept
// on update since the earliest row anchors the tenant's trial.
func (s *Store) SetTenantConfig(ctx context.Context, tenantID, key, content string) error {
	return s.setTenantConfigAt(ctx, tenantID, key, content, nowUTC())
}

func (s *Store) setTenantConfigAt(ctx context.Context, tenantID, key, content string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO tenant_config (tenant_id, key, content, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (tenant_id, key) DO UPDATE SET content = excluded.content`),
		tenantID, key, content, formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("setting tenant config %s: %w", key, err)
	}
	return nil
}

// SeedTenantConfig writes a config key with an explicit creation time. It is
// used by imports and tests that need to control the trial anchor.
func (s *Store) SeedTenantConfig(ctx context.Context, tenantID, key, content string, createdAt time.Time) error {
	return s.setTenantConfigAt(ctx, tenantID, key, content, createdAt)
}
