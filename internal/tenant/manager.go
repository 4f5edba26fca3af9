// Package tenant turns a tenant's onboarding key/value rows into a typed
// Profile and validates updates to them.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/kalambet/pulse/internal/schedule"
	"github.com/kalambet/pulse/internal/storage"
)

// ErrInvalidConfig marks a rejected key or value in Set.
var ErrInvalidConfig = errors.New("invalid tenant config")

// ConfigStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ConfigStore interface {
	GetTenantConfig(ctx context.Context, tenantID string) ([]storage.ConfigEntry, error)
	SetTenantConfig(ctx context.Context, tenantID, key, content string) error
}

// Manager provides structured access to tenant configuration.
type Manager struct {
	store ConfigStore
}

func NewManager(store ConfigStore) *Manager {
	return &Manager{store: store}
}

// Load reads the tenant's config rows and assembles a Profile. A tenant
// without any rows yields storage.ErrNotFound.
func (m *Manager) Load(ctx context.Context, tenantID string) (Profile, error) {
	entries, err := m.store.GetTenantConfig(ctx, tenantID)
	if err != nil {
		return Profile{}, fmt.Errorf("loading tenant %s: %w", tenantID, err)
	}
	if len(entries) == 0 {
		return Profile{}, fmt.Errorf("tenant %s: %w", tenantID, storage.ErrNotFound)
	}
	return Build(tenantID, entries), nil
}

// Build assembles a Profile from raw config rows, applying defaults for
// missing or malformed values.
func Build(tenantID string, entries []storage.ConfigEntry) Profile {
	p := Profile{
		ID:          tenantID,
		Persona:     PersonaCommander,
		Tier:        schedule.TierStandard,
		OffsetHours: DefaultOffsetHours,
		Goal:        DefaultGoal,
		UserName:    DefaultUserName,
		ChatID:      tenantID,
	}

	for _, e := range entries {
		if p.TrialStart.IsZero() || e.CreatedAt.Before(p.TrialStart) {
			p.TrialStart = e.CreatedAt
		}
		v := strings.TrimSpace(e.Content)
		if v == "" {
			continue
		}
		switch e.Key {
		case KeyPersona:
			p.Persona = ParsePersona(v)
		case KeyTier:
			p.Tier = schedule.ParseTier(v)
		case KeyOffset:
			if f, err := parseOffset(v); err == nil {
				p.OffsetHours = f
			} else {
				slog.Warn("invalid timezone offset, using default", "tenant", tenantID, "value", v, "error", err)
			}
		case KeyGoal:
			p.Goal = v
		case KeyUserName:
			p.UserName = v
		case KeyChatID:
			p.ChatID = v
		}
	}
	return p
}

func parseOffset(v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || f < -12 || f > 14 {
		return 0, fmt.Errorf("offset %v outside -12..14", f)
	}
	return f, nil
}

var validators = map[string]func(string) error{
	KeyPersona: func(v string) error {
		if _, ok := lookupPersona(v); !ok {
			return fmt.Errorf("persona must be 1, 2, 3 or Commander, Architect, Nurturer")
		}
		return nil
	},
	KeyTier: func(v string) error {
		if _, ok := schedule.LookupTier(v); !ok {
			return fmt.Errorf("schedule tier must be 1, 2, 3 or early, standard, late")
		}
		return nil
	},
	KeyOffset: func(v string) error {
		_, err := parseOffset(strings.TrimSpace(v))
		return err
	},
	KeyGoal:     nonEmpty,
	KeyUserName: nonEmpty,
	KeyChatID:   nonEmpty,
}

func nonEmpty(v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("value must not be empty")
	}
	return nil
}

// ValidKeys returns the config keys a tenant may set, sorted.
func ValidKeys() []string {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks key and value without writing. Errors wrap ErrInvalidConfig.
func Validate(key, value string) error {
	validate, ok := validators[key]
	if !ok {
		return fmt.Errorf("%w: unknown key %q (valid: %s)", ErrInvalidConfig, key, strings.Join(ValidKeys(), ", "))
	}
	if err := validate(value); err != nil {
		return fmt.Errorf("%w: value for %s: %w", ErrInvalidConfig, key, err)
	}
	return nil
}

// Set validates and persists one config key. Persona and tier values are
// normalised to their stored digit.
func (m *Manager) Set(ctx context.Context, tenantID, key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}
	value = strings.TrimSpace(value)
	switch key {
	case KeyPersona:
		value = strconv.Itoa(int(ParsePersona(value)))
	case KeyTier:
		value = strconv.Itoa(int(schedule.ParseTier(value)))
	}
	if err := m.store.SetTenantConfig(ctx, tenantID, key, value); err != nil {
		return fmt.Errorf("setting %s for tenant %s: %w", key, tenantID, err)
	}
	return nil
}
