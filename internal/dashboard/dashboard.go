// Package dashboard renders the command-mode text views a tenant can ask
// for outside of scheduled briefings.
package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/kalambet/pulse/internal/storage"
	"github.com/kalambet/pulse/internal/tenant"
)

// View names a dashboard screen.
type View string

const (
	ViewUrgent   View = "urgent"
	ViewBrief    View = "brief"
	ViewVault    View = "vault"
	ViewPeople   View = "people"
	ViewMainGoal View = "main_goal"
)

// Views lists every view in menu order.
var Views = []View{ViewUrgent, ViewBrief, ViewVault, ViewPeople, ViewMainGoal}

// ParseView accepts a view name with either separator, case-insensitive.
func ParseView(s string) (View, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	for _, v := range Views {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

const (
	briefLimit = 5
	vaultLimit = 5
	vaultType  = "IDEAS"
)

// Store is the read-only storage surface the views need.
// Implemented by storage.Store.
type Store interface {
	ListTodoByPriority(ctx context.Context, tenantID, priority string, limit int) ([]storage.Task, error)
	ListTodoUrgentFirst(ctx context.Context, tenantID string, limit int) ([]storage.Task, error)
	ListLogs(ctx context.Context, tenantID, typeContains string, limit int) ([]storage.LogEntry, error)
	ListPeople(ctx context.Context, tenantID string) ([]storage.Person, error)
}

type ProfileLoader interface {
	Load(ctx context.Context, tenantID string) (tenant.Profile, error)
}

type Dashboard struct {
	store    Store
	profiles ProfileLoader
}

func New(store Store, profiles ProfileLoader) *Dashboard {
	return &Dashboard{store: store, profiles: profiles}
}

// Render returns the text of view v for the tenant.
func (d *Dashboard) Render(ctx context.Context, tenantID string, v View) (string, error) {
	switch v {
	case ViewUrgent:
		return d.Urgent(ctx, tenantID)
	case ViewBrief:
		return d.Brief(ctx, tenantID)
	case ViewVault:
		return d.Vault(ctx, tenantID)
	case ViewPeople:
		return d.People(ctx, tenantID)
	case ViewMainGoal:
		return d.MainGoal(ctx, tenantID)
	}
	return "", fmt.Errorf("unknown view %q", v)
}

// Urgent shows the oldest open urgent task.
func (d *Dashboard) Urgent(ctx context.Context, tenantID string) (string, error) {
	tasks, err := d.store.ListTodoByPriority(ctx, tenantID, storage.PriorityUrgent, 1)
	if err != nil {
		return "", fmt.Errorf("loading tasks: %w", err)
	}
	if len(tasks) == 0 {
		return "✅ No active fires.", nil
	}
	return "🔴 *ACTION REQUIRED:*\n\n🔥 " + tasks[0].Title, nil
}

// Brief lists up to five open tasks, urgent ones first.
func (d *Dashboard) Brief(ctx context.Context, tenantID string) (string, error) {
	tasks, err := d.store.ListTodoUrgentFirst(ctx, tenantID, briefLimit)
	if err != nil {
		return "", fmt.Errorf("loading tasks: %w", err)
	}
	if len(tasks) == 0 {
		return "The list is empty.", nil
	}

	var sb strings.Builder
	sb.WriteString("📋 *EXECUTIVE BRIEF:*\n\n")
	for i, t := range tasks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		mark := "⚪"
		if t.Priority == storage.PriorityUrgent {
			mark = "🔴"
		}
		sb.WriteString(mark + " " + t.Title)
	}
	return sb.String(), nil
}

// Vault shows the latest captured ideas.
func (d *Dashboard) Vault(ctx context.Context, tenantID string) (string, error) {
	ideas, err := d.store.ListLogs(ctx, tenantID, vaultType, vaultLimit)
	if err != nil {
		return "", fmt.Errorf("loading ideas: %w", err)
	}
	if len(ideas) == 0 {
		return "The Vault is empty.", nil
	}
	parts := make([]string, len(ideas))
	for i, l := range ideas {
		parts[i] = fmt.Sprintf("💡 *%s:* %s", l.CreatedAt.Format("01/02/2006"), l.Content)
	}
	return fmt.Sprintf("🔓 *THE IDEA VAULT (Last %d):*\n\n", vaultLimit) + strings.Join(parts, "\n\n"), nil
}

// People lists the tenant's stakeholders by strategic weight.
func (d *Dashboard) People(ctx context.Context, tenantID string) (string, error) {
	people, err := d.store.ListPeople(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("loading people: %w", err)
	}
	if len(people) == 0 {
		return "No one registered.", nil
	}
	lines := make([]string, len(people))
	for i, p := range people {
		role := p.Role
		if role == "" {
			role = "Unknown"
		}
		lines[i] = fmt.Sprintf("• %s (%s)", p.Name, role)
	}
	return "👥 *STAKEHOLDERS:*\n\n" + strings.Join(lines, "\n"), nil
}

func (d *Dashboard) MainGoal(ctx context.Context, tenantID string) (string, error) {
	p, err := d.profiles.Load(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return "🧭 *CURRENT MAIN GOAL:*\n\n" + p.Goal, nil
}
