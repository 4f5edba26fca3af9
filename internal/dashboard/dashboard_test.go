package dashboard

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/pulse/internal/storage"
	"github.com/kalambet/pulse/internal/tenant"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newDashboard(t *testing.T) (*Dashboard, *storage.Store) {
	s := openTestStore(t)
	return New(s, tenant.NewManager(s)), s
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func addTask(t *testing.T, s *storage.Store, id, title, priority string, age time.Duration) {
	t.Helper()
	err := s.InsertTask(context.Background(), storage.Task{
		ID: id, TenantID: "42", Title: title, Priority: priority, CreatedAt: base.Add(-age),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestUrgent_NoFires(t *testing.T) {
	d, s := newDashboard(t)
	addTask(t, s, "t-1", "Water plants", storage.PriorityChore, time.Hour)

	got, err := d.Urgent(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	if got != "✅ No active fires." {
		t.Errorf("Urgent = %q", got)
	}
}

func TestUrgent_OldestFirst(t *testing.T) {
	d, s := newDashboard(t)
	addTask(t, s, "t-1", "Fix prod outage", storage.PriorityUrgent, 3*time.Hour)
	addTask(t, s, "t-2", "Sign contract", storage.PriorityUrgent, time.Hour)
	if _, err := s.CloseTask(context.Background(), "42", "t-1", storage.StatusDone, base); err != nil {
		t.Fatal(err)
	}
	addTask(t, s, "t-3", "Call bank", storage.PriorityUrgent, 2*time.Hour)

	got, _ := d.Urgent(context.Background(), "42")
	if !strings.HasSuffix(got, "🔥 Call bank") {
		t.Errorf("Urgent = %q, want oldest open urgent task", got)
	}
}

func TestBrief_UrgentFirstAndCapped(t *testing.T) {
	d, s := newDashboard(t)
	for i := range 6 {
		addTask(t, s, fmt.Sprintf("c-%d", i), fmt.Sprintf("chore %d", i), storage.PriorityChore, time.Duration(i)*time.Minute)
	}
	addTask(t, s, "u-1", "Ship release", storage.PriorityUrgent, 10*time.Hour)

	got, err := d.Brief(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimPrefix(got, "📋 *EXECUTIVE BRIEF:*\n\n"), "\n")
	if len(lines) != briefLimit {
		t.Fatalf("lines = %d, want %d:\n%s", len(lines), briefLimit, got)
	}
	if lines[0] != "🔴 Ship release" {
		t.Errorf("first line = %q, want the urgent task", lines[0])
	}
	for _, l := range lines[1:] {
		if !strings.HasPrefix(l, "⚪ chore") {
			t.Errorf("line = %q", l)
		}
	}
}

func TestUrgent_OldFireBehindManyNewerTasks(t *testing.T) {
	d, s := newDashboard(t)
	addTask(t, s, "u-old", "Renew domain", storage.PriorityUrgent, 30*24*time.Hour)
	for i := range 150 {
		addTask(t, s, fmt.Sprintf("c-%03d", i), fmt.Sprintf("chore %d", i), storage.PriorityChore, time.Duration(i)*time.Minute)
	}

	got, err := d.Urgent(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, "🔥 Renew domain") {
		t.Errorf("Urgent = %q, want the old urgent task", got)
	}

	got, err = d.Brief(context.Background(), "42")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(got, "📋 *EXECUTIVE BRIEF:*\n\n🔴 Renew domain\n") {
		t.Errorf("Brief = %q, want the old urgent task first", got)
	}
}

func TestBrief_Empty(t *testing.T) {
	d, _ := newDashboard(t)
	if got, _ := d.Brief(context.Background(), "42"); got != "The list is empty." {
		t.Errorf("Brief = %q", got)
	}
}

func TestVault_OnlyIdeas(t *testing.T) {
	d, s := newDashboard(t)
	ctx := context.Background()
	entries := []storage.LogEntry{
		{ID: "l-1", TenantID: "42", EntryType: "IDEAS", Content: "ops podcast", CreatedAt: base},
		{ID: "l-2", TenantID: "42", EntryType: "NOTE", Content: "met Ana", CreatedAt: base},
		{ID: "l-3", TenantID: "42", EntryType: "BIG_IDEAS", Content: "pulse for teams", CreatedAt: base.Add(time.Hour)},
		{ID: "l-4", TenantID: "7", EntryType: "IDEAS", Content: "other tenant", CreatedAt: base},
	}
	for _, e := range entries {
		if _, err := s.InsertLog(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := d.Vault(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "💡 *03/02/2026:* pulse for teams\n\n💡 *03/02/2026:* ops podcast") {
		t.Errorf("Vault = %q", got)
	}
	if strings.Contains(got, "met Ana") || strings.Contains(got, "other tenant") {
		t.Errorf("Vault leaked entries: %q", got)
	}
}

func TestVault_Empty(t *testing.T) {
	d, _ := newDashboard(t)
	if got, _ := d.Vault(context.Background(), "42"); got != "The Vault is empty." {
		t.Errorf("Vault = %q", got)
	}
}

func TestPeople(t *testing.T) {
	d, s := newDashboard(t)
	ctx := context.Background()
	s.InsertPerson(ctx, storage.Person{ID: "p-1", TenantID: "42", Name: "Ana", Role: "Investor", StrategicWeight: 9})
	s.InsertPerson(ctx, storage.Person{ID: "p-2", TenantID: "42", Name: "Raj", StrategicWeight: 4})

	got, err := d.People(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	want := "👥 *STAKEHOLDERS:*\n\n• Ana (Investor)\n• Raj (Unknown)"
	if got != want {
		t.Errorf("People = %q, want %q", got, want)
	}
}

func TestMainGoal(t *testing.T) {
	d, s := newDashboard(t)
	ctx := context.Background()
	if err := s.SeedTenantConfig(ctx, "42", tenant.KeyGoal, "Close the seed round", base); err != nil {
		t.Fatal(err)
	}
	got, err := d.MainGoal(ctx, "42")
	if err != nil {
		t.Fatal(err)
	}
	if got != "🧭 *CURRENT MAIN GOAL:*\n\nClose the seed round" {
		t.Errorf("MainGoal = %q", got)
	}

	if _, err := d.MainGoal(ctx, "ghost"); err == nil {
		t.Error("expected error for unknown tenant")
	}
}

func TestParseView(t *testing.T) {
	tests := []struct {
		in   string
		want View
		ok   bool
	}{
		{"urgent", ViewUrgent, true},
		{" Brief ", ViewBrief, true},
		{"main-goal", ViewMainGoal, true},
		{"main_goal", ViewMainGoal, true},
		{"settings", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseView(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseView(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRender_Unknown(t *testing.T) {
	d, _ := newDashboard(t)
	if _, err := d.Render(context.Background(), "42", View("settings")); err == nil {
		t.Error("expected error for unknown view")
	}
}
