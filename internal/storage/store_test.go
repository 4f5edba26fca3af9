package storage

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(v1) == 0 || len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	for _, idx := range []string{"idx_tasks_tenant_status", "idx_raw_dumps_pending", "idx_logs_dedupe", "idx_jobs_claim"} {
		var count int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count); err != nil {
			t.Fatalf("querying index %s: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %s not found", idx)
		}
	}
}

func TestListTenantIDs_OnlyOnboarded(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustSetConfig(t, s, "t2", "current_season", "Ship v2")
	mustSetConfig(t, s, "t1", "current_season", "Raise seed")
	mustSetConfig(t, s, "t1", "identity", "1")
	mustSetConfig(t, s, "t3", "identity", "2") // onboarding incomplete

	ids, err := s.ListTenantIDs(ctx)
	if err != nil {
		t.Fatalf("ListTenantIDs: %v", err)
	}
	if len(ids) != 2 || ids[0] != "t1" || ids[1] != "t2" {
		t.Errorf("ids = %v, want [t1 t2]", ids)
	}
}

func TestSetTenantConfig_KeepsCreatedAt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	anchor := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := s.SeedTenantConfig(ctx, "t1", "current_season", "old", anchor); err != nil {
		t.Fatalf("SeedTenantConfig: %v", err)
	}
	mustSetConfig(t, s, "t1", "current_season", "new")

	entries, err := s.GetTenantConfig(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTenantConfig: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Content != "new" {
		t.Errorf("Content = %q, want new", entries[0].Content)
	}
	if !entries[0].CreatedAt.Equal(anchor) {
		t.Errorf("CreatedAt = %v, want %v", entries[0].CreatedAt, anchor)
	}
}

func TestTenantIsolation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustInsertProject(t, s, Project{ID: "p-a", TenantID: "a", Name: "Alpha", OrgTag: "WORK"})
	mustInsertTask(t, s, Task{ID: "t-a", TenantID: "a", Title: "alpha task"})
	if err := s.InsertDump(ctx, RawDump{ID: "d-a", TenantID: "a", Content: "note"}); err != nil {
		t.Fatalf("InsertDump: %v", err)
	}

	projects, _ := s.ListProjects(ctx, "b")
	tasks, _ := s.ListOpenTasks(ctx, "b")
	dumps, _ := s.ListUnprocessedDumps(ctx, "b")
	if len(projects)+len(tasks)+len(dumps) != 0 {
		t.Errorf("tenant b sees tenant a rows: %d projects, %d tasks, %d dumps", len(projects), len(tasks), len(dumps))
	}

	changed, err := s.CloseTask(ctx, "b", "t-a", StatusDone, time.Now())
	if err != nil {
		t.Fatalf("CloseTask: %v", err)
	}
	if changed {
		t.Error("tenant b closed tenant a's task")
	}
	n, err := s.MarkDumpsProcessed(ctx, "b", []string{"d-a"})
	if err != nil {
		t.Fatalf("MarkDumpsProcessed: %v", err)
	}
	if n != 0 {
		t.Errorf("tenant b marked %d of tenant a's dumps", n)
	}
}

func TestCloseTask_Monotonic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustInsertTask(t, s, Task{ID: "t1", TenantID: "a", Title: "call bank"})

	changed, err := s.CloseTask(ctx, "a", "t1", StatusDone, time.Now())
	if err != nil || !changed {
		t.Fatalf("first CloseTask: changed=%v err=%v", changed, err)
	}
	changed, err = s.CloseTask(ctx, "a", "t1", StatusCancelled, time.Now())
	if err != nil {
		t.Fatalf("second CloseTask: %v", err)
	}
	if changed {
		t.Error("terminal task changed status a second time")
	}
	if _, err := s.CloseTask(ctx, "a", "t1", StatusTodo, time.Now()); err == nil {
		t.Error("CloseTask accepted todo as a terminal status")
	}

	got, err := s.GetTask(ctx, "a", "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Status != StatusDone {
		t.Errorf("Status = %q, want done", got.Status)
	}
	if got.CompletedAt.IsZero() {
		t.Error("CompletedAt not set")
	}

	open, _ := s.ListOpenTasks(ctx, "a")
	if len(open) != 0 {
		t.Errorf("open tasks = %d, want 0", len(open))
	}
}

func TestListTodo_UrgentBeyondNewestRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mustInsertTask(t, s, Task{ID: "u-old", TenantID: "a", Title: "old fire", Priority: PriorityUrgent, CreatedAt: base.Add(-60 * 24 * time.Hour)})
	mustInsertTask(t, s, Task{ID: "u-new", TenantID: "a", Title: "new fire", Priority: PriorityUrgent, CreatedAt: base.Add(-time.Hour)})
	mustInsertTask(t, s, Task{ID: "u-done", TenantID: "a", Title: "put out", Priority: PriorityUrgent, CreatedAt: base.Add(-90 * 24 * time.Hour)})
	if _, err := s.CloseTask(ctx, "a", "u-done", StatusDone, base); err != nil {
		t.Fatal(err)
	}
	for i := range 120 {
		mustInsertTask(t, s, Task{ID: fmt.Sprintf("c-%03d", i), TenantID: "a", Title: "chore", Priority: PriorityChore, CreatedAt: base.Add(-time.Duration(i) * time.Minute)})
	}

	oldest, err := s.ListTodoByPriority(ctx, "a", PriorityUrgent, 1)
	if err != nil {
		t.Fatalf("ListTodoByPriority: %v", err)
	}
	if len(oldest) != 1 || oldest[0].ID != "u-old" {
		t.Errorf("oldest urgent = %+v, want u-old", oldest)
	}

	top, err := s.ListTodoUrgentFirst(ctx, "a", 3)
	if err != nil {
		t.Fatalf("ListTodoUrgentFirst: %v", err)
	}
	var got []string
	for _, task := range top {
		got = append(got, task.ID)
	}
	if fmt.Sprint(got) != "[u-new u-old c-000]" {
		t.Errorf("urgent first = %v, want [u-new u-old c-000]", got)
	}
}

func TestInsertTask_Defaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	mustInsertTask(t, s, Task{ID: "t1", TenantID: "a", Title: "no project"})

	got, err := s.GetTask(ctx, "a", "t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if got.Priority != PriorityImportant || got.Status != StatusTodo || got.ProjectID != "" {
		t.Errorf("got priority=%q status=%q project=%q", got.Priority, got.Status, got.ProjectID)
	}
	if _, err := s.GetTask(ctx, "a", "missing"); err != ErrNotFound {
		t.Errorf("GetTask(missing) = %v, want ErrNotFound", err)
	}
}

func TestMarkDumpsProcessed_ExactlyOnce(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		if err := s.InsertDump(ctx, RawDump{ID: fmt.Sprintf("d%d", i), TenantID: "a", Content: "note"}); err != nil {
			t.Fatalf("InsertDump: %v", err)
		}
	}

	n, err := s.MarkDumpsProcessed(ctx, "a", []string{"d1", "d2"})
	if err != nil {
		t.Fatalf("MarkDumpsProcessed: %v", err)
	}
	if n != 2 {
		t.Errorf("changed = %d, want 2", n)
	}
	n, _ = s.MarkDumpsProcessed(ctx, "a", []string{"d1", "d2"})
	if n != 0 {
		t.Errorf("second mark changed %d rows, want 0", n)
	}

	left, _ := s.ListUnprocessedDumps(ctx, "a")
	if len(left) != 1 || left[0].ID != "d3" {
		t.Errorf("unprocessed = %+v, want only d3", left)
	}
}

func TestInsertLog_Dedupes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entry := LogEntry{ID: "l1", TenantID: "a", EntryType: "IDEAS", Content: "podcast about ops"}
	wrote, err := s.InsertLog(ctx, entry)
	if err != nil || !wrote {
		t.Fatalf("first InsertLog: wrote=%v err=%v", wrote, err)
	}
	entry.ID = "l2"
	wrote, err = s.InsertLog(ctx, entry)
	if err != nil {
		t.Fatalf("second InsertLog: %v", err)
	}
	if wrote {
		t.Error("duplicate log entry was written")
	}

	if _, err := s.InsertLog(ctx, LogEntry{ID: "l3", TenantID: "a", EntryType: "DECISION", Content: "hire"}); err != nil {
		t.Fatalf("InsertLog: %v", err)
	}

	ideas, err := s.ListLogs(ctx, "a", "ideas", 5)
	if err != nil {
		t.Fatalf("ListLogs: %v", err)
	}
	if len(ideas) != 1 || ideas[0].Content != "podcast about ops" {
		t.Errorf("ideas = %+v", ideas)
	}
	all, _ := s.ListLogs(ctx, "a", "", 5)
	if len(all) != 2 {
		t.Errorf("all logs = %d, want 2", len(all))
	}
}

func TestListPeople_ByWeight(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, p := range []Person{
		{ID: "h1", TenantID: "a", Name: "Ravi", Role: "CTO", StrategicWeight: 5},
		{ID: "h2", TenantID: "a", Name: "Meera", Role: "Investor", StrategicWeight: 9},
	} {
		if err := s.InsertPerson(ctx, p); err != nil {
			t.Fatalf("InsertPerson: %v", err)
		}
	}
	people, err := s.ListPeople(ctx, "a")
	if err != nil {
		t.Fatalf("ListPeople: %v", err)
	}
	if len(people) != 2 || people[0].Name != "Meera" {
		t.Errorf("people = %+v, want Meera first", people)
	}
}

func mustSetConfig(t *testing.T, s *Store, tenantID, key, content string) {
	t.Helper()
	if err := s.SetTenantConfig(context.Background(), tenantID, key, content); err != nil {
		t.Fatalf("SetTenantConfig(%s, %s): %v", tenantID, key, err)
	}
}

func mustInsertProject(t *testing.T, s *Store, p Project) {
	t.Helper()
	if err := s.InsertProject(context.Background(), p); err != nil {
		t.Fatalf("InsertProject: %v", err)
	}
}

func mustInsertTask(t *testing.T, s *Store, task Task) {
	t.Helper()
	if err := s.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("InsertTask: %v", err)
	}
}
