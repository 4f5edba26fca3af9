// Package persist applies a reconciliation result to the data store.
// Every write is scoped by tenant id and safe to apply more than once.
package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/kalambet/pulse/internal/aggregate"
	"github.com/kalambet/pulse/internal/idgen"
	"github.com/kalambet/pulse/internal/reconcile"
	"github.com/kalambet/pulse/internal/storage"
)

// Store defines the operations the Writer needs. Implemented by storage.Store.
type Store interface {
	ListProjects(ctx context.Context, tenantID string) ([]storage.Project, error)
	ListPeople(ctx context.Context, tenantID string) ([]storage.Person, error)
	ListOpenTasks(ctx context.Context, tenantID string) ([]storage.Task, error)
	InsertProject(ctx context.Context, p storage.Project) error
	InsertPerson(ctx context.Context, p storage.Person) error
	InsertTask(ctx context.Context, t storage.Task) error
	CloseTask(ctx context.Context, tenantID, id, status string, at time.Time) (bool, error)
	InsertLog(ctx context.Context, l storage.LogEntry) (bool, error)
	MarkDumpsProcessed(ctx context.Context, tenantID string, ids []string) (int64, error)
}

// Report counts what one Apply changed.
type Report struct {
	ProjectsCreated int
	ProjectsSkipped int
	PeopleCreated   int
	PeopleSkipped   int
	TasksClosed     int
	TasksCreated    int
	TasksSkipped    int
	LogsWritten     int
	DumpsMarked     int64
	// DumpsDeferred is set when a write failed and the notes were left
	// pending for the next cycle.
	DumpsDeferred bool
	// ItemErrors holds the failures of individual writes. Sibling writes
	// still ran.
	ItemErrors error
}

type Writer struct {
	store   Store
	routing aggregate.Routing
	now     func() time.Time
}

func New(store Store, routing aggregate.Routing) *Writer {
	return &Writer{store: store, routing: routing, now: func() time.Time { return time.Now().UTC() }}
}

// Apply writes res for tenantID and marks consumedDumpIDs processed. A
// fallback result, or one with any failed write, marks nothing, so its notes
// are retried next cycle. Replaying the surviving writes is a no-op.
// The returned error covers loading the tenant's current state; failures of
// single items are joined into Report.ItemErrors.
func (w *Writer) Apply(ctx context.Context, tenantID string, res reconcile.Result, consumedDumpIDs []string) (Report, error) {
	var rep Report
	var errs []error

	projects, err := w.store.ListProjects(ctx, tenantID)
	if err != nil {
		return rep, fmt.Errorf("loading projects: %w", err)
	}
	allowed := w.routing.AllowedTags(projects)

	for _, p := range res.NewProjects {
		if _, ok := findProject(projects, p.Name); ok {
			rep.ProjectsSkipped++
			continue
		}
		tag := aggregate.NormalizeTag(p.Tag)
		if !slices.Contains(allowed, tag) {
			tag = aggregate.TagInbox
		}
		pr := storage.Project{TenantID: tenantID, Name: p.Name, OrgTag: tag, CreatedAt: w.now()}
		if pr.ID, err = idgen.GenerateWithPrefix(idgen.PrefixProject); err == nil {
			err = w.store.InsertProject(ctx, pr)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		projects = append(projects, pr)
		rep.ProjectsCreated++
	}

	if len(res.NewPeople) > 0 {
		people, err := w.store.ListPeople(ctx, tenantID)
		if err != nil {
			errs = append(errs, fmt.Errorf("loading people: %w", err))
		} else {
			for _, p := range res.NewPeople {
				if slices.ContainsFunc(people, func(e storage.Person) bool { return strings.EqualFold(e.Name, p.Name) }) {
					rep.PeopleSkipped++
					continue
				}
				person := storage.Person{TenantID: tenantID, Name: p.Name, Role: p.Role, StrategicWeight: p.Weight, CreatedAt: w.now()}
				if person.ID, err = idgen.GenerateWithPrefix(idgen.PrefixPerson); err == nil {
					err = w.store.InsertPerson(ctx, person)
				}
				if err != nil {
					errs = append(errs, err)
					continue
				}
				people = append(people, person)
				rep.PeopleCreated++
			}
		}
	}

	for _, c := range res.Completed {
		changed, err := w.store.CloseTask(ctx, tenantID, c.ID, c.Status, w.now())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if changed {
			rep.TasksClosed++
		}
	}

	if len(res.NewTasks) > 0 {
		open, err := w.store.ListOpenTasks(ctx, tenantID)
		if err != nil {
			errs = append(errs, fmt.Errorf("loading open tasks: %w", err))
		} else {
			for _, t := range res.NewTasks {
				if slices.ContainsFunc(open, func(e storage.Task) bool { return strings.EqualFold(e.Title, t.Title) }) {
					rep.TasksSkipped++
					continue
				}
				task := storage.Task{
					TenantID:  tenantID,
					ProjectID: routeProject(projects, t.ProjectName),
					Title:     t.Title,
					Priority:  t.Priority,
					Status:    storage.StatusTodo,
					CreatedAt: w.now(),
				}
				if task.Priority == "" {
					task.Priority = storage.PriorityImportant
				}
				if task.ID, err = idgen.GenerateWithPrefix(idgen.PrefixTask); err == nil {
					err = w.store.InsertTask(ctx, task)
				}
				if err != nil {
					errs = append(errs, err)
					continue
				}
				open = append(open, task)
				rep.TasksCreated++
			}
		}
	}

	for _, l := range res.Logs {
		entry := storage.LogEntry{TenantID: tenantID, EntryType: l.EntryType, Content: l.Content, CreatedAt: w.now()}
		var written bool
		if entry.ID, err = idgen.GenerateWithPrefix(idgen.PrefixLog); err == nil {
			written, err = w.store.InsertLog(ctx, entry)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if written {
			rep.LogsWritten++
		}
	}

	switch {
	case res.Fallback || len(consumedDumpIDs) == 0:
	case len(errs) > 0:
		rep.DumpsDeferred = true
		slog.Warn("notes left pending after failed writes", "tenant", tenantID, "dumps", len(consumedDumpIDs))
	default:
		n, err := w.store.MarkDumpsProcessed(ctx, tenantID, consumedDumpIDs)
		if err != nil {
			errs = append(errs, err)
		}
		rep.DumpsMarked = n
	}

	rep.ItemErrors = errors.Join(errs...)
	if rep.ItemErrors != nil {
		slog.Warn("some reconciliation writes failed", "tenant", tenantID, "error", rep.ItemErrors)
	}
	return rep, nil
}

// findProject matches name against existing projects, case-insensitively:
// an exact match first, then containment in either direction.
func findProject(projects []storage.Project, name string) (storage.Project, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return storage.Project{}, false
	}
	for _, p := range projects {
		if strings.ToLower(p.Name) == n {
			return p, true
		}
	}
	for _, p := range projects {
		e := strings.ToLower(p.Name)
		if e != "" && (strings.Contains(e, n) || strings.Contains(n, e)) {
			return p, true
		}
	}
	return storage.Project{}, false
}

// routeProject picks the project id for a new task: a name match, else the
// INBOX project, else the first project. It is empty when the tenant has no
// projects.
func routeProject(projects []storage.Project, name string) string {
	if p, ok := findProject(projects, name); ok {
		return p.ID
	}
	for _, p := range projects {
		if aggregate.NormalizeTag(p.OrgTag) == aggregate.TagInbox {
			return p.ID
		}
	}
	if len(projects) > 0 {
		return projects[0].ID
	}
	return ""
}
