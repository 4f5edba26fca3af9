// Package aggregate gathers one tenant's notes, tasks, projects and people
// into the bundle handed to reconciliation.
package aggregate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kalambet/pulse/internal/schedule"
	"github.com/kalambet/pulse/internal/storage"
	"github.com/kalambet/pulse/internal/tenant"
)

// Store defines the read operations the Aggregator needs.
// Implemented by storage.Store.
type Store interface {
	ListUnprocessedDumps(ctx context.Context, tenantID string) ([]storage.RawDump, error)
	ListOpenTasks(ctx context.Context, tenantID string) ([]storage.Task, error)
	ListProjects(ctx context.Context, tenantID string) ([]storage.Project, error)
	ListPeople(ctx context.Context, tenantID string) ([]storage.Person, error)
}

// TaskView is an open task with its resolved routing.
type TaskView struct {
	storage.Task
	Tag         string
	ProjectName string
}

// Bundle is the aggregated context for one cycle.
type Bundle struct {
	Profile tenant.Profile
	Local   time.Time
	Weekend bool
	Phase   string

	// Dumps are exactly the notes read in this cycle.
	Dumps     []storage.RawDump
	OpenCount int
	Tasks     []TaskView // after the situational filter
	Stagnant  []TaskView
	Projects  []storage.Project
	People    []storage.Person
	Summary   string
	// OpenIndex lists every open task as "id:xyz Title", ignoring the
	// situational filter, so completions can match tasks not on the brief.
	OpenIndex string
	Tags      []string
}

// Empty reports the nothing-to-do case: no pending notes and no open tasks.
func (b Bundle) Empty() bool {
	return len(b.Dumps) == 0 && b.OpenCount == 0
}

// DumpIDs returns the ids of the notes read in this cycle.
func (b Bundle) DumpIDs() []string {
	ids := make([]string, len(b.Dumps))
	for i, d := range b.Dumps {
		ids[i] = d.ID
	}
	return ids
}

// IndexMaxChars bounds Bundle.OpenIndex.
const IndexMaxChars = 8000

type Aggregator struct {
	store   Store
	routing Routing
}

func New(store Store, routing Routing) *Aggregator {
	if routing.SummaryMaxChars <= 0 {
		routing.SummaryMaxChars = DefaultRouting().SummaryMaxChars
	}
	return &Aggregator{store: store, routing: routing}
}

// Aggregate loads the tenant's state. When there are neither pending notes
// nor open tasks it returns an Empty bundle without loading anything else.
func (a *Aggregator) Aggregate(ctx context.Context, p tenant.Profile, d schedule.Decision) (Bundle, error) {
	b := Bundle{
		Profile: p,
		Local:   d.Local,
		Weekend: d.Weekend,
		Phase:   Phase(d.Local, d.Weekend),
	}

	dumps, err := a.store.ListUnprocessedDumps(ctx, p.ID)
	if err != nil {
		return Bundle{}, fmt.Errorf("loading notes: %w", err)
	}
	open, err := a.store.ListOpenTasks(ctx, p.ID)
	if err != nil {
		return Bundle{}, fmt.Errorf("loading open tasks: %w", err)
	}
	b.Dumps = dumps
	b.OpenCount = len(open)
	if b.Empty() {
		return b, nil
	}

	if b.Projects, err = a.store.ListProjects(ctx, p.ID); err != nil {
		return Bundle{}, fmt.Errorf("loading projects: %w", err)
	}
	if b.People, err = a.store.ListPeople(ctx, p.ID); err != nil {
		return Bundle{}, fmt.Errorf("loading people: %w", err)
	}
	b.Tags = a.routing.AllowedTags(b.Projects)

	byID := make(map[string]storage.Project, len(b.Projects))
	for _, pr := range b.Projects {
		byID[pr.ID] = pr
	}

	index := make([]string, 0, len(open))
	for _, t := range open {
		index = append(index, IndexLine(t))
		tv := TaskView{Task: t, Tag: TagInbox}
		if pr, ok := byID[t.ProjectID]; ok {
			tv.ProjectName = pr.Name
			if tag := NormalizeTag(pr.OrgTag); tag != "" {
				tv.Tag = tag
			}
		}
		if !a.routing.Passes(t.Priority, tv.Tag, d.Local, d.Weekend) {
			continue
		}
		b.Tasks = append(b.Tasks, tv)
	}
	sort.SliceStable(b.Tasks, func(i, j int) bool {
		return priorityRank(b.Tasks[i].Priority) < priorityRank(b.Tasks[j].Priority)
	})

	b.Stagnant = Stagnant(b.Tasks, d.Local)
	b.Summary = Summarize(b.Tasks, a.routing.SummaryMaxChars)
	b.OpenIndex = joinBounded(index, IndexMaxChars)
	return b, nil
}

// Stagnant returns the urgent tasks that have been open longer than
// StagnantAfter at now.
func Stagnant(tasks []TaskView, now time.Time) []TaskView {
	var out []TaskView
	for _, t := range tasks {
		if t.Priority == storage.PriorityUrgent && now.Sub(t.CreatedAt) > StagnantAfter {
			out = append(out, t)
		}
	}
	return out
}

// SummaryLine renders one task as "[TAG|Project] Title (priority) id:xyz".
func SummaryLine(t TaskView) string {
	label := t.Tag
	if t.ProjectName != "" {
		label += "|" + t.ProjectName
	}
	return fmt.Sprintf("[%s] %s (%s) id:%s", label, t.Title, t.Priority, t.ID)
}

// IndexLine renders one task as "id:xyz Title".
func IndexLine(t storage.Task) string {
	return fmt.Sprintf("id:%s %s", t.ID, t.Title)
}

// Summarize joins task lines, stopping at a line boundary so the result
// never exceeds maxChars characters. Omitted lines are counted in a
// trailing marker when it fits.
func Summarize(tasks []TaskView, maxChars int) string {
	lines := make([]string, len(tasks))
	for i, t := range tasks {
		lines[i] = SummaryLine(t)
	}
	return joinBounded(lines, maxChars)
}

func joinBounded(lines []string, maxChars int) string {
	var b strings.Builder
	size := 0
	written := 0
	for _, line := range lines {
		n := utf8.RuneCountInString(line)
		if written > 0 {
			n++
		}
		if size+n > maxChars {
			break
		}
		if written > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		size += n
		written++
	}
	if omitted := len(lines) - written; omitted > 0 {
		marker := fmt.Sprintf("(+%d more)", omitted)
		n := utf8.RuneCountInString(marker)
		if written > 0 {
			n++
		}
		if size+n <= maxChars {
			if written > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(marker)
		}
	}
	return b.String()
}

func priorityRank(p string) int {
	switch p {
	case storage.PriorityUrgent:
		return 0
	case storage.PriorityImportant:
		return 1
	}
	return 2
}
