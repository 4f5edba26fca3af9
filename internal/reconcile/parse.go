package reconcile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/kalambet/pulse/internal/storage"
)

// ErrNoObject is returned when the reply holds no JSON object at all.
var ErrNoObject = errors.New("reply contains no JSON object")

type wireReply struct {
	CompletedTasks   json.RawMessage `json:"completed_tasks"`
	CompletedTaskIDs json.RawMessage `json:"completed_task_ids"`
	NewProjects      json.RawMessage `json:"new_projects"`
	NewPeople        json.RawMessage `json:"new_people"`
	NewTasks         json.RawMessage `json:"new_tasks"`
	Logs             json.RawMessage `json:"logs"`
	Briefing         json.RawMessage `json:"briefing"`
}

// Parse repairs and decodes a generative reply. Fenced output, trailing
// commas, empty values and prose around the object are tolerated. Entries
// that cannot be used are dropped rather than failing the whole reply.
func Parse(raw string) (Result, error) {
	obj, ok := repair(raw)
	if !ok {
		return Result{}, ErrNoObject
	}
	var w wireReply
	if err := json.Unmarshal([]byte(obj), &w); err != nil {
		return Result{}, fmt.Errorf("decoding reply: %w", err)
	}

	var r Result
	r.Briefing = strings.TrimSpace(asString(w.Briefing))
	for _, it := range items(w.CompletedTasks) {
		if c, ok := decodeCompletion(it); ok {
			r.Completed = append(r.Completed, c)
		}
	}
	for _, it := range items(w.CompletedTaskIDs) {
		if c, ok := decodeCompletion(it); ok {
			r.Completed = append(r.Completed, c)
		}
	}
	for _, it := range items(w.NewProjects) {
		if p, ok := decodeProject(it); ok {
			r.NewProjects = append(r.NewProjects, p)
		}
	}
	for _, it := range items(w.NewPeople) {
		if p, ok := decodePerson(it); ok {
			r.NewPeople = append(r.NewPeople, p)
		}
	}
	for _, it := range items(w.NewTasks) {
		if t, ok := decodeTask(it); ok {
			r.NewTasks = append(r.NewTasks, t)
		}
	}
	for _, it := range items(w.Logs) {
		if l, ok := decodeLog(it); ok {
			r.Logs = append(r.Logs, l)
		}
	}
	r.Completed = dedupeCompletions(r.Completed)
	return r, nil
}

// ParseOrFallback never fails: an unusable reply becomes Fallback(notes).
func ParseOrFallback(raw string, notes int) Result {
	r, err := Parse(raw)
	if err != nil {
		slog.Warn("reconciliation reply unusable, using fallback", "error", err, "reply_bytes", len(raw))
		return Fallback(notes)
	}
	return r
}

// items accepts an array, a single value or null.
func items(raw json.RawMessage) []json.RawMessage {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if raw[0] != '[' {
		return []json.RawMessage{raw}
	}
	var out []json.RawMessage
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// asString reads a JSON string or number; anything else is empty.
func asString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// asInt reads a number or numeric string, rounding fractions.
func asInt(raw json.RawMessage) int {
	f, err := strconv.ParseFloat(strings.TrimSpace(asString(raw)), 64)
	if err != nil {
		return 0
	}
	return int(math.Round(f))
}

func isString(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '"'
}

func decodeCompletion(raw json.RawMessage) (Completion, bool) {
	var c Completion
	if isString(raw) || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		c.ID = asString(raw)
	} else {
		var o struct {
			ID     json.RawMessage `json:"id"`
			TaskID json.RawMessage `json:"task_id"`
			Status string          `json:"status"`
		}
		if json.Unmarshal(raw, &o) != nil {
			return Completion{}, false
		}
		c.ID = asString(o.ID)
		if c.ID == "" {
			c.ID = asString(o.TaskID)
		}
		c.Status = o.Status
	}
	c.ID = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c.ID), "id:"))
	c.Status = strings.ToLower(strings.TrimSpace(c.Status))
	if c.Status == "" || c.Status == "completed" {
		c.Status = storage.StatusDone
	}
	if c.ID == "" || (c.Status != storage.StatusDone && c.Status != storage.StatusCancelled) {
		return Completion{}, false
	}
	return c, true
}

func decodeProject(raw json.RawMessage) (ProjectProposal, bool) {
	var p ProjectProposal
	if isString(raw) {
		p.Name = asString(raw)
	} else {
		var o struct {
			Name   string `json:"name"`
			Tag    string `json:"tag"`
			OrgTag string `json:"org_tag"`
		}
		if json.Unmarshal(raw, &o) != nil {
			return ProjectProposal{}, false
		}
		p.Name, p.Tag = o.Name, o.Tag
		if p.Tag == "" {
			p.Tag = o.OrgTag
		}
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Tag = strings.ToUpper(strings.TrimSpace(p.Tag))
	return p, p.Name != ""
}

func decodePerson(raw json.RawMessage) (PersonProposal, bool) {
	var p PersonProposal
	if isString(raw) {
		p.Name = asString(raw)
	} else {
		var o struct {
			Name            string          `json:"name"`
			Role            string          `json:"role"`
			Weight          json.RawMessage `json:"weight"`
			StrategicWeight json.RawMessage `json:"strategic_weight"`
		}
		if json.Unmarshal(raw, &o) != nil {
			return PersonProposal{}, false
		}
		p.Name, p.Role = o.Name, o.Role
		p.Weight = asInt(o.Weight)
		if len(o.StrategicWeight) > 0 {
			p.Weight = asInt(o.StrategicWeight)
		}
	}
	p.Name = strings.TrimSpace(p.Name)
	p.Role = strings.TrimSpace(p.Role)
	return p, p.Name != ""
}

func decodeTask(raw json.RawMessage) (TaskProposal, bool) {
	var t TaskProposal
	if isString(raw) {
		t.Title = asString(raw)
	} else {
		var o struct {
			Title       string `json:"title"`
			Priority    string `json:"priority"`
			ProjectName string `json:"project_name"`
			Project     string `json:"project"`
		}
		if json.Unmarshal(raw, &o) != nil {
			return TaskProposal{}, false
		}
		t.Title, t.Priority, t.ProjectName = o.Title, o.Priority, o.ProjectName
		if t.ProjectName == "" {
			t.ProjectName = o.Project
		}
	}
	t.Title = strings.TrimSpace(t.Title)
	t.ProjectName = strings.TrimSpace(t.ProjectName)
	t.Priority = normalizePriority(t.Priority)
	return t, t.Title != ""
}

func decodeLog(raw json.RawMessage) (LogProposal, bool) {
	var l LogProposal
	if isString(raw) {
		l.Content = asString(raw)
	} else {
		var o struct {
			Type      string `json:"type"`
			EntryType string `json:"entry_type"`
			Content   string `json:"content"`
		}
		if json.Unmarshal(raw, &o) != nil {
			return LogProposal{}, false
		}
		l.EntryType, l.Content = o.Type, o.Content
		if l.EntryType == "" {
			l.EntryType = o.EntryType
		}
	}
	l.Content = strings.TrimSpace(l.Content)
	l.EntryType = strings.ToUpper(strings.TrimSpace(l.EntryType))
	if l.EntryType == "" {
		l.EntryType = "NOTE"
	}
	return l, l.Content != ""
}

// normalizePriority maps the reply's priority onto the closed set,
// defaulting to important.
func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case storage.PriorityUrgent, "high", "critical":
		return storage.PriorityUrgent
	case storage.PriorityChore, "low":
		return storage.PriorityChore
	default:
		return storage.PriorityImportant
	}
}

// dedupeCompletions keeps the first reference to each task id.
func dedupeCompletions(cs []Completion) []Completion {
	seen := make(map[string]bool, len(cs))
	out := cs[:0]
	for _, c := range cs {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
