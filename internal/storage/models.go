package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

const (
	PriorityUrgent    = "urgent"
	PriorityImportant = "important"
	PriorityChore     = "chore"

	StatusTodo      = "todo"
	StatusDone      = "done"
	StatusCancelled = "cancelled"
)

// ConfigEntry is one key of a tenant's onboarding configuration.
type ConfigEntry struct {
	TenantID  string
	Key       string
	Content   string
	CreatedAt time.Time
}

type Project struct {
	ID        string
	TenantID  string
	Name      string
	OrgTag    string
	Status    string
	CreatedAt time.Time
}

type Person struct {
	ID              string
	TenantID        string
	Name            string
	Role            string
	StrategicWeight int
	CreatedAt       time.Time
}

type Task struct {
	ID        string
	TenantID  string
	ProjectID string // empty when the task has no project
	Title     string
	Priority  string
	Status    string
	CreatedAt time.Time
	// CompletedAt is zero while the task is open.
	CompletedAt time.Time
}

// RawDump is a free-form note awaiting reconciliation.
type RawDump struct {
	ID        string
	TenantID  string
	Content   string
	Processed bool
	CreatedAt time.Time
}

type LogEntry struct {
	ID        string
	TenantID  string
	EntryType string
	Content   string
	CreatedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
