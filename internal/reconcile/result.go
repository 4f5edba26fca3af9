// Package reconcile asks the generative service to reconcile free-form notes
// against a tenant's open tasks and turns its reply into a Result.
package reconcile

import "fmt"

// Result is the canonical reconciliation record applied by persistence.
type Result struct {
	Completed   []Completion
	NewProjects []ProjectProposal
	NewPeople   []PersonProposal
	NewTasks    []TaskProposal
	Logs        []LogProposal
	Briefing    string
	// Fallback is set when the reply could not be used and the result was
	// synthesized locally. A fallback carries no mutations.
	Fallback bool
}

// Completion closes an open task. Status is "done" or "cancelled".
type Completion struct {
	ID     string
	Status string
}

type ProjectProposal struct {
	Name string
	Tag  string
}

type PersonProposal struct {
	Name   string
	Role   string
	Weight int
}

type TaskProposal struct {
	Title       string
	Priority    string
	ProjectName string
}

type LogProposal struct {
	EntryType string
	Content   string
}

// Mutations reports whether r asks for any write besides marking notes.
func (r Result) Mutations() int {
	return len(r.Completed) + len(r.NewProjects) + len(r.NewPeople) + len(r.NewTasks) + len(r.Logs)
}

// Fallback is the deterministic result used when the service fails or its
// reply cannot be parsed. The briefing echoes how many notes are pending.
func Fallback(notes int) Result {
	var msg string
	switch notes {
	case 0:
		msg = "⚠️ Pulse could not be generated this cycle. Your tasks are unchanged."
	case 1:
		msg = "⚠️ Pulse received 1 new note but could not process it this cycle. It will be retried on the next pulse."
	default:
		msg = fmt.Sprintf("⚠️ Pulse received %d new notes but could not process them this cycle. They will be retried on the next pulse.", notes)
	}
	return Result{Briefing: msg, Fallback: true}
}
