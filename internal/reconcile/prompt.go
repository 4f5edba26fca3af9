package reconcile

import (
	"fmt"
	"strings"

	"github.com/kalambet/pulse/internal/aggregate"
)

const instructions = `INSTRUCTIONS:
1. Address %[1]s personally in the briefing.
2. Use exactly "%[2]s" as the header of the briefing.
3. Write the briefing strictly in the voice of the PERSONA. Keep it professional, direct and ROI-focused, in high-density scannable Markdown with no long paragraphs.
4. MARKDOWN SAFETY: use ONLY single asterisks (*) for bold, never underscores (_), no nested formatting, and close every asterisk you open.
5. Structure: header, a personal greeting with a progress tracker, one or two sharp sentences from the persona, then categorized lists (Work, Home, Ideas). Mark items 🔴 urgent, 🟡 important, ⚪ chore or idea.
6. Call out every STAGNANT URGENT task.
7. Prioritize tasks that involve KEY PEOPLE according to their role and weight.
8. NEVER show task ids in the briefing.
9. COMPLETION MATCHING: if the new inputs say a task was finished, dropped or is no longer needed (any wording or tense, not only literal ids), add {"id": "<id from ALL OPEN TASKS>", "status": "done"} or "cancelled" to completed_tasks. Match against ALL OPEN TASKS, not only ACTIVE TASKS, and only use ids listed there.
10. Turn actionable new inputs into new_tasks. Set project_name to an existing project when one fits. Priority is one of urgent, important, chore.
11. Propose new_projects and new_people only for entities not already listed. A new project's tag must be one of ALLOWED TAGS.
12. Record ideas, decisions and reflections from the inputs in logs with a type such as IDEAS, DECISION or NOTE.`

const outputShape = `OUTPUT: a single JSON object and nothing else:
{
  "completed_tasks": [{"id": "", "status": "done"}],
  "new_projects": [{"name": "", "tag": ""}],
  "new_people": [{"name": "", "role": "", "weight": 1}],
  "new_tasks": [{"title": "", "priority": "urgent/important/chore", "project_name": ""}],
  "logs": [{"type": "", "content": ""}],
  "briefing": "The formatted Markdown string for Telegram."
}`

// BuildPrompt renders the reconciliation request for one bundle.
func BuildPrompt(b aggregate.Bundle) string {
	p := b.Profile
	var sb strings.Builder

	fmt.Fprintf(&sb, "ROLE: Digital 2iC / Chief of Staff for %s.\n", p.UserName)
	fmt.Fprintf(&sb, "STRATEGIC NORTH STAR: %s\n", p.Goal)
	fmt.Fprintf(&sb, "CURRENT PHASE: %s\n", b.Phase)
	fmt.Fprintf(&sb, "PERSONA: %s\n", p.Persona.Guideline())
	if !b.Local.IsZero() {
		fmt.Fprintf(&sb, "LOCAL TIME: %s\n", b.Local.Format("Monday 2006-01-02 15:04"))
	}

	sb.WriteString("\nUSER DATA:\n")
	sb.WriteString("- PROJECTS:\n")
	if len(b.Projects) == 0 {
		sb.WriteString("  None\n")
	}
	for _, pr := range b.Projects {
		tag := aggregate.NormalizeTag(pr.OrgTag)
		if tag == "" {
			tag = aggregate.TagInbox
		}
		fmt.Fprintf(&sb, "  [%s] %s\n", tag, pr.Name)
	}

	sb.WriteString("- KEY PEOPLE:\n")
	if len(b.People) == 0 {
		sb.WriteString("  None\n")
	}
	for _, person := range b.People {
		role := person.Role
		if role == "" {
			role = "unknown role"
		}
		fmt.Fprintf(&sb, "  %s (%s, weight %d)\n", person.Name, role, person.StrategicWeight)
	}

	fmt.Fprintf(&sb, "- ALLOWED TAGS: %s\n", strings.Join(b.Tags, ", "))

	sb.WriteString("- ACTIVE TASKS:\n")
	if b.Summary == "" {
		sb.WriteString("  None\n")
	} else {
		for _, line := range strings.Split(b.Summary, "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}

	sb.WriteString("- ALL OPEN TASKS (for completion matching only):\n")
	if b.OpenIndex == "" {
		sb.WriteString("  None\n")
	} else {
		for _, line := range strings.Split(b.OpenIndex, "\n") {
			sb.WriteString("  " + line + "\n")
		}
	}

	if len(b.Stagnant) > 0 {
		sb.WriteString("- STAGNANT URGENT (open more than 48h):\n")
		for _, t := range b.Stagnant {
			fmt.Fprintf(&sb, "  %s (since %s) id:%s\n", t.Title, t.CreatedAt.Format("2006-01-02"), t.ID)
		}
	}

	sb.WriteString("- NEW RAW INPUTS:\n")
	if len(b.Dumps) == 0 {
		sb.WriteString("None\n")
	} else {
		notes := make([]string, len(b.Dumps))
		for i, d := range b.Dumps {
			notes[i] = strings.TrimSpace(d.Content)
		}
		sb.WriteString(strings.Join(notes, "\n---\n"))
		sb.WriteByte('\n')
	}

	sb.WriteByte('\n')
	fmt.Fprintf(&sb, instructions, p.UserName, b.Phase)
	sb.WriteString("\n\n")
	sb.WriteString(outputShape)
	return sb.String()
}
