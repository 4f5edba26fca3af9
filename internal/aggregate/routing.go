package aggregate

import (
	"slices"
	"strings"
	"time"

	"github.com/kalambet/pulse/internal/storage"
)

// TagInbox is the routing tag of unrouted work. It is always part of the
// allowed tag set.
const TagInbox = "INBOX"

// StagnantAfter is how long an urgent task may stay open before it is
// called out as stagnant.
const StagnantAfter = 48 * time.Hour

// Routing partitions routing tags into work and personal classes and bounds
// the compressed summary.
type Routing struct {
	WorkTags        []string
	PersonalTags    []string
	BusinessStart   int
	BusinessEnd     int
	SummaryMaxChars int
}

func DefaultRouting() Routing {
	return Routing{
		WorkTags:        []string{"WORK", TagInbox},
		PersonalTags:    []string{"HOME", "IDEAS", TagInbox},
		BusinessStart:   9,
		BusinessEnd:     18,
		SummaryMaxChars: 3000,
	}
}

// Passes reports whether a task with the given priority and tag belongs in
// the briefing at local time. Urgent tasks always pass. Weekends and weekday
// evenings show personal-class tags; weekday business hours show work-class tags.
func (r Routing) Passes(priority, tag string, local time.Time, weekend bool) bool {
	if priority == storage.PriorityUrgent {
		return true
	}
	if weekend {
		return hasTag(r.PersonalTags, tag)
	}
	if h := local.Hour(); h >= r.BusinessStart && h < r.BusinessEnd {
		return hasTag(r.WorkTags, tag)
	}
	return hasTag(r.PersonalTags, tag)
}

// AllowedTags returns the closed tag set: INBOX, every configured class tag
// and any tag already used by the tenant's projects.
func (r Routing) AllowedTags(projects []storage.Project) []string {
	tags := []string{TagInbox}
	add := func(t string) {
		t = NormalizeTag(t)
		if t != "" && !slices.Contains(tags, t) {
			tags = append(tags, t)
		}
	}
	for _, t := range r.WorkTags {
		add(t)
	}
	for _, t := range r.PersonalTags {
		add(t)
	}
	for _, p := range projects {
		add(p.OrgTag)
	}
	return tags
}

func NormalizeTag(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func hasTag(set []string, tag string) bool {
	tag = NormalizeTag(tag)
	for _, t := range set {
		if NormalizeTag(t) == tag {
			return true
		}
	}
	return false
}

// Phase returns the briefing headline for the tenant's local time.
func Phase(local time.Time, weekend bool) string {
	switch {
	case weekend:
		return "⚪ WEEKEND REVIEW & IDEAS"
	case local.Hour() < 12:
		return "🔴 MORNING URGENCY"
	default:
		return "🟡 AFTERNOON MOMENTUM"
	}
}
