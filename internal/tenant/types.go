package tenant

import (
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/pulse/internal/schedule"
)

// Persona is the voice the briefing is written in.
type Persona int

const (
	PersonaCommander Persona = 1
	PersonaArchitect Persona = 2
	PersonaNurturer  Persona = 3
)

type personaInfo struct {
	name      string
	guideline string
}

var personas = map[Persona]personaInfo{
	PersonaCommander: {
		name:      "Commander",
		guideline: "Direct, urgent, and focused on rapid execution (high-intensity chief of staff).",
	},
	PersonaArchitect: {
		name:      "Architect",
		guideline: "Methodical, structured, and focused on engineering systems (logic-oriented).",
	},
	PersonaNurturer: {
		name:      "Nurturer",
		guideline: "Balanced, proactive, and focused on team dynamics and sustainable growth.",
	},
}

func (p Persona) String() string {
	if info, ok := personas[p]; ok {
		return info.name
	}
	return "persona(" + strconv.Itoa(int(p)) + ")"
}

// Guideline returns the prompt instruction for the persona.
func (p Persona) Guideline() string {
	if info, ok := personas[p]; ok {
		return info.name + ": " + info.guideline
	}
	return PersonaCommander.Guideline()
}

// ParsePersona accepts the stored digit or the persona name, case-insensitive.
// Unknown values fall back to PersonaCommander.
func ParsePersona(s string) Persona {
	if p, ok := lookupPersona(s); ok {
		return p
	}
	return PersonaCommander
}

func lookupPersona(s string) (Persona, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		_, ok := personas[Persona(n)]
		return Persona(n), ok
	}
	for p, info := range personas {
		if strings.EqualFold(info.name, s) {
			return p, true
		}
	}
	return 0, false
}

// Config keys written by onboarding.
const (
	KeyPersona  = "identity"
	KeyTier     = "pulse_schedule"
	KeyOffset   = "timezone_offset"
	KeyGoal     = "current_season"
	KeyUserName = "user_name"
	KeyChatID   = "chat_id"
)

const (
	DefaultOffsetHours = 5.5
	DefaultUserName    = "Leader"
	DefaultGoal        = "No Goal Set"
)

// Profile is the typed view of a tenant's configuration rows.
type Profile struct {
	ID          string
	Persona     Persona
	Tier        schedule.Tier
	OffsetHours float64
	Goal        string
	UserName    string
	// ChatID is the messaging endpoint; it defaults to the tenant id.
	ChatID string
	// TrialStart is the creation time of the tenant's oldest config row.
	TrialStart time.Time
}
