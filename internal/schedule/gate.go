// Package schedule decides whether a tenant is due for a briefing.
//
// The gate is pure: the same Input always yields the same Decision, and it
// performs no I/O.
package schedule

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// Tier selects one row of the delivery table.
type Tier int

const (
	TierEarly    Tier = 1
	TierStandard Tier = 2
	TierLate     Tier = 3
)

var tierNames = map[Tier]string{
	TierEarly:    "early",
	TierStandard: "standard",
	TierLate:     "late",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "tier(" + strconv.Itoa(int(t)) + ")"
}

// ParseTier accepts the stored digit ("1".."3") or the tier name. Unknown
// values fall back to TierStandard.
func ParseTier(s string) Tier {
	if t, ok := LookupTier(s); ok {
		return t
	}
	return TierStandard
}

// LookupTier matches a tier digit or name, case-insensitively.
func LookupTier(s string) (Tier, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		_, ok := tierNames[Tier(n)]
		return Tier(n), ok
	}
	for t, name := range tierNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// Row lists the local delivery hours of one tier.
type Row struct {
	Tier    Tier
	Weekday []int
	Weekend []int
}

// Table is an ordered list of rows. When several rows name the same tier the
// first one wins.
type Table []Row

// DefaultTable returns the stock delivery hours.
func DefaultTable() Table {
	return Table{
		{Tier: TierEarly, Weekday: []int{6, 10, 14, 18}, Weekend: []int{8, 20}},
		{Tier: TierStandard, Weekday: []int{8, 12, 16, 20}, Weekend: []int{10, 22}},
		{Tier: TierLate, Weekday: []int{10, 14, 18, 22}, Weekend: []int{12, 0}},
	}
}

// Hours returns the delivery hours for a tier and day type. A tier without
// a row has no delivery hours.
func (t Table) Hours(tier Tier, weekend bool) []int {
	for _, row := range t {
		if row.Tier != tier {
			continue
		}
		if weekend {
			return row.Weekend
		}
		return row.Weekday
	}
	return nil
}

type Reason string

const (
	ReasonDue     Reason = "due"
	ReasonManual  Reason = "manual"
	ReasonExpired Reason = "trial_expired"
	ReasonNotDue  Reason = "not_due"
)

type Input struct {
	Now         time.Time
	OffsetHours float64
	Tier        Tier
	Manual      bool
	// TrialStart is the tenant's trial anchor. Zero means no trial applies.
	TrialStart time.Time
}

type Decision struct {
	Proceed bool
	Reason  Reason
	// Local is Now shifted into the tenant's offset.
	Local   time.Time
	Weekend bool
}

type Gate struct {
	Table Table
	// TrialLength of zero disables the trial check.
	TrialLength time.Duration
}

// Decide applies, in order: trial expiry (never overridable), the manual
// override, then the tier's delivery hours for the tenant's local day type.
func (g Gate) Decide(in Input) Decision {
	local := LocalTime(in.Now, in.OffsetHours)
	d := Decision{Local: local, Weekend: IsWeekend(local)}

	if g.expired(in) {
		d.Reason = ReasonExpired
		return d
	}
	if in.Manual {
		d.Proceed = true
		d.Reason = ReasonManual
		return d
	}
	if slices.Contains(g.Table.Hours(in.Tier, d.Weekend), local.Hour()) {
		d.Proceed = true
		d.Reason = ReasonDue
		return d
	}
	d.Reason = ReasonNotDue
	return d
}

func (g Gate) expired(in Input) bool {
	if g.TrialLength <= 0 || in.TrialStart.IsZero() {
		return false
	}
	return in.Now.Sub(in.TrialStart) > g.TrialLength
}

// LocalTime converts now into a fixed zone offsetHours east of UTC.
// Fractional offsets such as 5.5 are honoured.
func LocalTime(now time.Time, offsetHours float64) time.Time {
	secs := int(offsetHours * 3600)
	return now.In(time.FixedZone("", secs))
}

func IsWeekend(local time.Time) bool {
	wd := local.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
