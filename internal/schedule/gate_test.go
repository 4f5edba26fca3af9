package schedule

import (
	"testing"
	"time"
)

// 2026-03-04 is a Wednesday, 2026-03-07 a Saturday.
func utc(day, hour, min int) time.Time {
	return time.Date(2026, 3, day, hour, min, 0, 0, time.UTC)
}

func TestDecide_TierTwoWeekdayScenario(t *testing.T) {
	g := Gate{Table: DefaultTable(), TrialLength: 14 * 24 * time.Hour}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"noon proceeds", utc(4, 12, 0), true},
		{"noon end of hour proceeds", utc(4, 12, 59), true},
		{"one pm skips", utc(4, 13, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Decide(Input{Now: tt.now, OffsetHours: 0, Tier: TierStandard})
			if d.Proceed != tt.want {
				t.Errorf("Proceed = %v, want %v (reason %s)", d.Proceed, tt.want, d.Reason)
			}
			if d.Weekend {
				t.Error("Wednesday reported as weekend")
			}
		})
	}
}

func TestDecide_FractionalOffset(t *testing.T) {
	g := Gate{Table: DefaultTable()}

	// 06:30 UTC + 5.5h = 12:00 local.
	d := g.Decide(Input{Now: utc(4, 6, 30), OffsetHours: 5.5, Tier: TierStandard})
	if !d.Proceed || d.Reason != ReasonDue {
		t.Errorf("got %+v, want due", d)
	}
	if d.Local.Hour() != 12 || d.Local.Minute() != 0 {
		t.Errorf("Local = %v, want 12:00", d.Local)
	}
}

func TestDecide_WeekendUsesLocalDay(t *testing.T) {
	g := Gate{Table: DefaultTable()}

	// Friday 18:45 UTC is Saturday 00:15 at +5.5; tier 3 has a weekend slot at 0.
	d := g.Decide(Input{Now: utc(6, 18, 45), OffsetHours: 5.5, Tier: TierLate})
	if !d.Weekend {
		t.Fatalf("Local %v should be a weekend", d.Local)
	}
	if !d.Proceed {
		t.Errorf("tier 3 weekend at local hour %d: got %+v", d.Local.Hour(), d)
	}

	// Saturday 12:00 local is not a tier 1 weekend slot.
	d = g.Decide(Input{Now: utc(7, 12, 0), Tier: TierEarly})
	if d.Proceed {
		t.Errorf("tier 1 weekend at noon should skip, got %+v", d)
	}
}

func TestDecide_TrialExpiredBeatsManual(t *testing.T) {
	g := Gate{Table: DefaultTable(), TrialLength: 14 * 24 * time.Hour}
	now := utc(20, 12, 0)

	d := g.Decide(Input{
		Now:        now,
		Tier:       TierStandard,
		Manual:     true,
		TrialStart: now.Add(-15 * 24 * time.Hour),
	})
	if d.Proceed {
		t.Fatal("expired trial proceeded with manual override")
	}
	if d.Reason != ReasonExpired {
		t.Errorf("Reason = %s, want %s", d.Reason, ReasonExpired)
	}
}

func TestDecide_TrialBoundary(t *testing.T) {
	g := Gate{Table: DefaultTable(), TrialLength: 14 * 24 * time.Hour}
	now := utc(20, 12, 0)

	d := g.Decide(Input{Now: now, Tier: TierStandard, TrialStart: now.Add(-14 * 24 * time.Hour)})
	if d.Reason == ReasonExpired {
		t.Error("trial exactly at its length should not be expired")
	}
	d = g.Decide(Input{Now: now, Tier: TierStandard, TrialStart: now.Add(-14*24*time.Hour - time.Second)})
	if d.Reason != ReasonExpired {
		t.Errorf("Reason = %s, want expired", d.Reason)
	}
}

func TestDecide_ManualBypassesHours(t *testing.T) {
	g := Gate{Table: DefaultTable(), TrialLength: 14 * 24 * time.Hour}
	now := utc(4, 3, 0)

	d := g.Decide(Input{Now: now, Tier: TierStandard, Manual: true, TrialStart: now.Add(-time.Hour)})
	if !d.Proceed || d.Reason != ReasonManual {
		t.Errorf("got %+v, want manual proceed", d)
	}
}

func TestDecide_NoTrialLimit(t *testing.T) {
	g := Gate{Table: DefaultTable()}
	now := utc(4, 12, 0)
	d := g.Decide(Input{Now: now, Tier: TierStandard, TrialStart: now.AddDate(-1, 0, 0)})
	if !d.Proceed {
		t.Errorf("trial check should be disabled, got %+v", d)
	}
}

func TestDecide_Deterministic(t *testing.T) {
	g := Gate{Table: DefaultTable(), TrialLength: 14 * 24 * time.Hour}
	start := utc(1, 0, 0)

	for day := 2; day <= 8; day++ {
		for hour := 0; hour < 24; hour++ {
			for _, tier := range []Tier{TierEarly, TierStandard, TierLate} {
				in := Input{Now: utc(day, hour, 15), OffsetHours: 5.5, Tier: tier, TrialStart: start}
				first := g.Decide(in)
				second := g.Decide(in)
				if first.Proceed != second.Proceed || first.Reason != second.Reason || !first.Local.Equal(second.Local) {
					t.Fatalf("non-deterministic for %+v: %+v vs %+v", in, first, second)
				}
				slots := g.Table.Hours(tier, first.Weekend)
				want := false
				for _, h := range slots {
					if h == first.Local.Hour() {
						want = true
					}
				}
				if first.Proceed != want {
					t.Fatalf("day %d hour %d tier %s: Proceed = %v, want %v", day, hour, tier, first.Proceed, want)
				}
			}
		}
	}
}

func TestTable_FirstRowWins(t *testing.T) {
	table := Table{
		{Tier: TierStandard, Weekday: []int{9}, Weekend: []int{11}},
		{Tier: TierStandard, Weekday: []int{13}, Weekend: []int{15}},
	}
	if got := table.Hours(TierStandard, false); len(got) != 1 || got[0] != 9 {
		t.Errorf("weekday hours = %v, want [9]", got)
	}
	if got := table.Hours(TierLate, false); got != nil {
		t.Errorf("missing tier hours = %v, want nil", got)
	}
}

func TestParseTier(t *testing.T) {
	tests := map[string]Tier{
		"1":        TierEarly,
		" 3 ":      TierLate,
		"Standard": TierStandard,
		"late":     TierLate,
		"7":        TierStandard,
		"":         TierStandard,
	}
	for in, want := range tests {
		if got := ParseTier(in); got != want {
			t.Errorf("ParseTier(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLookupTier(t *testing.T) {
	for _, in := range []string{"1", "2", "3", "EARLY", " standard ", "Late"} {
		if _, ok := LookupTier(in); !ok {
			t.Errorf("LookupTier(%q) rejected", in)
		}
	}
	for _, in := range []string{"", "0", "4", "noon", "-1"} {
		if tier, ok := LookupTier(in); ok {
			t.Errorf("LookupTier(%q) = %v, want rejected", in, tier)
		}
	}
}
