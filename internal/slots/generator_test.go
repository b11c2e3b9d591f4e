package slots

import (
	"testing"
	"time"

	"leihlokal/internal/hours"
)

func at(day, hour, minute int) time.Time {
	// January 2026: the 11th is a Sunday, the 12th a Monday.
	return time.Date(2026, 1, day, hour, minute, 0, 0, time.UTC)
}

func TestGenerate(t *testing.T) {
	mondayOnly := hours.Schedule{time.Monday: {Open: 15, Close: 19}}

	tests := []struct {
		name          string
		schedule      hours.Schedule
		horizon       int
		now           time.Time
		expectedCount int
		first         time.Time
		last          time.Time
	}{
		{
			name:          "sunday morning one week ahead",
			schedule:      mondayOnly,
			horizon:       7,
			now:           at(11, 10, 0),
			expectedCount: 4,
			first:         at(12, 15, 0),
			last:          at(12, 18, 0),
		},
		{
			name:          "past hours of the current day are skipped",
			schedule:      mondayOnly,
			horizon:       0,
			now:           at(12, 16, 30),
			expectedCount: 2,
			first:         at(12, 17, 0),
			last:          at(12, 18, 0),
		},
		{
			name:          "slot equal to now is excluded",
			schedule:      mondayOnly,
			horizon:       0,
			now:           at(12, 17, 0),
			expectedCount: 1,
			first:         at(12, 18, 0),
			last:          at(12, 18, 0),
		},
		{
			name:          "two weeks",
			schedule:      mondayOnly,
			horizon:       14,
			now:           at(11, 10, 0),
			expectedCount: 8,
			first:         at(12, 15, 0),
			last:          at(19, 18, 0),
		},
		{
			name:          "default schedule one week",
			schedule:      hours.Default(),
			horizon:       7,
			now:           at(11, 10, 0),
			expectedCount: 16, // Mon 4 + Thu 4 + Fri 4 + Sat 4
			first:         at(12, 15, 0),
			last:          at(17, 13, 0),
		},
		{
			name:          "everything closed",
			schedule:      hours.Schedule{},
			horizon:       28,
			now:           at(11, 10, 0),
			expectedCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(tt.schedule)
			slots := g.Generate(tt.horizon, tt.now)

			if len(slots) != tt.expectedCount {
				t.Fatalf("expected %d slots, got %d: %v", tt.expectedCount, len(slots), slots)
			}
			if tt.expectedCount == 0 {
				return
			}
			if !slots[0].Equal(tt.first) {
				t.Errorf("first slot: expected %s, got %s", tt.first, slots[0])
			}
			if !slots[len(slots)-1].Equal(tt.last) {
				t.Errorf("last slot: expected %s, got %s", tt.last, slots[len(slots)-1])
			}
		})
	}
}

func TestGenerate_SlotsAreFutureOpenAndOrdered(t *testing.T) {
	schedules := []hours.Schedule{
		hours.Default(),
		{time.Sunday: {Open: 0, Close: 24}},
		{time.Wednesday: {Open: 9, Close: 10}, time.Saturday: {Open: 8, Close: 20}},
	}

	start := at(11, 0, 0)
	for _, s := range schedules {
		g := NewGenerator(s)
		for offset := 0; offset < 7*24; offset += 5 {
			now := start.Add(time.Duration(offset)*time.Hour + 17*time.Minute)
			slots := g.Generate(10, now)
			for i, slot := range slots {
				if !slot.After(now) {
					t.Fatalf("slot %s not after now %s", slot, now)
				}
				if !s.IsOpenAt(slot) {
					t.Fatalf("slot %s outside opening hours", slot)
				}
				if !g.IsValidPickupTime(slot, now) {
					t.Fatalf("generated slot %s rejected by IsValidPickupTime", slot)
				}
				if i > 0 && !slot.After(slots[i-1]) {
					t.Fatalf("slots out of order at %d", i)
				}
			}
		}
	}
}

func TestGenerate_LaterNowYieldsSubset(t *testing.T) {
	g := NewGenerator(hours.Default())
	early := g.Generate(14, at(11, 10, 0))
	later := g.Generate(13, at(12, 16, 0))

	seen := make(map[time.Time]bool, len(early))
	for _, s := range early {
		seen[s] = true
	}
	for _, s := range later {
		if !seen[s] {
			t.Errorf("slot %s from later run missing in earlier run", s)
		}
	}
}

func TestIsValidPickupTime(t *testing.T) {
	g := NewGenerator(hours.Schedule{time.Monday: {Open: 15, Close: 19}})
	now := at(11, 10, 0)

	tests := []struct {
		name     string
		pickup   time.Time
		expected bool
	}{
		{"open hour", at(12, 15, 0), true},
		{"inside hour with minutes", at(12, 18, 30), true},
		{"closing hour", at(12, 19, 0), false},
		{"before opening", at(12, 14, 59), false},
		{"closed day", at(13, 15, 0), false},
		{"in the past", at(5, 15, 0), false},
		{"equal to now", now, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := g.IsValidPickupTime(tt.pickup, now); got != tt.expected {
				t.Errorf("IsValidPickupTime(%s): expected %v, got %v", tt.pickup, tt.expected, got)
			}
		})
	}
}

func TestFormatAndParsePickup(t *testing.T) {
	slot := at(12, 15, 0)
	s := FormatPickup(slot)
	if s != "2026-01-12 15:00:00" {
		t.Fatalf("unexpected format: %q", s)
	}

	parsed, err := ParsePickup(s, time.UTC)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !parsed.Equal(slot) {
		t.Errorf("expected %s, got %s", slot, parsed)
	}

	if _, err := ParsePickup("12.01.2026 15:00", time.UTC); err == nil {
		t.Error("expected error for wrong layout")
	}
}

func TestGroupByDate(t *testing.T) {
	g := NewGenerator(hours.Schedule{
		time.Monday:   {Open: 15, Close: 17},
		time.Saturday: {Open: 10, Close: 11},
	})
	groups := GroupByDate(g.Generate(7, at(11, 10, 0)))

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Date != "2026-01-12" || groups[0].Day != "Montag" {
		t.Errorf("unexpected first group: %+v", groups[0])
	}
	if len(groups[0].Slots) != 2 || groups[0].Slots[0].Label != "15:00" || groups[0].Slots[1].Pickup != "2026-01-12 16:00:00" {
		t.Errorf("unexpected slots in first group: %+v", groups[0].Slots)
	}
	if groups[1].Date != "2026-01-17" || len(groups[1].Slots) != 1 {
		t.Errorf("unexpected second group: %+v", groups[1])
	}
}

func TestDefaultPick(t *testing.T) {
	group := DayGroup{Slots: []SlotInfo{{Label: "15:00"}, {Label: "16:00"}, {Label: "17:00"}}}

	first, ok := DefaultPick(group, true)
	if !ok || first.Label != "15:00" {
		t.Errorf("with time selection: expected 15:00, got %+v", first)
	}

	last, ok := DefaultPick(group, false)
	if !ok || last.Label != "17:00" {
		t.Errorf("without time selection: expected 17:00, got %+v", last)
	}

	if _, ok := DefaultPick(DayGroup{}, true); ok {
		t.Error("empty group should have no pick")
	}
}
