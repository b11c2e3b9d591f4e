// Package slots turns the opening hours into bookable hourly pickup times.
package slots

import (
	"fmt"
	"time"

	"leihlokal/internal/hours"
)

// PickupLayout is the wire format of a pickup time ("YYYY-MM-DD HH:mm:ss").
const PickupLayout = "2006-01-02 15:04:05"

// DateKeyLayout keys slots by calendar day.
const DateKeyLayout = "2006-01-02"

// SlotInfo is a simplified representation for UI.
type SlotInfo struct {
	Label  string `json:"label"`  // "15:00"
	Pickup string `json:"pickup"` // "2026-01-12 15:00:00"
}

// DayGroup holds the slots of one calendar day.
type DayGroup struct {
	Date  string     `json:"date"` // "2026-01-12"
	Day   string     `json:"day"`  // "Montag"
	Slots []SlotInfo `json:"slots"`
}

// Generator produces pickup slots from a weekly schedule.
type Generator struct {
	schedule hours.Schedule
}

// NewGenerator creates a new slot generator.
func NewGenerator(schedule hours.Schedule) *Generator {
	return &Generator{schedule: schedule}
}

// Schedule returns the schedule the generator works on.
func (g *Generator) Schedule() hours.Schedule {
	return g.schedule
}

// Generate returns every whole-hour pickup instant from the day of now
// through now+horizonDays that lies strictly after now, in order.
func (g *Generator) Generate(horizonDays int, now time.Time) []time.Time {
	if horizonDays < 0 {
		horizonDays = 0
	}
	end := now.AddDate(0, 0, horizonDays)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var slots []time.Time
	for ; !day.After(end); day = day.AddDate(0, 0, 1) {
		iv, ok := g.schedule.HoursFor(day.Weekday())
		if !ok {
			continue
		}
		for h := iv.Open; h < iv.Close; h++ {
			slot := time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, day.Location())
			// Skip past slots
			if !slot.After(now) {
				continue
			}
			slots = append(slots, slot)
		}
	}
	return slots
}

// IsValidPickupTime reports whether t is after now and within opening hours.
func (g *Generator) IsValidPickupTime(t, now time.Time) bool {
	if !t.After(now) {
		return false
	}
	return g.schedule.IsOpenAt(t)
}

// FormatPickup renders t in the pickup wire format.
func FormatPickup(t time.Time) string {
	return t.Format(PickupLayout)
}

// ParsePickup parses a pickup string in loc.
func ParsePickup(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(PickupLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid pickup %q: %w", s, err)
	}
	return t, nil
}

// GroupByDate groups ordered slots by calendar day, keeping order.
func GroupByDate(slots []time.Time) []DayGroup {
	var groups []DayGroup
	for _, s := range slots {
		key := s.Format(DateKeyLayout)
		if len(groups) == 0 || groups[len(groups)-1].Date != key {
			groups = append(groups, DayGroup{Date: key, Day: hours.DayNames[s.Weekday()]})
		}
		last := &groups[len(groups)-1]
		last.Slots = append(last.Slots, SlotInfo{
			Label:  s.Format("15:04"),
			Pickup: FormatPickup(s),
		})
	}
	return groups
}

// DefaultPick returns the slot preselected when a day is chosen: the first
// one when visitors pick a time themselves, otherwise the last one of the day.
func DefaultPick(group DayGroup, timeSelection bool) (SlotInfo, bool) {
	if len(group.Slots) == 0 {
		return SlotInfo{}, false
	}
	if timeSelection {
		return group.Slots[0], true
	}
	return group.Slots[len(group.Slots)-1], true
}
