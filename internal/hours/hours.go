// Package hours describes the weekly opening schedule used for pickups.
package hours

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Interval is a half-open [Open, Close) range of whole hours.
type Interval struct {
	Open  int `json:"open"`
	Close int `json:"close"`
}

// Valid reports whether the interval is within a day and non-empty.
func (i Interval) Valid() bool {
	return i.Open >= 0 && i.Close <= 24 && i.Open < i.Close
}

// Contains reports whether hour h falls inside the interval.
func (i Interval) Contains(h int) bool {
	return h >= i.Open && h < i.Close
}

func (i Interval) String() string {
	return fmt.Sprintf("%d:00 - %d:00", i.Open, i.Close)
}

// Schedule maps a weekday to its opening interval. Missing weekdays are closed.
type Schedule map[time.Weekday]Interval

// DefaultJSON is the fallback weekly schedule in its configuration form.
const DefaultJSON = `{"1":"15:00-19:00","4":"15:00-19:00","5":"15:00-19:00","6":"10:00-14:00"}`

// Default returns the built-in schedule: Mon/Thu/Fri 15-19, Sat 10-14.
func Default() Schedule {
	return Schedule{
		time.Monday:   {Open: 15, Close: 19},
		time.Thursday: {Open: 15, Close: 19},
		time.Friday:   {Open: 15, Close: 19},
		time.Saturday: {Open: 10, Close: 14},
	}
}

// IsOpenDay reports whether the weekday has opening hours.
func (s Schedule) IsOpenDay(day time.Weekday) bool {
	_, ok := s[day]
	return ok
}

// HoursFor returns the opening interval for the weekday.
func (s Schedule) HoursFor(day time.Weekday) (Interval, bool) {
	iv, ok := s[day]
	return iv, ok
}

// IsOpenAt reports whether t falls into an opening interval of its weekday.
func (s Schedule) IsOpenAt(t time.Time) bool {
	iv, ok := s[t.Weekday()]
	if !ok {
		return false
	}
	return iv.Contains(t.Hour())
}

// DayHours is one row of the opening hours overview.
type DayHours struct {
	Day   string `json:"day"`
	Hours string `json:"hours"`
}

// DayNames are the German weekday names indexed by time.Weekday.
var DayNames = map[time.Weekday]string{
	time.Sunday:    "Sonntag",
	time.Monday:    "Montag",
	time.Tuesday:   "Dienstag",
	time.Wednesday: "Mittwoch",
	time.Thursday:  "Donnerstag",
	time.Friday:    "Freitag",
	time.Saturday:  "Samstag",
}

// ClosedLabel is shown for days without opening hours.
const ClosedLabel = "Geschlossen"

// Format returns the week Monday first, Sunday last.
func (s Schedule) Format() []DayHours {
	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	rows := make([]DayHours, 0, len(order))
	for _, d := range order {
		label := ClosedLabel
		if iv, ok := s[d]; ok {
			label = iv.String()
		}
		rows = append(rows, DayHours{Day: DayNames[d], Hours: label})
	}
	return rows
}

var rangePattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})-(\d{1,2}):(\d{2})$`)

// ParseJSON parses a schedule like {"1":"15:00-19:00","0":null}.
// Null or empty values mark a day closed. Keys outside 0-6, unparseable
// ranges and ranges with open >= close are skipped. Invalid JSON is an error.
func ParseJSON(data string) (Schedule, error) {
	var raw map[string]*string
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("parse hours json: %w", err)
	}

	s := make(Schedule, len(raw))
	for key, val := range raw {
		day, err := strconv.Atoi(key)
		if err != nil || day < 0 || day > 6 {
			continue
		}
		if val == nil || *val == "" {
			continue
		}
		m := rangePattern.FindStringSubmatch(*val)
		if m == nil {
			continue
		}
		open, _ := strconv.Atoi(m[1])
		closeHour, _ := strconv.Atoi(m[3])
		iv := Interval{Open: open, Close: closeHour}
		if !iv.Valid() {
			continue
		}
		s[time.Weekday(day)] = iv
	}
	return s, nil
}

// ParseOrDefault parses data and falls back to Default on malformed input.
func ParseOrDefault(data string) Schedule {
	s, err := ParseJSON(data)
	if err != nil {
		return Default()
	}
	return s
}
