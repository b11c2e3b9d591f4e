package audit

import (
	"context"
	"fmt"
	"io"
	"time"

	"leihlokal/internal/database"
)

// JournalSource lists recorded reservations.
type JournalSource interface {
	ListReservations(ctx context.Context, from, to time.Time) ([]database.JournalEntry, error)
}

// Purger deletes journal entries older than a cutoff.
type Purger interface {
	PurgeReservations(ctx context.Context, before time.Time) (int64, error)
}

// ExcelWriter writes rows into a workbook.
type ExcelWriter interface {
	AddSheet(name string) error
	WriteHeader(columns []string) error
	WriteRow(row []interface{}) error
	SetColumnWidths(widths ...float64) error
	Save(w io.Writer) error
	SaveToFile(path string) error
	Close() error
}

// Notifier delivers the monthly report to staff.
type Notifier interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// MonthNames are used for sheet and file names.
var MonthNames = map[time.Month]string{
	time.January:   "Januar",
	time.February:  "Februar",
	time.March:     "März",
	time.April:     "April",
	time.May:       "Mai",
	time.June:      "Juni",
	time.July:      "Juli",
	time.August:    "August",
	time.September: "September",
	time.October:   "Oktober",
	time.November:  "November",
	time.December:  "Dezember",
}

// Filename returns e.g. "Reservierungen_Januar_2026.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("Reservierungen_%s_%d.xlsx", MonthNames[t.Month()], t.Year())
}

// MonthBounds returns [first of month, first of next month) for t.
func MonthBounds(t time.Time) (time.Time, time.Time) {
	from := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}
