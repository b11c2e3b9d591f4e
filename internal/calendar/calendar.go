// Package calendar renders a pickup as an ICS file and as web calendar links.
package calendar

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"leihlokal/internal/reservation"
	"leihlokal/internal/slots"
)

const (
	icsLayout     = "20060102T150405"
	pickupLength  = 30 * time.Minute
	googleBaseURL = "https://calendar.google.com/calendar/render"
	outlookURL    = "https://outlook.live.com/calendar/0/deeplink/compose"
)

// Event is a calendar entry.
type Event struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// NewPickupEvent builds the pickup appointment for conf. The pickup string
// is read in loc.
func NewPickupEvent(conf reservation.Confirmation, brand, location string, loc *time.Location) (Event, error) {
	start, err := slots.ParsePickup(conf.Pickup, loc)
	if err != nil {
		return Event{}, err
	}

	lines := make([]string, 0, len(conf.Items)+1)
	lines = append(lines, "Reservierte Gegenstände:")
	for _, it := range conf.Items {
		lines = append(lines, fmt.Sprintf("- #%d %s", it.IID, stripTags(it.Name)))
	}

	return Event{
		Title:       "Abholung bei " + brand,
		Description: strings.Join(lines, "\n"),
		Location:    location,
		Start:       start,
		End:         start.Add(pickupLength),
	}, nil
}

func stripTags(s string) string {
	return strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
}

// ProdID is the PRODID line value for brand.
func ProdID(brand string) string {
	return "-//" + brand + "//Reservation//DE"
}

// ICS renders e as a single-event VCALENDAR with CRLF line endings.
// Times are written as floating local times.
func ICS(e Event, prodID string) string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"BEGIN:VEVENT",
		"DTSTART:" + e.Start.Format(icsLayout),
		"DTEND:" + e.End.Format(icsLayout),
		"SUMMARY:" + e.Title,
		"DESCRIPTION:" + strings.ReplaceAll(e.Description, "\n", `\n`),
		"LOCATION:" + e.Location,
		"END:VEVENT",
		"END:VCALENDAR",
	}
	return strings.Join(lines, "\r\n")
}

// FileName is the download name of the ICS file.
const FileName = "leihlokal-abholung.ics"

// GoogleURL returns a Google Calendar template link for e.
func GoogleURL(e Event) string {
	params := url.Values{}
	params.Set("action", "TEMPLATE")
	params.Set("text", e.Title)
	params.Set("details", e.Description)
	params.Set("location", e.Location)
	params.Set("dates", e.Start.Format(icsLayout)+"/"+e.End.Format(icsLayout))
	return googleBaseURL + "?" + params.Encode()
}

// OutlookURL returns an Outlook web compose link for e with UTC ISO-8601 times.
func OutlookURL(e Event) string {
	params := url.Values{}
	params.Set("path", "/calendar/action/compose")
	params.Set("rru", "addevent")
	params.Set("subject", e.Title)
	params.Set("body", e.Description)
	params.Set("location", e.Location)
	params.Set("startdt", isoUTC(e.Start))
	params.Set("enddt", isoUTC(e.End))
	return outlookURL + "?" + params.Encode()
}

func isoUTC(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Links bundles the web calendar links of an event.
type Links struct {
	Google  string `json:"google"`
	Outlook string `json:"outlook"`
}

// LinksFor returns both web links for e.
func LinksFor(e Event) Links {
	return Links{Google: GoogleURL(e), Outlook: OutlookURL(e)}
}
