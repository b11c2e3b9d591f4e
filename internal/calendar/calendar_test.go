package calendar

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leihlokal/internal/reservation"
)

func testConfirmation() reservation.Confirmation {
	return reservation.Confirmation{
		ID:     "res1",
		Email:  "a@example.org",
		Pickup: "2026-01-12 15:00:00",
		Items: []reservation.ConfirmedItem{
			{ID: "a1", IID: 12, Name: "Bohrmaschine"},
			{ID: "b2", IID: 40, Name: "<b>Leiter</b> 3m"},
		},
	}
}

func TestNewPickupEvent(t *testing.T) {
	e, err := NewPickupEvent(testConfirmation(), "leih.lokal", "Gerwigstr. 41", time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "Abholung bei leih.lokal", e.Title)
	assert.Equal(t, "Gerwigstr. 41", e.Location)
	assert.Equal(t, time.Date(2026, 1, 12, 15, 0, 0, 0, time.UTC), e.Start)
	assert.Equal(t, 30*time.Minute, e.End.Sub(e.Start))
	assert.Equal(t, "Reservierte Gegenstände:\n- #12 Bohrmaschine\n- #40 Leiter 3m", e.Description)

	_, err = NewPickupEvent(reservation.Confirmation{Pickup: "bald"}, "x", "y", time.UTC)
	assert.Error(t, err)
}

func TestICS(t *testing.T) {
	e, err := NewPickupEvent(testConfirmation(), "leih.lokal", "leih.lokal", time.UTC)
	require.NoError(t, err)

	ics := ICS(e, ProdID("leih.lokal"))
	lines := strings.Split(ics, "\r\n")

	assert.Equal(t, []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//leih.lokal//Reservation//DE",
		"BEGIN:VEVENT",
		"DTSTART:20260112T150000",
		"DTEND:20260112T153000",
		"SUMMARY:Abholung bei leih.lokal",
		`DESCRIPTION:Reservierte Gegenstände:\n- #12 Bohrmaschine\n- #40 Leiter 3m`,
		"LOCATION:leih.lokal",
		"END:VEVENT",
		"END:VCALENDAR",
	}, lines)
	assert.NotContains(t, strings.ReplaceAll(ics, "\r\n", ""), "\n")
}

func TestGoogleURL(t *testing.T) {
	e, err := NewPickupEvent(testConfirmation(), "leih.lokal", "Laden", time.UTC)
	require.NoError(t, err)

	u, err := url.Parse(GoogleURL(e))
	require.NoError(t, err)
	assert.Equal(t, "calendar.google.com", u.Host)
	assert.Equal(t, "/calendar/render", u.Path)

	q := u.Query()
	assert.Equal(t, "TEMPLATE", q.Get("action"))
	assert.Equal(t, e.Title, q.Get("text"))
	assert.Equal(t, e.Description, q.Get("details"))
	assert.Equal(t, "Laden", q.Get("location"))
	assert.Equal(t, "20260112T150000/20260112T153000", q.Get("dates"))
}

func TestOutlookURL(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)

	e, err := NewPickupEvent(testConfirmation(), "leih.lokal", "Laden", berlin)
	require.NoError(t, err)

	u, err := url.Parse(OutlookURL(e))
	require.NoError(t, err)
	assert.Equal(t, "outlook.live.com", u.Host)

	q := u.Query()
	assert.Equal(t, "/calendar/action/compose", q.Get("path"))
	assert.Equal(t, "addevent", q.Get("rru"))
	assert.Equal(t, e.Title, q.Get("subject"))
	assert.Equal(t, e.Description, q.Get("body"))
	// 15:00 in Berlin winter time is 14:00 UTC
	assert.Equal(t, "2026-01-12T14:00:00.000Z", q.Get("startdt"))
	assert.Equal(t, "2026-01-12T14:30:00.000Z", q.Get("enddt"))
}
