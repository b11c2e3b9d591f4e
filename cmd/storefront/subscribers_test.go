package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leihlokal/internal/database"
	"leihlokal/internal/events"
	"leihlokal/internal/reservation"
)

func TestJournalHandler(t *testing.T) {
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	defer db.Close()

	conf := reservation.Confirmation{
		ID:        "res1",
		Email:     "a@example.org",
		Pickup:    "2026-01-12 15:00:00",
		CreatedAt: time.Date(2026, 1, 11, 10, 0, 0, 0, time.UTC),
		Items: []reservation.ConfirmedItem{
			{ID: "a", IID: 12, Name: "Bohrmaschine"},
			{ID: "b", IID: 40, Name: "Leiter"},
		},
	}

	bus := events.NewEventBus(&logger)
	bus.Subscribe(events.ReservationConfirmed, journalHandler(db))
	bus.Subscribe(events.ReservationConfirmed, confirmedMetrics)

	ev, err := events.New(events.ReservationConfirmed, conf)
	require.NoError(t, err)
	assert.Equal(t, 0, bus.Publish(ev))
	assert.Equal(t, 0, bus.Publish(ev), "duplicate confirmation is ignored")

	entries, err := db.ListReservations(context.Background(), time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "#12 Bohrmaschine, #40 Leiter", entries[0].Items)
	assert.Equal(t, 2, entries[0].ItemCount)
}

func TestJournalHandlerBadPayload(t *testing.T) {
	assert.Error(t, confirmedMetrics(events.Event{Payload: []byte("nope")}))
	assert.NoError(t, failedMetrics(events.Event{}))
}
