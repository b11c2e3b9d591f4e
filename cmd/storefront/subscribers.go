package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leihlokal/internal/database"
	"leihlokal/internal/events"
	"leihlokal/internal/metrics"
	"leihlokal/internal/reservation"
)

// asyncBus delivers events on a separate goroutine so outbound
// notifications never hold up a request.
type asyncBus struct {
	*events.EventBus
}

func (b asyncBus) Publish(ev events.Event) int {
	b.PublishAsync(ev)
	return 0
}

// journalEntry converts a confirmation into its journal row.
func journalEntry(conf reservation.Confirmation) *database.JournalEntry {
	names := make([]string, len(conf.Items))
	for i, it := range conf.Items {
		names[i] = fmt.Sprintf("#%d %s", it.IID, it.Name)
	}
	return &database.JournalEntry{
		RecordID:  conf.ID,
		Email:     conf.Email,
		Pickup:    conf.Pickup,
		Items:     strings.Join(names, ", "),
		ItemCount: len(conf.Items),
		Comments:  conf.Comments,
		CreatedAt: conf.CreatedAt,
	}
}

func journalHandler(db *database.DB) events.EventHandler {
	return func(ev events.Event) error {
		var conf reservation.Confirmation
		if err := ev.Decode(&conf); err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return db.RecordReservation(ctx, journalEntry(conf))
	}
}

func confirmedMetrics(ev events.Event) error {
	var conf reservation.Confirmation
	if err := ev.Decode(&conf); err != nil {
		return err
	}
	metrics.IncReservation("confirmed")
	metrics.ObserveReservationItems(len(conf.Items))
	return nil
}

func failedMetrics(events.Event) error {
	metrics.IncReservation("failed")
	return nil
}
