// Package reminders sends staff a digest of the day's pickups shortly before
// the shop opens.
package reminders

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"leihlokal/internal/database"
	"leihlokal/internal/hours"
	"leihlokal/internal/metrics"
	"leihlokal/internal/slots"
)

// Config holds configuration for the digest service.
type Config struct {
	// CheckInterval is how often the schedule is checked. Default: 5 minutes.
	CheckInterval time.Duration
	// LeadTime is how long before opening the digest goes out.
	LeadTime time.Duration
	Brand    string
}

// Service sends one digest per opening day.
type Service struct {
	config   Config
	schedule hours.Schedule
	source   PickupSource
	notifier Notifier
	logger   *zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	sent    map[string]bool
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewService(config Config, schedule hours.Schedule, source PickupSource, notifier Notifier, logger *zerolog.Logger) *Service {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 5 * time.Minute
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "reminders").Logger()
	return &Service{
		config:   config,
		schedule: schedule,
		source:   source,
		notifier: notifier,
		logger:   &l,
		now:      time.Now,
		sent:     make(map[string]bool),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the check loop.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()
	s.logger.Info().Dur("check_interval", s.config.CheckInterval).Dur("lead_time", s.config.LeadTime).Msg("Pickup digest started")
}

// Stop waits for the loop to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
}

func (s *Service) loop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.check()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.check()
		}
	}
}

func (s *Service) check() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.Check(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Pickup digest failed")
	}
}

// Due reports whether the digest for the day of now should go out: the day
// is open, opening is at most LeadTime away and the shop has not closed yet.
func (s *Service) Due(now time.Time) bool {
	iv, ok := s.schedule.HoursFor(now.Weekday())
	if !ok {
		return false
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	opens := day.Add(time.Duration(iv.Open) * time.Hour)
	closes := day.Add(time.Duration(iv.Close) * time.Hour)
	if now.Before(opens.Add(-s.config.LeadTime)) || !now.Before(closes) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.sent[day.Format(slots.DateKeyLayout)]
}

// Check sends today's digest when it is due. It reports whether a message
// was sent. Days without pickups are marked done silently.
func (s *Service) Check(ctx context.Context) (bool, error) {
	now := s.now()
	if !s.Due(now) {
		return false, nil
	}

	entries, err := s.source.ListPickups(ctx, now)
	if err != nil {
		return false, fmt.Errorf("list pickups: %w", err)
	}
	if len(entries) > 0 {
		if err := s.notifier.SendText(ctx, FormatDigest(s.config.Brand, now, entries)); err != nil {
			metrics.IncDigest("failed")
			return false, fmt.Errorf("send digest: %w", err)
		}
		metrics.IncDigest("sent")
		s.logger.Info().Int("pickups", len(entries)).Msg("Pickup digest sent")
	}
	s.markSent(now)
	return len(entries) > 0, nil
}

func (s *Service) markSent(now time.Time) {
	today := now.Format(slots.DateKeyLayout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for day := range s.sent {
		if day < today {
			delete(s.sent, day)
		}
	}
	s.sent[today] = true
}

// FormatDigest renders the staff message for the pickups of day.
func FormatDigest(brand string, day time.Time, entries []database.JournalEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 %s: Abholungen am %s, %s\n", brand, hours.DayNames[day.Weekday()], day.Format("02.01.2006"))
	for _, e := range entries {
		at := e.Pickup
		if t, err := slots.ParsePickup(e.Pickup, day.Location()); err == nil {
			at = t.Format("15:04")
		}
		fmt.Fprintf(&b, "\n%s Uhr · %s\n%s\n", at, e.Email, e.Items)
		if e.Comments != "" {
			fmt.Fprintf(&b, "💬 %s\n", e.Comments)
		}
	}
	return b.String()
}
