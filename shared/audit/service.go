// Package audit exports the reservation journal as an XLSX workbook and
// mails it to staff once a month.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Columns of the journal sheet.
var Columns = []string{"Nr.", "Reservierung", "E-Mail", "Abholung", "Anzahl", "Gegenstände", "Kommentar", "Erstellt"}

// Config holds configuration for the audit service.
type Config struct {
	// RetentionDays is how long journal entries are kept. Zero keeps them forever.
	RetentionDays int
	ExportOnStart bool
	Brand         string
}

// Service handles monthly journal exports and cleanup.
type Service struct {
	config   Config
	source   JournalSource
	writer   func() ExcelWriter
	notifier Notifier
	purger   Purger
	logger   *zerolog.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewService creates an audit service. notifier and purger may be nil.
func NewService(config Config, source JournalSource, writerFactory func() ExcelWriter, notifier Notifier, purger Purger, logger *zerolog.Logger) *Service {
	if writerFactory == nil {
		writerFactory = NewWorkbook
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "audit").Logger()
	return &Service{
		config:   config,
		source:   source,
		writer:   writerFactory,
		notifier: notifier,
		purger:   purger,
		logger:   &l,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Export writes the entries created in [from, to) as a workbook to w.
func (s *Service) Export(ctx context.Context, w io.Writer, from, to time.Time) (int, error) {
	entries, err := s.source.ListReservations(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("list reservations: %w", err)
	}

	book := s.writer()
	defer book.Close()

	name := "Reservierungen"
	if !from.IsZero() {
		name = fmt.Sprintf("%s %d", MonthNames[from.Month()], from.Year())
	}
	if err := book.AddSheet(name); err != nil {
		return 0, err
	}
	if err := book.WriteHeader(Columns); err != nil {
		return 0, err
	}
	_ = book.SetColumnWidths(6, 18, 28, 20, 8, 50, 30, 20)

	for i, e := range entries {
		row := []interface{}{
			i + 1,
			e.RecordID,
			e.Email,
			e.Pickup,
			e.ItemCount,
			e.Items,
			e.Comments,
			e.CreatedAt.Format("2006-01-02 15:04"),
		}
		if err := book.WriteRow(row); err != nil {
			return 0, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := book.Save(w); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}
	return len(entries), nil
}

// RunMonthly exports the month before now, sends it to staff and purges
// entries past retention.
func (s *Service) RunMonthly(ctx context.Context) error {
	from, to := MonthBounds(s.now().AddDate(0, -1, 0))

	var buf bytes.Buffer
	n, err := s.Export(ctx, &buf, from, to)
	if err != nil {
		return err
	}
	s.logger.Info().Int("rows", n).Time("from", from).Msg("Journal exported")

	if s.notifier != nil {
		caption := fmt.Sprintf("📊 Monatsbericht %s: %d Reservierungen", s.config.Brand, n)
		if err := s.notifier.SendDocument(ctx, Filename(from), &buf, caption); err != nil {
			return fmt.Errorf("send document: %w", err)
		}
	}

	if s.purger != nil && s.config.RetentionDays > 0 {
		cutoff := s.now().AddDate(0, 0, -s.config.RetentionDays)
		deleted, err := s.purger.PurgeReservations(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("purge reservations: %w", err)
		}
		s.logger.Info().Int64("deleted", deleted).Int("retention_days", s.config.RetentionDays).Msg("Journal purged")
	}
	return nil
}

// Start runs RunMonthly shortly after midnight on the first of each month.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.run()
		}()
	}

	s.wg.Add(1)
	go s.loop()
}

// Stop waits for a running export to finish.
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
	s.logger.Info().Msg("Audit service stopped")
}

func (s *Service) loop() {
	defer s.wg.Done()

	next := NextRun(s.now())
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()
	s.logger.Info().Time("next", next).Msg("Next journal export scheduled")

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.run()
			next = NextRun(s.now())
			timer.Reset(time.Until(next))
		}
	}
}

func (s *Service) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	if err := s.RunMonthly(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Monthly export failed")
	}
}

// NextRun returns 00:01 on the first day of the month after t.
func NextRun(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 1, 0, 0, t.Location())
}
