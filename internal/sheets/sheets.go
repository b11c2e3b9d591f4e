// Package sheets mirrors confirmed reservations into a Google spreadsheet.
package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"leihlokal/internal/events"
	"leihlokal/internal/reservation"
)

// DefaultRange is where rows are appended.
const DefaultRange = "Reservierungen!A1"

// Header is the first row expected in the target sheet.
var Header = []interface{}{"Reservierung", "Erstellt", "E-Mail", "Abholung", "Anzahl", "Gegenstände", "Kommentar"}

// Service appends rows to one spreadsheet.
type Service struct {
	srv           *sheets.Service
	spreadsheetID string
	writeRange    string
	logger        *zerolog.Logger
}

// NewService authenticates with a service-account credentials file.
func NewService(ctx context.Context, credentialsFile, spreadsheetID string, logger *zerolog.Logger) (*Service, error) {
	return NewServiceWithOptions(ctx, spreadsheetID, logger, option.WithCredentialsFile(credentialsFile))
}

// NewServiceWithOptions creates the service with explicit client options.
func NewServiceWithOptions(ctx context.Context, spreadsheetID string, logger *zerolog.Logger, opts ...option.ClientOption) (*Service, error) {
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "sheets").Logger()
	return &Service{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		writeRange:    DefaultRange,
		logger:        &l,
	}, nil
}

// RowValues converts a confirmation into one sheet row.
func RowValues(conf reservation.Confirmation) []interface{} {
	names := make([]string, 0, len(conf.Items))
	for _, it := range conf.Items {
		names = append(names, fmt.Sprintf("#%d %s", it.IID, it.Name))
	}
	return []interface{}{
		conf.ID,
		conf.CreatedAt.Format("2006-01-02 15:04:05"),
		conf.Email,
		conf.Pickup,
		len(conf.Items),
		strings.Join(names, ", "),
		conf.Comments,
	}
}

// AppendReservation appends conf as a new row.
func (s *Service) AppendReservation(ctx context.Context, conf reservation.Confirmation) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{RowValues(conf)}}
	_, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, s.writeRange, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("append reservation %s: %w", conf.ID, err)
	}
	s.logger.Debug().Str("reservation_id", conf.ID).Msg("Reservation mirrored")
	return nil
}

// EnsureHeader writes Header into the first row when it is empty.
func (s *Service) EnsureHeader(ctx context.Context) error {
	first := strings.SplitN(s.writeRange, "!", 2)[0] + "!A1:G1"
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, first).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	_, err = s.srv.Spreadsheets.Values.Update(s.spreadsheetID, first, &sheets.ValueRange{Values: [][]interface{}{Header}}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// HandleEvent is an events.EventHandler for confirmed reservations.
func (s *Service) HandleEvent(ev events.Event) error {
	var conf reservation.Confirmation
	if err := ev.Decode(&conf); err != nil {
		return err
	}
	return s.AppendReservation(context.Background(), conf)
}
