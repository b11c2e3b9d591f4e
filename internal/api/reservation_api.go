package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leihlokal/internal/calendar"
	"leihlokal/internal/metrics"
	"leihlokal/internal/recordapi"
	"leihlokal/internal/reservation"
)

// ReservationCreated is returned for a confirmed submission.
// Confirmation is set instead of Token when no token could be issued.
type ReservationCreated struct {
	Token        string            `json:"token,omitempty"`
	ID           string            `json:"id"`
	Confirmation *ConfirmationView `json:"confirmation,omitempty"`
}

// ConfirmationView is the success page payload.
type ConfirmationView struct {
	Confirmation reservation.Confirmation `json:"confirmation"`
	Calendar     *calendar.Links          `json:"calendar,omitempty"`
	ICS          string                   `json:"ics,omitempty"`
}

// POST /api/reservations
func (s *HTTPServer) handleReservation(w http.ResponseWriter, r *http.Request) {
	var in reservation.Input
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	c, ok := s.sessionCart(w, r)
	if !ok {
		return
	}
	res, err := s.submitter.Submit(r.Context(), sessionID(r), c, in)
	if err != nil {
		status, body := s.submitError(err)
		writeJSON(w, status, body)
		return
	}
	created := ReservationCreated{Token: res.Token, ID: res.Confirmation.ID}
	if res.Token == "" {
		view := s.confirmationView(res.Confirmation)
		created.Confirmation = &view
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *HTTPServer) submitError(err error) (int, map[string]string) {
	var ve *reservation.ValidationError
	if errors.As(err, &ve) {
		metrics.IncReservation("invalid")
		return http.StatusBadRequest, map[string]string{"error": ve.Message, "field": ve.Field}
	}
	if errors.Is(err, reservation.ErrAlreadySubmitted) {
		return http.StatusConflict, map[string]string{"error": "Ihre Reservierung wird bereits gesendet"}
	}

	msg := reservation.ErrorMessage(err)
	var apiErr *recordapi.APIError
	if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 {
		return http.StatusUnprocessableEntity, map[string]string{"error": msg}
	}
	return http.StatusBadGateway, map[string]string{"error": msg}
}

// GET /api/confirmation/{token}
func (s *HTTPServer) handleConfirmation(w http.ResponseWriter, r *http.Request) {
	conf, err := s.submitter.Confirmation(r.Context(), chi.URLParam(r, "token"))
	if errors.Is(err, reservation.ErrTokenNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Reservierung nicht gefunden", "redirect": "/"})
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("load confirmation")
		writeError(w, http.StatusInternalServerError, reservation.GenericErrorMessage)
		return
	}

	writeJSON(w, http.StatusOK, s.confirmationView(*conf))
}

func (s *HTTPServer) confirmationView(conf reservation.Confirmation) ConfirmationView {
	view := ConfirmationView{Confirmation: conf}
	if s.cfg.Features.CalendarButtons {
		if ev, err := s.pickupEvent(conf); err == nil {
			links := calendar.LinksFor(ev)
			view.Calendar = &links
			view.ICS = "/api/calendar.ics"
		}
	}
	return view
}

// POST /api/calendar.ics
func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	var conf reservation.Confirmation
	if err := decodeJSON(r, &conf); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ev, err := s.pickupEvent(conf)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pickup")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+calendar.FileName)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(calendar.ICS(ev, calendar.ProdID(s.cfg.Brand.Name))))
}

func (s *HTTPServer) pickupEvent(conf reservation.Confirmation) (calendar.Event, error) {
	return calendar.NewPickupEvent(conf, s.cfg.Brand.Name, s.cfg.Brand.Location, time.Local)
}
