package reservation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"leihlokal/internal/cart"
	"leihlokal/internal/events"
	"leihlokal/internal/recordapi"
	"leihlokal/internal/slots"
)

// Creator creates reservations at the record API.
type Creator interface {
	CreateReservation(ctx context.Context, req recordapi.ReservationRequest) (*recordapi.ReservationResponse, error)
}

// Cart is the part of a cart the submission reads and empties.
type Cart interface {
	Items() []cart.Item
	Discard(ctx context.Context, ids []string) error
}

// Publisher receives confirmed and failed submissions.
type Publisher interface {
	Publish(event events.Event) int
}

// Result is a successful submission. Token is empty when the confirmation
// could not be stored; Confirmation still describes the reservation.
type Result struct {
	Token        string
	Confirmation Confirmation
}

// Submitter runs submission attempts, one in flight per session.
type Submitter struct {
	api       Creator
	generator *slots.Generator
	tokens    TokenStore
	publisher Publisher
	fsm       *FSM
	logger    *zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	attempts map[string]*Attempt
}

func NewSubmitter(api Creator, generator *slots.Generator, tokens TokenStore, publisher Publisher, logger *zerolog.Logger) *Submitter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "reservation").Logger()
	return &Submitter{
		api:       api,
		generator: generator,
		tokens:    tokens,
		publisher: publisher,
		fsm:       NewFSM(),
		logger:    &l,
		now:       time.Now,
		attempts:  make(map[string]*Attempt),
	}
}

// Attempt returns the attempt of sessionID, creating an idle one.
func (s *Submitter) Attempt(sessionID string) *Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[sessionID]
	if !ok {
		a = newAttempt()
		s.attempts[sessionID] = a
	}
	return a
}

// Submit validates in, creates the reservation and on success removes the
// reserved items from c and issues a confirmation token. On failure c is left untouched and the
// attempt returns to idle with in preserved.
func (s *Submitter) Submit(ctx context.Context, sessionID string, c Cart, in Input) (*Result, error) {
	in = in.Normalize()
	items := c.Items()
	now := s.now()

	if err := Validate(in, len(items), s.generator, now); err != nil {
		s.Attempt(sessionID).setError(ErrorMessage(err))
		return nil, err
	}

	a := s.Attempt(sessionID)
	if !a.begin(s.fsm, in) {
		return nil, ErrAlreadySubmitted
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	req := recordapi.ReservationRequest{
		CustomerEmail: in.Email,
		Items:         ids,
		Pickup:        in.Pickup,
		Comments:      in.Comments,
	}

	resp, err := s.api.CreateReservation(ctx, req)
	if err != nil {
		msg := ErrorMessage(err)
		s.fsm.Transition(a, StateFailed)
		a.setError(msg)
		s.fsm.Transition(a, StateIdle)

		s.logger.Warn().Err(err).Str("session", sessionID).Int("items", len(ids)).Msg("reservation failed")
		s.publish(events.ReservationFailed, map[string]any{"message": msg, "items": len(ids)})
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	conf := Confirmation{
		ID:        resp.ID,
		Email:     in.Email,
		Pickup:    in.Pickup,
		Comments:  in.Comments,
		Items:     make([]ConfirmedItem, len(items)),
		CreatedAt: now,
	}
	for i, it := range items {
		conf.Items[i] = ConfirmedItem{ID: it.ID, IID: it.IID, Name: it.Name}
	}

	s.fsm.Transition(a, StateConfirmed)
	defer s.fsm.Transition(a, StateIdle)

	// Items added while the request was in flight stay in the cart.
	if err := c.Discard(ctx, ids); err != nil {
		s.logger.Error().Err(err).Str("reservation", resp.ID).Msg("failed to empty cart after reservation")
	}

	token, err := s.tokens.Issue(ctx, conf)
	if err != nil {
		s.logger.Error().Err(err).Str("reservation", resp.ID).Msg("failed to issue confirmation token")
	}

	s.logger.Info().Str("reservation", resp.ID).Str("pickup", in.Pickup).Int("items", len(ids)).Msg("reservation confirmed")
	s.publish(events.ReservationConfirmed, conf)

	return &Result{Token: token, Confirmation: conf}, nil
}

// Confirmation consumes token.
func (s *Submitter) Confirmation(ctx context.Context, token string) (*Confirmation, error) {
	if token == "" {
		return nil, ErrTokenNotFound
	}
	return s.tokens.Consume(ctx, token)
}

// Cleanup forgets idle attempts not touched since before.
func (s *Submitter) Cleanup(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, a := range s.attempts {
		if a.idleSince(before) {
			delete(s.attempts, id)
			removed++
		}
	}
	return removed
}

func (s *Submitter) publish(eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	ev, err := events.New(eventType, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("encode event")
		return
	}
	s.publisher.Publish(ev)
}
