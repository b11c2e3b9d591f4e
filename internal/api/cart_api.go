package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"leihlokal/internal/cart"
	"leihlokal/internal/events"
	"leihlokal/internal/metrics"
	"leihlokal/internal/recordapi"
)

// CartView is the visitor's cart.
type CartView struct {
	Items   []cart.Item `json:"items"`
	Count   int         `json:"count"`
	Limit   int         `json:"limit"`
	Full    bool        `json:"full"`
	Deposit *float64    `json:"deposit,omitempty"`
}

// AddToCartRequest names an item by record id or by inventory number.
type AddToCartRequest struct {
	ID  string `json:"id,omitempty"`
	IID int    `json:"iid,omitempty"`
}

func (s *HTTPServer) cartView(c *cart.Cart) CartView {
	items := c.Items()
	v := CartView{Items: items, Count: len(items), Limit: c.Limit(), Full: c.IsFull()}
	if s.cfg.Features.Deposit {
		var sum float64
		for _, it := range items {
			sum += it.Deposit
		}
		v.Deposit = &sum
	}
	return v
}

// sessionCart answers 503 when the stored cart cannot be read, so a
// transient storage error never replaces it with an empty one.
func (s *HTTPServer) sessionCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	c, err := s.carts.For(r.Context(), sessionID(r))
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Ausleihkorb konnte nicht geladen werden")
		return nil, false
	}
	return c, true
}

// GET /api/cart
func (s *HTTPServer) handleCart(w http.ResponseWriter, r *http.Request) {
	c, ok := s.sessionCart(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.cartView(c))
}

// POST /api/cart/items
func (s *HTTPServer) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var req AddToCartRequest
	if err := decodeJSON(r, &req); err != nil || (req.ID == "" && req.IID <= 0) {
		writeError(w, http.StatusBadRequest, "id oder iid ist erforderlich")
		return
	}

	var (
		item *recordapi.Item
		err  error
	)
	if req.ID != "" {
		item, err = s.catalog.GetItem(r.Context(), req.ID)
	} else {
		item, err = s.catalog.GetItemByIID(r.Context(), req.IID)
	}
	if errors.Is(err, recordapi.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("lookup item for cart")
		writeError(w, http.StatusBadGateway, "Gegenstand konnte nicht geladen werden")
		return
	}
	if !item.IsAvailable() {
		writeError(w, http.StatusConflict, "Dieser Gegenstand ist derzeit nicht verfügbar")
		return
	}

	c, ok := s.sessionCart(w, r)
	if !ok {
		return
	}
	err = c.Add(r.Context(), cart.Item{ID: item.ID, IID: item.IID, Name: item.Name, Deposit: item.Deposit})
	if errors.Is(err, cart.ErrCartFull) {
		metrics.IncCartFull()
		s.publish(events.CartFull, map[string]any{"session": sessionID(r), "limit": c.Limit()})
		writeError(w, http.StatusConflict, fmt.Sprintf("Ihr Ausleihkorb ist voll (maximal %d Gegenstände)", c.Limit()))
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("add to cart")
		writeError(w, http.StatusInternalServerError, "Ausleihkorb konnte nicht gespeichert werden")
		return
	}
	writeJSON(w, http.StatusOK, s.cartView(c))
}

// DELETE /api/cart/items/{id}
func (s *HTTPServer) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	c, ok := s.sessionCart(w, r)
	if !ok {
		return
	}
	if err := c.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.logger.Error().Err(err).Msg("remove from cart")
		writeError(w, http.StatusInternalServerError, "Ausleihkorb konnte nicht gespeichert werden")
		return
	}
	writeJSON(w, http.StatusOK, s.cartView(c))
}

// DELETE /api/cart
func (s *HTTPServer) handleCartClear(w http.ResponseWriter, r *http.Request) {
	c, ok := s.sessionCart(w, r)
	if !ok {
		return
	}
	if err := c.Clear(r.Context()); err != nil {
		s.logger.Error().Err(err).Msg("clear cart")
		writeError(w, http.StatusInternalServerError, "Ausleihkorb konnte nicht gespeichert werden")
		return
	}
	writeJSON(w, http.StatusOK, s.cartView(c))
}

func (s *HTTPServer) publish(eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	ev, err := events.New(eventType, payload)
	if err != nil {
		return
	}
	s.publisher.Publish(ev)
}
