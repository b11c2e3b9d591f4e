package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"leihlokal/internal/cart"
	"leihlokal/internal/recordapi"
	"leihlokal/internal/search"
	"leihlokal/internal/slots"
)

const notFoundMessage = "Gegenstand nicht gefunden"

// ItemView is a catalog item as shown in listings and on detail pages.
type ItemView struct {
	recordapi.Item
	Available   bool   `json:"available"`
	StatusLabel string `json:"statusLabel"`
	InCart      bool   `json:"inCart"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// ItemsPage is one page of the catalog listing.
type ItemsPage struct {
	Page       int        `json:"page"`
	PerPage    int        `json:"perPage"`
	TotalItems int        `json:"totalItems"`
	TotalPages int        `json:"totalPages"`
	Items      []ItemView `json:"items"`
}

// SlotDay is one selectable pickup day with its preselected slot.
type SlotDay struct {
	slots.DayGroup
	Default slots.SlotInfo `json:"default"`
}

// GET /api/config
func (s *HTTPServer) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Public())
}

// GET /api/slots
func (s *HTTPServer) handleSlots(w http.ResponseWriter, _ *http.Request) {
	groups := slots.GroupByDate(s.generator.Generate(s.cfg.Limits.PickupDays, s.now()))
	days := make([]SlotDay, 0, len(groups))
	for _, g := range groups {
		def, _ := slots.DefaultPick(g, s.cfg.Features.TimeSelection)
		days = append(days, SlotDay{DayGroup: g, Default: def})
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// GET /api/items?q=&page=&all=1
func (s *HTTPServer) handleItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := recordapi.ListOptions{
		Page:          1,
		PerPage:       s.cfg.Limits.ItemsPerPage,
		AvailableOnly: s.cfg.Defaults.AvailableOnly,
		Sort:          s.cfg.Defaults.Sort,
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		opts.Page = p
	}
	if s.cfg.Features.Search {
		opts.Search = q.Get("q")
	}
	if s.cfg.Features.AvailabilityToggle && q.Has("all") {
		opts.AvailableOnly = q.Get("all") != "1"
	}

	resp, err := s.searcher.Search(r.Context(), sessionID(r), opts)
	if errors.Is(err, search.ErrStale) {
		writeError(w, http.StatusConflict, "superseded by a newer search")
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("list items")
		writeError(w, http.StatusBadGateway, "Gegenstände konnten nicht geladen werden")
		return
	}

	c, _ := s.carts.For(r.Context(), sessionID(r))
	page := ItemsPage{
		Page:       resp.Page,
		PerPage:    resp.PerPage,
		TotalItems: resp.TotalItems,
		TotalPages: resp.TotalPages,
		Items:      make([]ItemView, 0, len(resp.Items)),
	}
	for _, it := range resp.Items {
		page.Items = append(page.Items, s.view(it, c))
	}
	writeJSON(w, http.StatusOK, page)
}

// GET /api/items/{iid}
func (s *HTTPServer) handleItem(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Features.DetailPages {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	iid, err := strconv.Atoi(chi.URLParam(r, "iid"))
	if err != nil {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}

	item, err := s.catalog.GetItemByIID(r.Context(), iid)
	if errors.Is(err, recordapi.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFoundMessage)
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Int("iid", iid).Msg("get item")
		writeError(w, http.StatusBadGateway, "Gegenstand konnte nicht geladen werden")
		return
	}

	c, _ := s.carts.For(r.Context(), sessionID(r))
	writeJSON(w, http.StatusOK, s.view(*item, c))
}

// view renders it for the listing; c may be nil when the cart could not be
// loaded, in which case nothing is marked as in the cart.
func (s *HTTPServer) view(it recordapi.Item, c *cart.Cart) ItemView {
	v := ItemView{
		Item:        it,
		Available:   it.IsAvailable(),
		StatusLabel: it.Status.Label(),
		InCart:      c != nil && c.Contains(it.ID),
	}
	if len(it.Images) > 0 {
		v.Thumbnail = s.catalog.ThumbnailURL(it.ID, it.Images[0], "")
	}
	return v
}
