// Package api serves the storefront's JSON API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"leihlokal/internal/cart"
	"leihlokal/internal/config"
	"leihlokal/internal/events"
	"leihlokal/internal/recordapi"
	"leihlokal/internal/reservation"
	"leihlokal/internal/search"
	"leihlokal/internal/slots"
)

// Catalog looks up single items at the record API.
type Catalog interface {
	GetItem(ctx context.Context, id string) (*recordapi.Item, error)
	GetItemByIID(ctx context.Context, iid int) (*recordapi.Item, error)
	ThumbnailURL(itemID, filename, size string) string
}

// Exporter writes the reservation journal as a workbook.
type Exporter interface {
	Export(ctx context.Context, w io.Writer, from, to time.Time) (int, error)
}

// Publisher receives domain events.
type Publisher interface {
	Publish(event events.Event) int
}

// Deps are the collaborators of the HTTP server. Exporter, Proxy and
// Publisher are optional.
type Deps struct {
	Config    *config.Config
	Carts     *cart.Service
	Catalog   Catalog
	Searcher  *search.Searcher
	Submitter *reservation.Submitter
	Generator *slots.Generator
	Exporter  Exporter
	Proxy     http.Handler
	Publisher Publisher
	Logger    *zerolog.Logger
}

// HTTPServer exposes the storefront operations over HTTP.
type HTTPServer struct {
	cfg       *config.Config
	carts     *cart.Service
	catalog   Catalog
	searcher  *search.Searcher
	submitter *reservation.Submitter
	generator *slots.Generator
	exporter  Exporter
	proxy     http.Handler
	publisher Publisher
	limiter   *sessionLimiter
	logger    *zerolog.Logger
	now       func() time.Time

	srv *http.Server
}

func NewHTTPServer(d Deps) *HTTPServer {
	logger := d.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "http").Logger()
	return &HTTPServer{
		cfg:       d.Config,
		carts:     d.Carts,
		catalog:   d.Catalog,
		searcher:  d.Searcher,
		submitter: d.Submitter,
		generator: d.Generator,
		exporter:  d.Exporter,
		proxy:     d.Proxy,
		publisher: d.Publisher,
		limiter:   newSessionLimiter(d.Config.HTTP.RateLimitPerMinute),
		logger:    &l,
		now:       time.Now,
	}
}

// Router builds the route table.
func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Route("/api", func(r chi.Router) {
		r.Use(sessionMiddleware)

		r.Get("/config", s.handleConfig)
		r.Get("/slots", s.handleSlots)
		r.Get("/items", s.handleItems)
		r.Get("/items/{iid}", s.handleItem)

		r.Get("/cart", s.handleCart)
		r.Post("/cart/items", s.handleCartAdd)
		r.Delete("/cart/items/{id}", s.handleCartRemove)
		r.Delete("/cart", s.handleCartClear)

		r.With(s.limiter.middleware).Post("/reservations", s.handleReservation)
		r.Get("/confirmation/{token}", s.handleConfirmation)
		r.Post("/calendar.ics", s.handleCalendar)

		if s.proxy != nil {
			r.Handle("/proxy/*", s.proxy)
		}
	})

	r.With(s.requireAPIKey).Get("/admin/reservations.xlsx", s.handleExport)
	return r
}

// Start serves on addr until ctx is cancelled.
func (s *HTTPServer) Start(ctx context.Context, addr string) error {
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Str("addr", addr).Msg("HTTP server listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Cleanup drops rate limiters idle since before.
func (s *HTTPServer) Cleanup(before time.Time) int {
	return s.limiter.cleanup(before)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
}
