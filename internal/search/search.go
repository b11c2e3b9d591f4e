// Package search debounces catalog queries per session and drops responses
// that were overtaken by a newer query.
package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"leihlokal/internal/recordapi"
)

// DefaultDelay is how long a changed search term settles before it is sent.
const DefaultDelay = 300 * time.Millisecond

// ErrStale is returned for a query that a newer one of the same session replaced.
var ErrStale = errors.New("search superseded by newer query")

// Lister fetches a page of items.
type Lister interface {
	ListItems(ctx context.Context, opts recordapi.ListOptions) (*recordapi.ItemsResponse, error)
}

type session struct {
	mu       sync.Mutex
	latest   uint64
	lastTerm string
	used     time.Time
}

// Searcher sequences queries per session.
type Searcher struct {
	api   Lister
	delay time.Duration
	after func(time.Duration) <-chan time.Time

	mu       sync.Mutex
	sessions map[string]*session

	stale   atomic.Int64
	OnStale func()
}

func New(api Lister, delay time.Duration) *Searcher {
	return &Searcher{
		api:      api,
		delay:    delay,
		after:    time.After,
		sessions: make(map[string]*session),
	}
}

func (s *Searcher) session(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &session{}
		s.sessions[id] = sess
	}
	return sess
}

// begin issues the next sequence number and reports whether the term changed.
func (sess *session) begin(term string) (uint64, bool) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.latest++
	changed := term != sess.lastTerm
	sess.lastTerm = term
	sess.used = time.Now()
	return sess.latest, changed
}

func (sess *session) isLatest(seq uint64) bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return seq == sess.latest
}

// Search runs opts for sessionID. A changed search term waits for the
// debounce delay first. The result is returned only if no newer Search of
// the same session started meanwhile; otherwise ErrStale.
func (s *Searcher) Search(ctx context.Context, sessionID string, opts recordapi.ListOptions) (*recordapi.ItemsResponse, error) {
	sess := s.session(sessionID)
	seq, changed := sess.begin(opts.Search)

	if changed && s.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.after(s.delay):
		}
		if !sess.isLatest(seq) {
			return nil, s.dropStale()
		}
	}

	resp, err := s.api.ListItems(ctx, opts)
	if !sess.isLatest(seq) {
		return nil, s.dropStale()
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Searcher) dropStale() error {
	s.stale.Add(1)
	if s.OnStale != nil {
		s.OnStale()
	}
	return ErrStale
}

// Stale is the number of dropped queries.
func (s *Searcher) Stale() int64 {
	return s.stale.Load()
}

// Cleanup forgets sessions idle since before.
func (s *Searcher) Cleanup(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.used.Before(before)
		sess.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
