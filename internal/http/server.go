// Package http is the presentation boundary: a JSON API over the
// gateway and the mirrored ledger, plus a server-sent event stream of
// derived aggregates.
package http

import (
	"context"
	"net/http"
	"sync"

	"ledgersync/internal/core"
	"ledgersync/internal/gateway"
	"ledgersync/internal/log"
)

// Feed is the read side the server exposes: the live subscription to
// the ledger collection.
type Feed interface {
	Updates() <-chan core.Snapshot
	Current() (core.Snapshot, bool)
	Err() error
}

type Server struct {
	http.Server
	gateway *gateway.Gateway
	feed    Feed
	deriver core.Deriver
	logger  *log.Logger

	// Fan-out of the single subscription channel to any number of
	// stream clients.
	mu       sync.Mutex
	next     int
	watchers map[int]chan core.Snapshot
}

// NewServer configures routes and middleware, returning a
// ready-to-run http.Server. Run must be started alongside
// ListenAndServe to feed the stream clients.
func NewServer(addr string, gw *gateway.Gateway, feed Feed, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr: addr,
		},
		gateway:  gw,
		feed:     feed,
		logger:   logger.WithComponent(log.ComponentHTTP),
		watchers: make(map[int]chan core.Snapshot),
	}

	mux.HandleFunc("POST /api/entries", s.handleAddEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)
	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("GET /api/ledger/stream", s.handleStream)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	s.Handler = log.Middleware(logger)(withSecurityHeaders(mux))
	return s
}

// Run pumps snapshots from the subscription to the stream clients. It
// returns when ctx ends or the subscription closes; a terminal
// subscription failure is returned as the error.
func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-s.feed.Updates():
			if !ok {
				return s.feed.Err()
			}
			s.broadcast(snap)
		}
	}
}

func (s *Server) broadcast(snap core.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Replace an unconsumed snapshot so a slow client only ever sees
	// the newest state.
	for _, ch := range s.watchers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Server) watch() (int, <-chan core.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	ch := make(chan core.Snapshot, 1)
	s.watchers[id] = ch
	return id, ch
}

func (s *Server) unwatch(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, id)
}

func withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReady reports ready once the mirror has its first snapshot.
func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if _, ok := s.feed.Current(); !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("loading"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
