package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ledgersync/internal/core"
	"ledgersync/internal/gateway"
)

// ledgerView is the read payload: the snapshot plus the aggregate
// derived from it, always from the same revision.
type ledgerView struct {
	Revision  int64              `json:"revision"`
	Entries   []core.LedgerEntry `json:"entries"`
	Aggregate core.Aggregate     `json:"aggregate"`
}

func (s *Server) view(snap core.Snapshot) ledgerView {
	return ledgerView{
		Revision:  snap.Revision,
		Entries:   snap.Entries,
		Aggregate: s.deriver.Derive(snap),
	}
}

func (s *Server) handleAddEntry(w http.ResponseWriter, r *http.Request) {
	var req gateway.AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %v", err))
		return
	}

	entry, err := s.gateway.Add(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.gateway.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLedger(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.feed.Current()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "loading"})
		return
	}
	writeJSON(w, http.StatusOK, s.view(snap))
}

// handleStream pushes one event per delivered snapshot. Clients joining
// late immediately get the current state.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, updates := s.watch()
	defer s.unwatch(id)

	if snap, ok := s.feed.Current(); ok {
		if err := s.writeEvent(w, flusher, snap); err != nil {
			return
		}
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case snap := <-updates:
			if err := s.writeEvent(w, flusher, snap); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeEvent(w http.ResponseWriter, flusher http.Flusher, snap core.Snapshot) error {
	b, err := json.Marshal(s.view(snap))
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, gateway.ErrMutationInFlight):
		return http.StatusConflict
	case errors.Is(err, core.ErrWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
