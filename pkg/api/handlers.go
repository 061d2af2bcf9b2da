package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/newdoli/dolisync/pkg/search"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth responds to liveness checks.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authStatus struct {
	State string `json:"state"`
	Login string `json:"login,omitempty"`
	Admin bool   `json:"admin,omitempty"`
}

type connectivityStatus struct {
	Online    bool       `json:"online"`
	LastCheck *time.Time `json:"last_check,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

type statusResponse struct {
	Auth           authStatus            `json:"auth"`
	Connectivity   connectivityStatus    `json:"connectivity"`
	Sync           map[string]syncStatus `json:"sync"`
	PendingChanges int                   `json:"pending_changes"`
}

type syncStatus struct {
	LastSync  *time.Time `json:"last_sync,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// handleStatus reports the session, connectivity, and sync positions.
// The remote credential never appears here.
func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.session.Snapshot()

	resp := statusResponse{
		Auth: authStatus{State: string(snap.State)},
		Sync: make(map[string]syncStatus),
	}

	if snap.User != nil {
		resp.Auth.Login = snap.User.Login
		resp.Auth.Admin = snap.User.Admin
	}

	connState := s.monitor.State()
	resp.Connectivity.Online = connState.IsOnline
	resp.Connectivity.LastError = connState.LastError

	if !connState.LastCheck.IsZero() {
		t := connState.LastCheck
		resp.Connectivity.LastCheck = &t
	}

	for entity, st := range s.coordinator.SyncStatus() {
		out := syncStatus{LastError: st.LastError}

		if !st.LastSync.IsZero() {
			t := st.LastSync
			out.LastSync = &t
		}

		resp.Sync[entity] = out
	}

	pending, err := s.coordinator.PendingChanges(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("Reading pending changes failed")
	} else {
		resp.PendingChanges = len(pending)
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleThirdParties serves the mirrored third parties, filtered by
// the q, client, supplier, prospect, and status query parameters.
func (s *server) handleThirdParties(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListThirdParties(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"reading third parties failed"})

		return
	}

	q := r.URL.Query()

	facets := search.ThirdPartyFacets{
		Client:   parseBoolParam(q.Get("client")),
		Supplier: parseBoolParam(q.Get("supplier")),
		Prospect: parseBoolParam(q.Get("prospect")),
		Status:   q.Get("status"),
	}

	writeJSON(w, http.StatusOK,
		search.FilterThirdParties(items, q.Get("q"), facets))
}

// handleProducts serves the mirrored catalogue, filtered by the q,
// type, status, and category query parameters.
func (s *server) handleProducts(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListProducts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{"reading products failed"})

		return
	}

	q := r.URL.Query()

	facets := search.ProductFacets{
		Type:     q.Get("type"),
		Status:   q.Get("status"),
		Category: q.Get("category"),
	}

	writeJSON(w, http.StatusOK,
		search.FilterProducts(items, q.Get("q"), facets))
}

// parseBoolParam maps an optional query parameter onto a tri-state
// facet: absent or unparsable means unconstrained.
func parseBoolParam(raw string) *bool {
	if raw == "" {
		return nil
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}

	return &b
}
