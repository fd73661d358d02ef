package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"fundledger/internal/auth"
	"fundledger/internal/core"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorBody{Error: code, Detail: detail})
}

// writeLedgerError maps domain errors onto wire statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation_failed", Fields: verr.Fields})
	case errors.Is(err, core.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden", "caller lacks required capability")
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "transaction not found")
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected failure")
	}
}

func callerOrFail(w http.ResponseWriter, r *http.Request) (auth.Caller, bool) {
	caller, ok := auth.CallerFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "no caller on request")
	}
	return caller, ok
}

// parseFilter reads the optional query constraints. Bad values are a
// validation failure, not a silent full listing.
func parseFilter(r *http.Request) (core.Filter, error) {
	verr := &core.ValidationError{}
	var filter core.Filter

	q := r.URL.Query()
	if raw := q.Get("kind"); raw != "" {
		kind, err := core.ParseKind(raw)
		if err != nil {
			verr.Fields = map[string]string{"kind": "must be income or expense"}
			return core.Filter{}, verr
		}
		filter.Kind = kind
	}
	filter.Category = q.Get("category")
	if raw := q.Get("from"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			verr.Fields = map[string]string{"from": "must be YYYY-MM-DD"}
			return core.Filter{}, verr
		}
		filter.DateFrom = d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := core.ParseDate(raw)
		if err != nil {
			verr.Fields = map[string]string{"to": "must be YYYY-MM-DD"}
			return core.Filter{}, verr
		}
		filter.DateTo = d
	}
	return filter, nil
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// handleToken exchanges name/password credentials for a bearer token.
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	caller, err := s.users.Authenticate(req.Name, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "bad_credentials", "unknown user or wrong password")
		return
	}

	token, err := s.issuer.Mint(caller)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to mint token", "user", req.Name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	res, err := s.ledger.List(r.Context(), caller, filter)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}

	var in core.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	created, err := s.ledger.Create(r.Context(), caller, in)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	s.broadcastActivity(core.OpCreate, caller.Name, created)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "transaction not found")
		return
	}

	var in core.TransactionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "malformed JSON body")
		return
	}

	updated, err := s.ledger.Update(r.Context(), caller, id, in)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	s.broadcastActivity(core.OpUpdate, caller.Name, updated)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "transaction not found")
		return
	}

	if err := s.ledger.Delete(r.Context(), caller, id); err != nil {
		writeLedgerError(w, err)
		return
	}

	s.broadcastActivity(core.OpDelete, caller.Name, core.Transaction{ID: id})
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	data, err := s.ledger.ExportCSV(r.Context(), caller, filter)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	filename := fmt.Sprintf("funding-export-%s.csv", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}

	filter, err := parseFilter(r)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	data, err := s.ledger.ExportPDF(r.Context(), caller, filter)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	filename := fmt.Sprintf("funding-export-%s.pdf", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrFail(w, r)
	if !ok {
		return
	}

	limit := s.feedLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.ledger.Feed(r.Context(), caller, limit)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
