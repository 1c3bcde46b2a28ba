package api

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// rawLedgerResponse carries the raw buffer for offline decoding.
type rawLedgerResponse struct {
	IdentityKey string `json:"identity_key"`
	Ledger      string `json:"ledger"` // base64
	ByteLength  int    `json:"byte_length"`
}

type countResponse struct {
	IdentityKey string `json:"identity_key"`
	RecordCount int    `json:"record_count"`
}

// LedgerHandler handles raw ledger reads.
type LedgerHandler struct {
	deps Dependencies
}

// NewLedgerHandler creates a new ledger handler.
func NewLedgerHandler(deps Dependencies) *LedgerHandler {
	return &LedgerHandler{deps: deps}
}

// HandleGetLedger handles GET /ledgers/{key}/raw, /ledgers/{key}/count
// and /ledgers/{key}/records requests.
func (h *LedgerHandler) HandleGetLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameters after /ledgers/
	rest := strings.TrimPrefix(r.URL.Path, "/ledgers/")
	keyStr, view, ok := strings.Cut(rest, "/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	key, err := parseKey(keyStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	switch view {
	case "raw":
		buf, err := h.deps.GetRaw(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusOK, rawLedgerResponse{
			IdentityKey: key.String(),
			Ledger:      base64.StdEncoding.EncodeToString(buf),
			ByteLength:  len(buf),
		})
	case "count":
		n, err := h.deps.RecordCount(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{IdentityKey: key.String(), RecordCount: n})
	case "records":
		views, err := h.deps.Records(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err)
			return
		}
		writeJSON(w, http.StatusOK, views)
	default:
		http.NotFound(w, r)
	}
}
