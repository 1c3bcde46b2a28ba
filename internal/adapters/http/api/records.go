package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	service "github.com/verax/verax/internal/app"
)

// recordRequest mirrors the OpenAPI schema for POST /records.
type recordRequest struct {
	IdentityKey  string `json:"identity_key"`
	Mode         string `json:"mode"`
	Domain       string `json:"domain"`
	Subdomain    string `json:"subdomain,omitempty"`
	Score        uint64 `json:"score"`
	ArtifactHash string `json:"artifact_hash,omitempty"`
	Timestamp    uint64 `json:"timestamp,omitempty"`
}

func (r recordRequest) validate() error {
	switch {
	case strings.TrimSpace(r.IdentityKey) == "":
		return errors.New("missing identity_key")
	case strings.TrimSpace(r.Domain) == "":
		return errors.New("missing domain")
	}
	return nil
}

type ackResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submission_id,omitempty"`
	Duplicate    bool   `json:"duplicate"`
}

// RecordsHandler handles attestation submissions.
type RecordsHandler struct {
	deps Dependencies
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(deps Dependencies) *RecordsHandler {
	return &RecordsHandler{deps: deps}
}

// HandlePostRecord handles POST /records requests.
func (h *RecordsHandler) HandlePostRecord(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_record"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	key, err := parseKey(req.IdentityKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Submit(r.Context(), service.SubmitRequest{
		Key:          key,
		Mode:         req.Mode,
		Domain:       req.Domain,
		Subdomain:    req.Subdomain,
		Score:        req.Score,
		ArtifactHash: req.ArtifactHash,
		Timestamp:    req.Timestamp,
	})
	switch {
	case errors.Is(err, service.ErrInvalidSubmission):
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", fmt.Errorf("%s: %w", op, ErrBackpressure))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}

	if res.Duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{
		Status:       "accepted",
		SubmissionID: res.SubmissionID,
	})
}
