// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/verax/verax/internal/app"
	"github.com/verax/verax/internal/domain/model"
	"github.com/verax/verax/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Submit pushes an attestation onto the async write path.
	Submit(ctx context.Context, req service.SubmitRequest) (service.SubmitResult, error)

	// Read operations expose ledger data.
	GetRaw(ctx context.Context, key model.IdentityKey) ([]byte, error)
	RecordCount(ctx context.Context, key model.IdentityKey) (int, error)
	Records(ctx context.Context, key model.IdentityKey) ([]types.RecordView, error)
	Profile(ctx context.Context, key model.IdentityKey) (types.Profile, error)
	Verify(ctx context.Context, key model.IdentityKey) (types.Verification, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	recordsHandler *RecordsHandler
	ledgerHandler  *LedgerHandler
	profileHandler *ProfileHandler
	verifyHandler  *VerifyHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		recordsHandler: NewRecordsHandler(deps),
		ledgerHandler:  NewLedgerHandler(deps),
		profileHandler: NewProfileHandler(deps),
		verifyHandler:  NewVerifyHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/records", MetricsMiddleware(s.recordsHandler.HandlePostRecord, "records"))
	mux.HandleFunc("/ledgers/", MetricsMiddleware(s.ledgerHandler.HandleGetLedger, "ledgers"))
	mux.HandleFunc("/profiles/", MetricsMiddleware(s.profileHandler.HandleGetProfile, "profiles"))
	mux.HandleFunc("/verify/", MetricsMiddleware(s.verifyHandler.HandleGetVerify, "verify"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
