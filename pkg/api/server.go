package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/attestly/ledger/pkg/events"
	"github.com/attestly/ledger/pkg/ledger"
)

// Server exposes the ledger over REST plus a WebSocket event stream. It is
// an adapter only: every operation maps 1:1 onto an engine or minter call.
type Server struct {
	engine *ledger.Engine
	minter *ledger.Minter
	bus    *events.Bus
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

func NewServer(engine *ledger.Engine, minter *ledger.Minter, bus *events.Bus, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Server{
		engine: engine,
		minter: minter,
		bus:    bus,
		router: mux.NewRouter(),
		hub:    NewHub(log),
		log:    log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Action endpoints
	api.HandleFunc("/actions", s.handleRecordAction).Methods("POST")
	api.HandleFunc("/actions/{id}", s.handleGetAction).Methods("GET")
	api.HandleFunc("/actions/{id}/verifications", s.handleVerifyAction).Methods("POST")
	api.HandleFunc("/actions/{id}/reject", s.handleRejectAction).Methods("POST")
	api.HandleFunc("/actions/{id}/audit", s.handleAuditAction).Methods("POST")

	// Achievement endpoints
	api.HandleFunc("/achievements", s.handleMintAchievement).Methods("POST")
	api.HandleFunc("/achievements/{id}", s.handleGetAchievement).Methods("GET")
	api.HandleFunc("/achievements/{id}/payouts", s.handlePayRoyalties).Methods("POST")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves HTTP until the listener fails.
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx, s.bus)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	handler := c.Handler(s.router)

	s.log.Infow("api_server_starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	return srv.ListenAndServe()
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleRecordAction(w http.ResponseWriter, r *http.Request) {
	var req RecordActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.ActionID == "" {
		respondError(w, http.StatusBadRequest, "missing actionId", "")
		return
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}

	action, err := s.engine.Record(ledger.RecordInput{
		ActionID:          req.ActionID,
		ActionType:        req.ActionType,
		Payload:           payload,
		InitiatorID:       req.InitiatorID,
		RequiredVerifiers: req.RequiredVerifiers,
		Policy:            req.Policy,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	respondJSON(w, action)
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	action, err := s.engine.Get(mux.Vars(r)["id"])
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, action)
}

func (s *Server) handleVerifyAction(w http.ResponseWriter, r *http.Request) {
	var req VerifyActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.VerifierID == "" || req.Signature == "" {
		respondError(w, http.StatusBadRequest, "missing verifierId or signature", "")
		return
	}

	action, err := s.engine.Verify(mux.Vars(r)["id"], req.VerifierID, req.Signature)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, action)
}

func (s *Server) handleRejectAction(w http.ResponseWriter, r *http.Request) {
	var req RejectActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	action, err := s.engine.Reject(mux.Vars(r)["id"], req.Reason)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, action)
}

func (s *Server) handleAuditAction(w http.ResponseWriter, r *http.Request) {
	var req AuditActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	payload, err := json.Marshal(req.Payload)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload", err.Error())
		return
	}

	id := mux.Vars(r)["id"]
	match, err := s.engine.VerifyActionRecord(id, payload)
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, AuditResponse{ActionID: id, Match: match})
}

func (s *Server) handleMintAchievement(w http.ResponseWriter, r *http.Request) {
	var req MintAchievementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.ActionID == "" {
		respondError(w, http.StatusBadRequest, "missing actionId", "")
		return
	}

	achievement, err := s.minter.Mint(ledger.MintInput{
		ActionID:       req.ActionID,
		OwnerID:        req.OwnerID,
		ContributorIDs: req.ContributorIDs,
		Weights:        req.Weights,
		MetadataURI:    req.MetadataURI,
	})
	if err != nil {
		respondLedgerError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	respondJSON(w, achievement)
}

func (s *Server) handleGetAchievement(w http.ResponseWriter, r *http.Request) {
	achievement, err := s.minter.GetAchievement(mux.Vars(r)["id"])
	if err != nil {
		respondLedgerError(w, err)
		return
	}
	respondJSON(w, achievement)
}

func (s *Server) handlePayRoyalties(w http.ResponseWriter, r *http.Request) {
	result, err := s.minter.PayRoyalties(mux.Vars(r)["id"])
	if err != nil && result == nil {
		respondLedgerError(w, err)
		return
	}

	resp := PayoutResponse{
		AchievementID: result.AchievementID,
		Paid:          result.Paid,
		Skipped:       result.Skipped,
	}
	if len(result.Failed) > 0 {
		resp.Failed = make(map[string]string, len(result.Failed))
		for id, ferr := range result.Failed {
			resp.Failed[id] = ferr.Error()
		}
		// Partial success: report what happened, let the caller retry.
		w.WriteHeader(http.StatusAccepted)
	}
	respondJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// respondLedgerError maps the ledger error taxonomy to HTTP statuses.
func respondLedgerError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrUnknownAction),
		errors.Is(err, ledger.ErrUnknownVerifier),
		errors.Is(err, ledger.ErrUnknownAchievement):
		status = http.StatusNotFound
	case errors.Is(err, ledger.ErrDuplicateAction),
		errors.Is(err, ledger.ErrAlreadyMinted),
		errors.Is(err, ledger.ErrInvalidState),
		errors.Is(err, ledger.ErrActionNotCompleted):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrInvalidSignature),
		errors.Is(err, ledger.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrEmptyContributorSet),
		errors.Is(err, ledger.ErrInvalidPolicy):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrBusy):
		status = http.StatusServiceUnavailable
	case errors.Is(err, ledger.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	}
	respondError(w, status, err.Error(), "")
}
