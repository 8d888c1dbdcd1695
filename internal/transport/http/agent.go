package http

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"trivora/internal/app"
	"trivora/internal/domain"
	"trivora/internal/infra/memory"
)

// SyncStatusSource reads the device's sync bookkeeping.
type SyncStatusSource interface {
	SyncStatus(ctx context.Context) (domain.SyncStatus, error)
	AvailableCount(ctx context.Context) (int, error)
}

// AgentStatus is served on /status.
type AgentStatus struct {
	Online             bool               `json:"online"`
	Sync               domain.SyncStatus  `json:"sync"`
	AvailableQuestions int                `json:"availableQuestions"`
	Sessions           []app.SessionState `json:"sessions"`
}

// NewAgentRouter exposes the local session stream and status endpoints of the device agent.
func NewAgentRouter(ws *WSHandler, store SyncStatusSource, network app.NetworkState, sessions *memory.SessionStore, logger *zap.Logger) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		status, err := store.SyncStatus(req.Context())
		if err != nil {
			logger.Error("read sync status failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, domain.APIResponse[any]{Error: "Internal server error"})
			return
		}
		available, err := store.AvailableCount(req.Context())
		if err != nil {
			logger.Error("count cached questions failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, domain.APIResponse[any]{Error: "Internal server error"})
			return
		}
		writeJSON(w, http.StatusOK, AgentStatus{
			Online:             network.Online(),
			Sync:               status,
			AvailableQuestions: available,
			Sessions:           sessions.Active(),
		})
	}).Methods(http.MethodGet)

	r.HandleFunc("/status/{sessionId}", func(w http.ResponseWriter, req *http.Request) {
		id := mux.Vars(req)["sessionId"]
		session, ok := sessions.Get(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, domain.APIResponse[any]{Error: "Session not found"})
			return
		}
		writeJSON(w, http.StatusOK, session.State())
	}).Methods(http.MethodGet)

	r.HandleFunc("/ws/session", ws.ServeWS)
	return r
}
