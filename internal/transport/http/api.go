package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"trivora/internal/backend"
	"trivora/internal/domain"
)

// Authenticator resolves the caller of a request from its bearer token.
type Authenticator interface {
	VerifyRequest(r *http.Request) (domain.Caller, error)
}

// API serves the backend REST surface.
type API struct {
	questions     *backend.QuestionService
	users         *backend.UserService
	results       *backend.ResultService
	notifications *backend.NotificationService
	auth          Authenticator
	logger        *zap.Logger
	now           func() time.Time
}

func NewAPI(
	questions *backend.QuestionService,
	users *backend.UserService,
	results *backend.ResultService,
	notifications *backend.NotificationService,
	auth Authenticator,
	logger *zap.Logger,
) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		questions:     questions,
		users:         users,
		results:       results,
		notifications: notifications,
		auth:          auth,
		logger:        logger,
		now:           time.Now,
	}
}

// Router builds the route table. Routes under /api/questions, /api/users and
// /api/quiz-results require a bearer token.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(a.logRequests)
	r.HandleFunc("/", a.health).Methods(http.MethodGet)

	seed := r.PathPrefix("/api/seed").Subrouter()
	seed.HandleFunc("", a.seedQuestions).Methods(http.MethodPost)
	seed.HandleFunc("/seed-questions", a.seedQuestions).Methods(http.MethodPost)

	questions := r.PathPrefix("/api/questions").Subrouter()
	questions.Use(a.requireAuth)
	questions.HandleFunc("", a.listQuestions).Methods(http.MethodGet)
	questions.HandleFunc("", a.createQuestion).Methods(http.MethodPost)
	questions.HandleFunc("/categories", a.listCategories).Methods(http.MethodGet)
	questions.HandleFunc("/category/{category}", a.questionsByCategory).Methods(http.MethodGet)
	questions.HandleFunc("/random", a.randomQuestion).Methods(http.MethodGet)
	questions.HandleFunc("/random/{count}", a.randomQuestions).Methods(http.MethodGet)
	questions.HandleFunc("/{questionId}", a.getQuestion).Methods(http.MethodGet)
	questions.HandleFunc("/{questionId}", a.updateQuestion).Methods(http.MethodPut)
	questions.HandleFunc("/{questionId}", a.deleteQuestion).Methods(http.MethodDelete)

	users := r.PathPrefix("/api/users").Subrouter()
	users.Use(a.requireAuth)
	users.HandleFunc("/profile", a.profile).Methods(http.MethodGet)
	users.HandleFunc("/stats", a.stats).Methods(http.MethodGet)
	users.HandleFunc("/profile/display-name", a.updateDisplayName).Methods(http.MethodPut)
	users.HandleFunc("/fcm-token", a.updatePushToken).Methods(http.MethodPut)
	users.HandleFunc("/fcm-token", a.clearPushToken).Methods(http.MethodDelete)

	results := r.PathPrefix("/api/quiz-results").Subrouter()
	results.Use(a.requireAuth)
	results.HandleFunc("", a.submitResult).Methods(http.MethodPost)
	results.HandleFunc("/history", a.history).Methods(http.MethodGet)
	results.HandleFunc("/category/{category}", a.resultsByCategory).Methods(http.MethodGet)

	r.Handle("/api/notifications/send-test",
		a.requireAuth(http.HandlerFunc(a.sendTestNotification))).Methods(http.MethodPost)
	r.HandleFunc("/api/notifications/send-daily-reminders", a.sendDailyReminders).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(a.notFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(a.notFound)
	return r
}

type callerKey struct{}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, err := a.auth.VerifyRequest(r)
		if err != nil {
			a.logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, domain.APIResponse[any]{Error: "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey{}, caller)))
	})
}

func callerFrom(r *http.Request) domain.Caller {
	caller, _ := r.Context().Value(callerKey{}).(domain.Caller)
	return caller
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(start)),
		)
	})
}

type healthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Success:   true,
		Message:   "Trivia API is running!",
		Timestamp: a.now().UTC().Format(time.RFC3339Nano),
	})
}

type notFoundResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Path    string `json:"path"`
}

func (a *API) notFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, notFoundResponse{Error: "Route not found", Path: r.URL.Path})
}

// fail maps service errors onto the envelope; anything unexpected is a 500
// carrying fallback as its message.
func (a *API) fail(w http.ResponseWriter, err error, fallback string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, domain.APIResponse[any]{Error: "Validation failed", Message: verr.Error()})
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeJSON(w, http.StatusNotFound, domain.APIResponse[any]{Error: "Question not found", Message: err.Error()})
	case errors.Is(err, domain.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, domain.APIResponse[any]{Error: "User not found", Message: "User profile does not exist"})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, domain.APIResponse[any]{Error: "Unauthorized"})
	default:
		a.logger.Error(fallback, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, domain.APIResponse[any]{Error: "Internal server error", Message: fallback})
	}
}

func ok(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, domain.APIResponse[any]{Success: true, Data: data, Message: message})
}

func okCount(w http.ResponseWriter, data any, count int, message string) {
	writeJSON(w, http.StatusOK, domain.APIResponse[any]{Success: true, Data: data, Count: &count, Message: message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.APIResponse[any]{Error: "Invalid request body", Message: err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
