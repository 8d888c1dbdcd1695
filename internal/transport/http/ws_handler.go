package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trivora/internal/app"
	"trivora/internal/domain"
	"trivora/internal/infra/memory"
)

// SessionFactory builds a fresh quiz session for a websocket client.
type SessionFactory func(cfg app.SessionConfig) *app.Session

// WSHandler streams quiz session state over a websocket and applies the
// client's commands to the session.
type WSHandler struct {
	newSession SessionFactory
	sessions   *memory.SessionStore
	logger     *zap.Logger
	upgrader   websocket.Upgrader
}

func NewWSHandler(newSession SessionFactory, sessions *memory.SessionStore, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		newSession: newSession,
		sessions:   sessions,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type selectPayload struct {
	Answer string `json:"answer"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS handles /ws/session?category=&difficulty=&count=. An empty category
// plays random questions; an unknown difficulty is answered with 400.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cfg := app.SessionConfig{Category: q.Get("category")}
	if raw := q.Get("difficulty"); raw != "" {
		difficulty, ok := domain.NormalizeDifficulty(raw)
		if !ok {
			http.Error(w, "invalid difficulty", http.StatusBadRequest)
			return
		}
		cfg.Difficulty = difficulty
	}
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid count", http.StatusBadRequest)
			return
		}
		cfg.Count = n
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	session := h.newSession(cfg)
	h.sessions.Put(session)
	defer h.sessions.Delete(session.ID())
	log := h.logger.With(zap.String("session", session.ID()))

	updates, cancel := session.Subscribe()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer so the connection never sees concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug("ws write failed", zap.Error(err))
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case state, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: "state", Payload: state}:
				case <-closeSignals:
					return
				case <-writerDone:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	ctx := r.Context()
	reply := func(err error) {
		if err != nil {
			enqueue(send, writerDone, outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		}
	}

	// a failed first load is already visible as the error phase
	_ = session.Load(ctx)

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply(h.apply(ctx, session, inbound))
	}

	cancel()
	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer, giving up once the writer has exited.
func enqueue(send chan<- outboundMessage, writerDone <-chan struct{}, msg outboundMessage) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

func (h *WSHandler) apply(ctx context.Context, session *app.Session, msg inboundMessage) error {
	switch msg.Type {
	case "select":
		var payload selectPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return errInvalidPayload
		}
		return session.Select(payload.Answer)
	case "submit":
		return session.Submit(ctx)
	case "next":
		return session.Next(ctx)
	case "restart":
		return session.Restart()
	case "load":
		return session.Load(ctx)
	default:
		return errUnsupportedMessage
	}
}

type wsError string

func (e wsError) Error() string { return string(e) }

const (
	errInvalidPayload     = wsError("invalid payload")
	errUnsupportedMessage = wsError("unsupported message type")
)
