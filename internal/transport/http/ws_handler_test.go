package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"trivora/internal/app"
	"trivora/internal/domain"
	"trivora/internal/infra/memory"
	"trivora/internal/infra/sqlite"
	"trivora/internal/remote"
)

type agentFixture struct {
	server   *httptest.Server
	store    *sqlite.Store
	sessions *memory.SessionStore
}

func newAgent(t *testing.T, backendURL, token string) *agentFixture {
	t.Helper()
	store, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "agent.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	client := remote.New(backendURL, token, 2*time.Second)
	network := app.NewConnectivity(client, time.Minute, nil)
	reconciler := app.NewReconciler(store, client, network, time.Hour, nil)
	sessions := memory.NewSessionStore()

	factory := func(cfg app.SessionConfig) *app.Session {
		cfg.UserID = "u1"
		cfg.DeviceID = "device-1"
		return app.NewSession(cfg, app.SessionDeps{
			Remote:   client,
			Cache:    store,
			Results:  store,
			Uploader: reconciler,
			Network:  network,
		})
	}
	router := NewAgentRouter(NewWSHandler(factory, sessions, nil), store, network, sessions, nil)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &agentFixture{server: server, store: store, sessions: sessions}
}

type wsMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// readUntil reads messages until a state in phase arrives.
func readUntil(t *testing.T, conn *websocket.Conn, phase app.Phase) app.SessionState {
	t.Helper()
	for i := 0; i < 20; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json waiting for %s: %v", phase, err)
		}
		if msg.Type == "error" {
			t.Fatalf("unexpected error message %s", msg.Payload)
		}
		var state app.SessionState
		if err := json.Unmarshal(msg.Payload, &state); err != nil {
			t.Fatalf("decode state: %v", err)
		}
		if state.Phase == phase {
			return state
		}
	}
	t.Fatalf("phase %s never arrived", phase)
	return app.SessionState{}
}

func dialSession(t *testing.T, serverURL, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + serverURL[len("http"):] + "/ws/session?" + query
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocketSessionFlow(t *testing.T) {
	b := newBackend(t)
	agent := newAgent(t, b.server.URL, b.token)
	conn := dialSession(t, agent.server.URL, "category=Music&count=2&difficulty=Easy")

	state := readUntil(t, conn, app.PhaseReady)
	if state.Total != 2 || state.Offline {
		t.Fatalf("unexpected ready state %+v", state)
	}

	for i := 0; i < state.Total; i++ {
		if state.Question == nil {
			t.Fatalf("no question in state %+v", state)
		}
		answer := state.Question.Answer
		if i == 1 {
			answer = "definitely wrong"
		}
		_ = conn.WriteJSON(map[string]any{"type": "select", "payload": map[string]string{"answer": answer}})
		_ = conn.WriteJSON(map[string]any{"type": "submit"})
		feedback := readUntil(t, conn, app.PhaseFeedback)
		if feedback.LastCorrect == nil || *feedback.LastCorrect != (i == 0) {
			t.Fatalf("unexpected feedback %+v", feedback)
		}
		_ = conn.WriteJSON(map[string]any{"type": "next"})
		if i+1 < state.Total {
			state = readUntil(t, conn, app.PhaseAnswering)
		}
	}

	done := readUntil(t, conn, app.PhaseCompleted)
	if done.Result == nil || done.Result.Score != 1 || done.Result.TotalQuestions != 2 || done.Percentage != 50 {
		t.Fatalf("unexpected completion %+v", done)
	}

	// the immediate upload finishes after the completed state is published
	waitFor(t, func() bool {
		pending, _ := agent.store.UnsyncedResults(context.Background())
		return len(pending) == 0
	})
	history, _ := b.profiles.Results(context.Background(), "u1", 0)
	if len(history) != 1 || history[0].Category != "Music" || history[0].DeviceID != "device-1" {
		t.Fatalf("expected uploaded result, got %+v", history)
	}
}

func TestWebSocketRejectsUnknownDifficulty(t *testing.T) {
	agent := newAgent(t, "http://127.0.0.1:1", "")
	u := "ws" + agent.server.URL[len("http"):] + "/ws/session?category=Science&difficulty=expert"
	conn, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		conn.Close()
		t.Fatalf("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
	if len(agent.sessions.Active()) != 0 {
		t.Fatalf("no session should be registered")
	}
}

func TestWebSocketNormalizesDifficultyCase(t *testing.T) {
	b := newBackend(t)
	agent := newAgent(t, b.server.URL, b.token)
	conn := dialSession(t, agent.server.URL, "category=Music&count=1&difficulty=hard")

	state := readUntil(t, conn, app.PhaseReady)
	if state.Difficulty != domain.DifficultyHard {
		t.Fatalf("expected Hard, got %q", state.Difficulty)
	}
}

func TestSessionStatusByID(t *testing.T) {
	b := newBackend(t)
	agent := newAgent(t, b.server.URL, b.token)
	conn := dialSession(t, agent.server.URL, "category=Music&count=1")
	state := readUntil(t, conn, app.PhaseReady)

	resp, err := agent.server.Client().Get(agent.server.URL + "/status/" + state.SessionID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var got app.SessionState
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || got.SessionID != state.SessionID || got.Phase != app.PhaseReady {
		t.Fatalf("unexpected session status %d %+v", resp.StatusCode, got)
	}

	missing, err := agent.server.Client().Get(agent.server.URL + "/status/nope")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	missing.Body.Close()
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown session, got %d", missing.StatusCode)
	}
}

func TestEnqueueGivesUpAfterWriterExit(t *testing.T) {
	send := make(chan outboundMessage, 1)
	send <- outboundMessage{Type: "state"}
	writerDone := make(chan struct{})
	close(writerDone)

	returned := make(chan bool, 1)
	go func() {
		returned <- enqueue(send, writerDone, outboundMessage{Type: "error"})
	}()
	select {
	case ok := <-returned:
		if ok {
			t.Fatalf("message should not be queued on a full channel with no writer")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("enqueue blocked after the writer exited")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWebSocketOfflineWithoutCacheReportsError(t *testing.T) {
	agent := newAgent(t, "http://127.0.0.1:1", "")
	conn := dialSession(t, agent.server.URL, "category=Science")

	state := readUntil(t, conn, app.PhaseError)
	if state.Error != app.NoOfflineQuestionsMessage {
		t.Fatalf("unexpected error %q", state.Error)
	}

	_ = conn.WriteJSON(map[string]any{"type": "dance"})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "error" {
		t.Fatalf("expected error message, got %s", msg.Type)
	}
}

func TestAgentStatus(t *testing.T) {
	agent := newAgent(t, "http://127.0.0.1:1", "")

	resp, err := agent.server.Client().Get(agent.server.URL + "/status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	defer resp.Body.Close()
	var status AgentStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status.Online || status.Sync.PendingSyncCount != 0 || len(status.Sessions) != 0 {
		t.Fatalf("unexpected status %+v", status)
	}

	health, err := agent.server.Client().Get(agent.server.URL + "/healthz")
	if err != nil || health.StatusCode != 200 {
		t.Fatalf("healthz: %v", err)
	}
	health.Body.Close()
}
