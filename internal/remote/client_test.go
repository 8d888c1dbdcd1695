package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trivora/internal/domain"
)

func TestQuestionsByCategoryDecodesEnvelope(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.EscapedPath()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"count":   1,
			"data": []domain.Question{{
				ID: "q1", Category: "Pop Culture", Text: "?", Choices: []string{"a", "b"}, Answer: "a", Difficulty: "Easy",
			}},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, "tok", time.Second)
	qs, err := client.QuestionsByCategory(context.Background(), "Pop Culture")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(qs) != 1 || qs[0].ID != "q1" || qs[0].Answer != "a" {
		t.Fatalf("unexpected questions: %+v", qs)
	}
	if gotAuth != "Bearer tok" {
		t.Fatalf("expected bearer token, got %q", gotAuth)
	}
	if gotPath != "/api/questions/category/Pop%20Culture" {
		t.Fatalf("unexpected path %q", gotPath)
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, "", time.Second).RandomQuestions(context.Background(), 3)
	if domain.FailureKindOf(err) != domain.FailureTransport {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if !domain.ShouldFallback(err) {
		t.Fatalf("transport failures must allow fallback")
	}
}

func TestHTTPFailureCarriesStatusAndMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"error":   "Count must be between 1 and 50",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).RandomQuestions(context.Background(), 100)
	var re *domain.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if re.Kind != domain.FailureHTTP || re.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected failure: kind=%s status=%d", re.Kind, re.StatusCode)
	}
	if re.Message != "Count must be between 1 and 50" {
		t.Fatalf("unexpected message %q", re.Message)
	}
	if !domain.ShouldFallback(err) {
		t.Fatalf("http failures must allow fallback")
	}
}

func TestDomainFailureOnSuccessFalse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"message": "Validation failed",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).SubmitResult(context.Background(), domain.QuizResultRequest{})
	if domain.FailureKindOf(err) != domain.FailureDomain {
		t.Fatalf("expected domain failure, got %v", err)
	}
	if domain.ShouldFallback(err) {
		t.Fatalf("domain failures must not trigger fallback")
	}
}

func TestSubmitResultSendsBody(t *testing.T) {
	var got domain.QuizResultRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/quiz-results" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": domain.SubmitResultResponse{
				QuizID:    "srv-1",
				UserStats: domain.UserStats{TotalQuizzes: 1, TotalScore: 4},
			},
		})
	}))
	defer srv.Close()

	req := domain.QuizResultRequest{Category: "Science", Difficulty: "Easy", Score: 4, TotalQuestions: 5, CorrectAnswers: 4, TimeSpent: 30, DeviceID: "dev"}
	resp, err := New(srv.URL, "", time.Second).SubmitResult(context.Background(), req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got != req {
		t.Fatalf("server received %+v", got)
	}
	if resp.QuizID != "srv-1" || resp.UserStats.TotalScore != 4 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestNonEnvelopeBodyIsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>captive portal</html>"))
	}))
	defer srv.Close()

	err := New(srv.URL, "", time.Second).Ping(context.Background())
	if domain.FailureKindOf(err) != domain.FailureHTTP {
		t.Fatalf("expected http failure for a non-envelope body, got %v", err)
	}
}
