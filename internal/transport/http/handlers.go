package http

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gorilla/mux"

	"trivora/internal/backend"
	"trivora/internal/domain"
)

func (a *API) listQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := a.questions.All(r.Context())
	if err != nil {
		a.fail(w, err, "Failed to fetch questions")
		return
	}
	if len(qs) == 0 {
		okCount(w, qs, 0, "No questions found")
		return
	}
	okCount(w, qs, len(qs), fmt.Sprintf("Found %d questions", len(qs)))
}

func (a *API) createQuestion(w http.ResponseWriter, r *http.Request) {
	var q domain.Question
	if !decodeBody(w, r, &q) {
		return
	}
	q.ID = ""
	created, err := a.questions.Create(r.Context(), q)
	if err != nil {
		a.fail(w, err, "Failed to create question")
		return
	}
	count := 1
	writeJSON(w, http.StatusCreated, domain.APIResponse[any]{
		Success: true, Data: created, Count: &count, Message: "Question created successfully",
	})
}

func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := a.questions.Categories(r.Context())
	if err != nil {
		a.fail(w, err, "Failed to fetch categories")
		return
	}
	if len(cats) == 0 {
		okCount(w, cats, 0, "No categories found")
		return
	}
	okCount(w, cats, len(cats), fmt.Sprintf("Found %d categories", len(cats)))
}

func (a *API) questionsByCategory(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]
	qs, err := a.questions.ByCategory(r.Context(), category)
	if err != nil {
		a.fail(w, err, "Failed to fetch questions by category")
		return
	}
	if len(qs) == 0 {
		okCount(w, qs, 0, "No questions found for category: "+category)
		return
	}
	okCount(w, qs, len(qs), fmt.Sprintf("Found %d questions in %s category", len(qs), category))
}

func (a *API) randomQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := a.questions.Random(r.Context())
	if err != nil {
		a.fail(w, err, "Failed to fetch random question")
		return
	}
	if q == nil {
		okCount(w, nil, 0, "No questions found in database")
		return
	}
	okCount(w, q, 1, "Random question retrieved successfully")
}

func (a *API) randomQuestions(w http.ResponseWriter, r *http.Request) {
	n, err := backend.ParseRandomCount(mux.Vars(r)["count"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, domain.APIResponse[any]{Error: "Invalid count", Message: err.Error()})
		return
	}
	qs, err := a.questions.RandomN(r.Context(), n)
	if err != nil {
		a.fail(w, err, "Failed to fetch random questions")
		return
	}
	if len(qs) == 0 {
		okCount(w, qs, 0, "No questions found in database")
		return
	}
	okCount(w, qs, len(qs), fmt.Sprintf("Retrieved %d random questions", len(qs)))
}

func (a *API) getQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := a.questions.Get(r.Context(), mux.Vars(r)["questionId"])
	if err != nil {
		a.fail(w, err, "Failed to fetch question")
		return
	}
	okCount(w, q, 1, "Question retrieved successfully")
}

func (a *API) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var patch domain.QuestionPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	q, err := a.questions.Update(r.Context(), mux.Vars(r)["questionId"], patch)
	if err != nil {
		a.fail(w, err, "Failed to update question")
		return
	}
	okCount(w, q, 1, "Question updated successfully")
}

func (a *API) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	if err := a.questions.Delete(r.Context(), mux.Vars(r)["questionId"]); err != nil {
		a.fail(w, err, "Failed to delete question")
		return
	}
	okCount(w, nil, 0, "Question deleted successfully")
}

type seedResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Categories []string `json:"categories"`
}

func (a *API) seedQuestions(w http.ResponseWriter, r *http.Request) {
	n, err := a.questions.Seed(r.Context())
	if err != nil {
		a.fail(w, err, "Failed to seed questions")
		return
	}
	samples, _ := backend.SampleQuestions()
	seen := map[string]bool{}
	categories := make([]string, 0)
	for _, q := range samples {
		if !seen[q.Category] {
			seen[q.Category] = true
			categories = append(categories, q.Category)
		}
	}
	sort.Strings(categories)
	writeJSON(w, http.StatusOK, seedResponse{
		Success:    true,
		Message:    fmt.Sprintf("Successfully added %d sample questions", n),
		Categories: categories,
	})
}

func (a *API) profile(w http.ResponseWriter, r *http.Request) {
	user, created, err := a.users.Profile(r.Context(), callerFrom(r))
	if err != nil {
		a.fail(w, err, "Failed to get or create user profile")
		return
	}
	msg := "User profile retrieved successfully"
	if created {
		msg = "User profile created successfully"
	}
	okCount(w, domain.UserProfile{User: &user}, 1, msg)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := a.users.Stats(r.Context(), callerFrom(r).UserID)
	if err != nil {
		a.fail(w, err, "Failed to fetch user statistics")
		return
	}
	ok(w, stats, "User statistics retrieved successfully")
}

func (a *API) updateDisplayName(w http.ResponseWriter, r *http.Request) {
	var body domain.DisplayNameRequest
	if !decodeBody(w, r, &body) {
		return
	}
	user, err := a.users.UpdateDisplayName(r.Context(), callerFrom(r).UserID, body.DisplayName)
	if err != nil {
		a.fail(w, err, "Failed to update display name")
		return
	}
	okCount(w, domain.UserProfile{User: &user}, 1, "Display name updated successfully")
}

func (a *API) updatePushToken(w http.ResponseWriter, r *http.Request) {
	var body domain.PushTokenRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if err := a.users.UpdatePushToken(r.Context(), callerFrom(r).UserID, body.FCMToken); err != nil {
		a.fail(w, err, "Failed to update FCM token")
		return
	}
	ok(w, nil, "FCM token updated successfully")
}

func (a *API) clearPushToken(w http.ResponseWriter, r *http.Request) {
	if err := a.users.ClearPushToken(r.Context(), callerFrom(r).UserID); err != nil {
		a.fail(w, err, "Failed to remove FCM token")
		return
	}
	ok(w, nil, "FCM token removed successfully")
}

func (a *API) submitResult(w http.ResponseWriter, r *http.Request) {
	var req domain.QuizResultRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := a.results.Submit(r.Context(), callerFrom(r), req)
	if err != nil {
		a.fail(w, err, "Failed to save quiz results")
		return
	}
	ok(w, resp, "Quiz results saved successfully")
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	limit := backend.DefaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	results, err := a.results.History(r.Context(), callerFrom(r).UserID, limit)
	if err != nil {
		a.fail(w, err, "Failed to fetch quiz history")
		return
	}
	if len(results) == 0 {
		okCount(w, results, 0, "No quiz results found")
		return
	}
	okCount(w, results, len(results), fmt.Sprintf("Found %d quiz results", len(results)))
}

func (a *API) resultsByCategory(w http.ResponseWriter, r *http.Request) {
	category := mux.Vars(r)["category"]
	results, err := a.results.ByCategory(r.Context(), callerFrom(r).UserID, category)
	if err != nil {
		a.fail(w, err, "Failed to fetch quiz results by category")
		return
	}
	if len(results) == 0 {
		okCount(w, results, 0, "No quiz results found for category: "+category)
		return
	}
	okCount(w, results, len(results), fmt.Sprintf("Found %d quiz results in %s category", len(results), category))
}

func (a *API) sendTestNotification(w http.ResponseWriter, r *http.Request) {
	body := domain.TestNotificationRequest{}
	if r.ContentLength != 0 && !decodeBody(w, r, &body) {
		return
	}
	if body.Title == "" {
		body.Title = "Test Notification"
	}
	if body.Message == "" {
		body.Message = "This is a test notification"
	}

	userID := callerFrom(r).UserID
	err := a.notifications.SendToUser(r.Context(), userID, body.Title, body.Message, map[string]string{"type": "test"})
	switch {
	case errors.Is(err, domain.ErrUserNotFound), errors.Is(err, domain.ErrNoPushToken):
		writeJSON(w, http.StatusBadRequest, domain.APIResponse[any]{Error: err.Error(), Message: "Failed to send test notification"})
	case err != nil:
		a.fail(w, err, "Failed to send test notification")
	default:
		ok(w, map[string]any{"success": true, "userId": userID}, "Test notification sent successfully")
	}
}

func (a *API) sendDailyReminders(w http.ResponseWriter, r *http.Request) {
	report, err := a.notifications.SendDailyReminders(r.Context())
	if err != nil {
		a.fail(w, err, "Failed to send daily reminders")
		return
	}
	ok(w, report, fmt.Sprintf("Daily reminders sent successfully to %d users", report.Sent))
}
