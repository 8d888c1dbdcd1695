package domain

import (
	"math"
	"time"
)

// Difficulty levels accepted by the backend.
const (
	DifficultyEasy   = "Easy"
	DifficultyMedium = "Medium"
	DifficultyHard   = "Hard"
)

// Question is a multiple-choice trivia question as served by the backend.
type Question struct {
	ID         string   `json:"questionId"`
	Category   string   `json:"category"`
	Text       string   `json:"questionText"`
	Choices    []string `json:"choices"`
	Answer     string   `json:"answer"`
	Difficulty string   `json:"difficulty"`
}

// IsCorrect reports whether answer matches the correct answer exactly.
func (q Question) IsCorrect(answer string) bool {
	return answer == q.Answer
}

// QuestionPatch carries the optional fields of a question update.
type QuestionPatch struct {
	Category   *string   `json:"category,omitempty"`
	Text       *string   `json:"questionText,omitempty"`
	Choices    *[]string `json:"choices,omitempty"`
	Answer     *string   `json:"answer,omitempty"`
	Difficulty *string   `json:"difficulty,omitempty"`
}

// Apply returns a copy of q with the patch fields overlaid.
func (p QuestionPatch) Apply(q Question) Question {
	if p.Category != nil {
		q.Category = *p.Category
	}
	if p.Text != nil {
		q.Text = *p.Text
	}
	if p.Choices != nil {
		q.Choices = append([]string(nil), (*p.Choices)...)
	}
	if p.Answer != nil {
		q.Answer = *p.Answer
	}
	if p.Difficulty != nil {
		q.Difficulty = *p.Difficulty
	}
	return q
}

// LocalQuiz is a cached, read-only snapshot of a Question on the device.
type LocalQuiz struct {
	Question
	DownloadedAt time.Time `json:"downloadedAt"`
	Completed    bool      `json:"isCompleted"`
}

// NewLocalQuiz snapshots q for the offline cache.
func NewLocalQuiz(q Question, downloadedAt time.Time) LocalQuiz {
	q.Choices = append([]string(nil), q.Choices...)
	return LocalQuiz{Question: q, DownloadedAt: downloadedAt}
}

// Attempt records one submitted answer.
type Attempt struct {
	ID               int64     `json:"id"`
	QuizID           string    `json:"quizId"`
	SelectedAnswer   string    `json:"selectedAnswer"`
	IsCorrect        bool      `json:"isCorrect"`
	TimeSpentSeconds int       `json:"timeSpent"`
	CompletedAt      time.Time `json:"completedAt"`
	IsSynced         bool      `json:"isSynced"`
}

// QuizResult is the outcome of one playthrough and the unit of sync.
type QuizResult struct {
	ID               int64     `json:"id"`
	SessionID        string    `json:"quizId"`
	UserID           string    `json:"userId"`
	Category         string    `json:"category"`
	Difficulty       string    `json:"difficulty"`
	Score            int       `json:"score"`
	TotalQuestions   int       `json:"totalQuestions"`
	CorrectAnswers   int       `json:"correctAnswers"`
	TimeSpentSeconds int64     `json:"timeSpent"`
	CompletedAt      time.Time `json:"completedAt"`
	DeviceID         string    `json:"deviceId"`
	IsSynced         bool      `json:"isSynced"`
}

// Request converts the local result into the upload payload.
func (r QuizResult) Request() QuizResultRequest {
	return QuizResultRequest{
		Category:       r.Category,
		Difficulty:     r.Difficulty,
		Score:          r.Score,
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		TimeSpent:      r.TimeSpentSeconds,
		DeviceID:       r.DeviceID,
	}
}

// SyncStatus is the single global sync bookkeeping record.
type SyncStatus struct {
	LastSyncTime     time.Time `json:"lastSyncTime"`
	PendingSyncCount int       `json:"pendingSyncCount"`
}

// Identity is the install-scoped device and user pair.
type Identity struct {
	DeviceID  string    `json:"deviceId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// QuizResultRequest is the body of POST /api/quiz-results.
type QuizResultRequest struct {
	Category       string `json:"category"`
	Difficulty     string `json:"difficulty"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"totalQuestions"`
	CorrectAnswers int    `json:"correctAnswers"`
	TimeSpent      int64  `json:"timeSpent"`
	DeviceID       string `json:"deviceId"`
}

// SubmittedResult is a quiz result as stored by the backend.
type SubmittedResult struct {
	QuizID         string    `json:"quizId"`
	UserID         string    `json:"userId"`
	Category       string    `json:"category"`
	Difficulty     string    `json:"difficulty"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	TimeSpent      int64     `json:"timeSpent"`
	Date           time.Time `json:"date"`
	DeviceID       string    `json:"deviceId"`
}

// SubmitResultResponse is returned after a result is accepted.
type SubmitResultResponse struct {
	QuizID    string    `json:"quizId"`
	UserStats UserStats `json:"userStats"`
}

// User is a backend profile with aggregate statistics.
type User struct {
	UserID         string    `json:"userId"`
	Email          string    `json:"email"`
	DisplayName    string    `json:"displayName"`
	TotalScore     int       `json:"totalScore"`
	TotalQuizzes   int       `json:"totalQuizzes"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalQuestions int       `json:"totalQuestions"`
	AverageScore   float64   `json:"averageScore"`
	BestCategory   string    `json:"bestCategory"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	PushToken      string    `json:"-"`
}

// NewUser creates an empty profile.
func NewUser(userID, email, displayName string, now time.Time) User {
	return User{
		UserID:      userID,
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ApplyResult folds one quiz outcome into the aggregate statistics.
func (u *User) ApplyResult(score, totalQuestions, correctAnswers int, category string, now time.Time) {
	u.TotalScore += score
	u.TotalQuizzes++
	u.CorrectAnswers += correctAnswers
	u.TotalQuestions += totalQuestions
	if u.TotalQuestions > 0 {
		u.AverageScore = float64(u.CorrectAnswers) / float64(u.TotalQuestions) * 100
	}
	u.UpdatedAt = now

	// a category becomes "best" once a single run clears 80%
	if totalQuestions > 0 && float64(score)/float64(totalQuestions) > 0.8 {
		u.BestCategory = category
	}
}

// Stats projects the aggregate statistics of the profile.
func (u User) Stats() UserStats {
	return UserStats{
		TotalScore:     u.TotalScore,
		TotalQuizzes:   u.TotalQuizzes,
		CorrectAnswers: u.CorrectAnswers,
		TotalQuestions: u.TotalQuestions,
		AverageScore:   u.AverageScore,
		BestCategory:   u.BestCategory,
	}
}

// UserStats is the aggregate statistics view of a user.
type UserStats struct {
	TotalScore     int     `json:"totalScore"`
	TotalQuizzes   int     `json:"totalQuizzes"`
	CorrectAnswers int     `json:"correctAnswers"`
	TotalQuestions int     `json:"totalQuestions"`
	AverageScore   float64 `json:"averageScore"`
	BestCategory   string  `json:"bestCategory"`
}

// UserProfile wraps a user the way the profile endpoints return it.
type UserProfile struct {
	User *User `json:"user"`
}

// Notification is a push message addressed to one user.
type Notification struct {
	UserID string            `json:"userId"`
	Token  string            `json:"token"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// ReminderReport summarizes a daily reminder fan-out.
type ReminderReport struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// APIResponse is the envelope every backend response is wrapped in.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Percentage returns round(score / total * 100); zero when total is zero.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(total) * 100))
}

// DisplayNameRequest is the body of PUT /api/users/profile/display-name.
type DisplayNameRequest struct {
	DisplayName string `json:"displayName"`
}

// PushTokenRequest is the body of PUT /api/users/fcm-token.
type PushTokenRequest struct {
	FCMToken string `json:"fcmToken"`
}

// TestNotificationRequest is the body of POST /api/notifications/send-test.
type TestNotificationRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Caller is the authenticated identity behind a backend request.
type Caller struct {
	UserID string
	Email  string
	Name   string
}
