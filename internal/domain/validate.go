package domain

import "strings"

// ValidDifficulty reports whether d is one of Easy, Medium or Hard.
func ValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// NormalizeDifficulty maps d case-insensitively onto Easy, Medium or Hard.
// The second result is false when d matches none of them.
func NormalizeDifficulty(d string) (string, bool) {
	for _, known := range []string{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		if strings.EqualFold(strings.TrimSpace(d), known) {
			return known, true
		}
	}
	return "", false
}

// Validate checks a question before it is stored.
func (q Question) Validate() error {
	var problems []string
	if strings.TrimSpace(q.Category) == "" {
		problems = append(problems, "Category is required")
	}
	if strings.TrimSpace(q.Text) == "" {
		problems = append(problems, "Question text is required")
	}
	if len(q.Choices) < 2 {
		problems = append(problems, "At least two choices are required")
	}
	if strings.TrimSpace(q.Answer) == "" {
		problems = append(problems, "Answer is required")
	} else if !containsString(q.Choices, q.Answer) {
		problems = append(problems, "Answer must be one of the choices")
	}
	if !ValidDifficulty(q.Difficulty) {
		problems = append(problems, "Difficulty must be one of: Easy, Medium, Hard")
	}
	return validationErr(problems)
}

// Validate checks a submitted result on behalf of userID.
func (r SubmittedResult) Validate() error {
	var problems []string
	if strings.TrimSpace(r.UserID) == "" {
		problems = append(problems, "User ID is required")
	}
	if strings.TrimSpace(r.Category) == "" {
		problems = append(problems, "Category is required")
	}
	if !ValidDifficulty(r.Difficulty) {
		problems = append(problems, "Difficulty must be one of: Easy, Medium, Hard")
	}
	if r.Score < 0 || r.Score > r.TotalQuestions {
		problems = append(problems, "Score must be between 0 and total questions")
	}
	if r.TotalQuestions <= 0 {
		problems = append(problems, "Total questions must be greater than 0")
	}
	if r.CorrectAnswers < 0 || r.CorrectAnswers > r.TotalQuestions {
		problems = append(problems, "Correct answers must be between 0 and total questions")
	}
	if r.TimeSpent < 0 {
		problems = append(problems, "Time spent cannot be negative")
	}
	return validationErr(problems)
}

// Validate checks profile invariants.
func (u User) Validate() error {
	var problems []string
	if strings.TrimSpace(u.Email) == "" {
		problems = append(problems, "Email is required")
	}
	if u.TotalScore < 0 {
		problems = append(problems, "Total score cannot be negative")
	}
	if u.TotalQuizzes < 0 {
		problems = append(problems, "Total quizzes cannot be negative")
	}
	if u.CorrectAnswers < 0 {
		problems = append(problems, "Correct answers cannot be negative")
	}
	if u.TotalQuestions < 0 {
		problems = append(problems, "Total questions cannot be negative")
	}
	if u.AverageScore < 0 || u.AverageScore > 100 {
		problems = append(problems, "Average score must be between 0 and 100")
	}
	if u.CorrectAnswers > u.TotalQuestions {
		problems = append(problems, "Correct answers cannot exceed total questions")
	}
	return validationErr(problems)
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
