package backend

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"trivora/internal/domain"
)

//go:embed seed/questions.json
var sampleQuestionsJSON []byte

// SampleQuestions returns the bundled starter catalog.
func SampleQuestions() ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal(sampleQuestionsJSON, &questions); err != nil {
		return nil, fmt.Errorf("decode sample questions: %w", err)
	}
	return questions, nil
}
