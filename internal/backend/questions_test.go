package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"trivora/internal/domain"
	"trivora/internal/infra/memory"
)

func newQuestionService(qs []domain.Question) *QuestionService {
	store := memory.NewQuestionStore(qs)
	return NewQuestionService(store, memory.NewQuestionCache(store, time.Minute), nil)
}

func TestRandomNReturnsDistinctQuestions(t *testing.T) {
	svc := newQuestionService(catalog())

	got, err := svc.RandomN(context.Background(), 3)
	if err != nil {
		t.Fatalf("random: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(got))
	}
	seen := map[string]bool{}
	for _, q := range got {
		if seen[q.ID] {
			t.Fatalf("duplicate question %s", q.ID)
		}
		seen[q.ID] = true
	}

	// asking for more than exists returns everything
	all, _ := svc.RandomN(context.Background(), 50)
	if len(all) != len(catalog()) {
		t.Fatalf("expected whole catalog, got %d", len(all))
	}
}

func TestRandomNRejectsOutOfRange(t *testing.T) {
	svc := newQuestionService(catalog())
	var verr *domain.ValidationError
	if _, err := svc.RandomN(context.Background(), 100); !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseRandomCount(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "", want: DefaultRandomCount},
		{raw: "abc", want: DefaultRandomCount},
		{raw: "0", want: DefaultRandomCount},
		{raw: "1", want: 1},
		{raw: "50", want: 50},
		{raw: "51", wantErr: true},
		{raw: "100", wantErr: true},
		{raw: "-3", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseRandomCount(tc.raw)
		if tc.wantErr {
			if err == nil || err.Error() != "Count must be between 1 and 50" {
				t.Fatalf("%q: expected range error, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %d, %v; want %d", tc.raw, got, err, tc.want)
		}
	}
}

func TestCategoriesAreTrimmedAndSorted(t *testing.T) {
	qs := catalog()
	qs[0].Category = "  Science "
	qs = append(qs, domain.Question{ID: "blank", Category: " ", Text: "x", Choices: []string{"a", "b"}, Answer: "a", Difficulty: domain.DifficultyEasy})
	svc := newQuestionService(qs)

	got, err := svc.Categories(context.Background())
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	want := []string{"History", "Music", "Science"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestRandomOnEmptyCatalog(t *testing.T) {
	svc := newQuestionService(nil)
	q, err := svc.Random(context.Background())
	if err != nil || q != nil {
		t.Fatalf("expected nil question, got %+v, %v", q, err)
	}
}

func TestCreateValidatesAndInvalidatesCatalog(t *testing.T) {
	ctx := context.Background()
	svc := newQuestionService(catalog())

	// warm the cache
	if _, err := svc.All(ctx); err != nil {
		t.Fatalf("all: %v", err)
	}

	_, err := svc.Create(ctx, domain.Question{Category: "Science", Text: "Bad", Choices: []string{"a", "b"}, Answer: "c", Difficulty: "Extreme"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Problems) != 2 {
		t.Fatalf("expected two validation problems, got %v", err)
	}

	created, err := svc.Create(ctx, domain.Question{Category: "Science", Text: "Red planet?", Choices: []string{"Mars", "Venus"}, Answer: "Mars", Difficulty: domain.DifficultyEasy})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated id")
	}
	science, _ := svc.ByCategory(ctx, "Science")
	if len(science) != 3 {
		t.Fatalf("expected created question visible after invalidation, got %d", len(science))
	}
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := newQuestionService(catalog())

	answer := "Venus"
	if _, err := svc.Update(ctx, "s1", domain.QuestionPatch{Answer: &answer}); err == nil {
		t.Fatalf("expected answer outside choices to be rejected")
	}

	text := "What is H2O commonly called?"
	updated, err := svc.Update(ctx, "s1", domain.QuestionPatch{Text: &text})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Text != text || updated.Answer != "Water" {
		t.Fatalf("unexpected update %+v", updated)
	}

	if _, err := svc.Update(ctx, "missing", domain.QuestionPatch{Text: &text}); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	if err := svc.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, "s1"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected deleted question gone, got %v", err)
	}
}

func TestSeedLoadsSampleQuestions(t *testing.T) {
	ctx := context.Background()
	svc := newQuestionService(nil)

	n, err := svc.Seed(ctx)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	all, _ := svc.All(ctx)
	if n == 0 || len(all) != n {
		t.Fatalf("expected %d seeded questions, got %d", n, len(all))
	}
	for _, q := range all {
		if err := q.Validate(); err != nil {
			t.Fatalf("sample question %s invalid: %v", q.ID, err)
		}
	}

	// seeding twice keeps ids unique
	if _, err := svc.Seed(ctx); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	again, _ := svc.All(ctx)
	if len(again) != n {
		t.Fatalf("expected reseed to upsert, got %d", len(again))
	}
}

func catalog() []domain.Question {
	return []domain.Question{
		{ID: "s1", Category: "Science", Text: "What is H2O?", Choices: []string{"Water", "Salt"}, Answer: "Water", Difficulty: domain.DifficultyEasy},
		{ID: "s2", Category: "Science", Text: "Closest star?", Choices: []string{"Sun", "Sirius"}, Answer: "Sun", Difficulty: domain.DifficultyMedium},
		{ID: "m1", Category: "Music", Text: "Piano keys?", Choices: []string{"88", "76"}, Answer: "88", Difficulty: domain.DifficultyMedium},
		{ID: "h1", Category: "History", Text: "First moon landing?", Choices: []string{"1969", "1972"}, Answer: "1969", Difficulty: domain.DifficultyHard},
	}
}
