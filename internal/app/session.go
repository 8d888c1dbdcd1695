package app

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"trivora/internal/domain"
)

// Phase is the state of a quiz session.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseReady     Phase = "ready"
	PhaseAnswering Phase = "answering"
	PhaseFeedback  Phase = "feedback"
	PhaseCompleted Phase = "completed"
	PhaseError     Phase = "error"
)

// RandomCategory labels results of sessions played without a category.
const RandomCategory = "Random"

// DefaultRandomCount is the question count of a random session when none is given.
const DefaultRandomCount = 10

// NoOfflineQuestionsMessage is shown when neither the backend nor the cache has questions.
const NoOfflineQuestionsMessage = "No questions available offline. Please connect to internet to download questions."

// SessionConfig selects what a session plays. An empty Category plays random questions.
type SessionConfig struct {
	Category   string
	Difficulty string
	Count      int
	UserID     string
	DeviceID   string
}

// SessionDeps are the collaborators of a session.
type SessionDeps struct {
	Remote   QuestionSource
	Cache    QuestionCache
	Results  ResultLog
	Uploader interface {
		UploadResult(ctx context.Context, result *domain.QuizResult) error
	}
	Network NetworkState
	Logger  *zap.Logger
	Now     func() time.Time
}

// SessionState is an immutable snapshot published to subscribers.
type SessionState struct {
	SessionID   string             `json:"sessionId"`
	Phase       Phase              `json:"phase"`
	Category    string             `json:"category"`
	Difficulty  string             `json:"difficulty"`
	Offline     bool               `json:"isOfflineMode"`
	Index       int                `json:"index"`
	Total       int                `json:"total"`
	Score       int                `json:"score"`
	Question    *domain.Question   `json:"question,omitempty"`
	Selected    string             `json:"selectedAnswer,omitempty"`
	LastCorrect *bool              `json:"lastCorrect,omitempty"`
	Percentage  int                `json:"percentage"`
	Result      *domain.QuizResult `json:"result,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// Session drives one playthrough: Loading, Ready, Answering and Feedback
// alternating per question, then Completed. Operations are expected to be
// called sequentially by a single driver; subscribers may read concurrently.
type Session struct {
	id   string
	cfg  SessionConfig
	deps SessionDeps
	now  func() time.Time
	log  *zap.Logger

	mu          sync.RWMutex
	phase       Phase
	questions   []domain.Question
	index       int
	score       int
	selected    string
	lastCorrect *bool
	offline     bool
	startedAt   time.Time
	result      *domain.QuizResult
	errMsg      string
	subscribers map[chan SessionState]struct{}
}

// NewSession creates a session in the Loading phase. Call Load to fetch questions.
func NewSession(cfg SessionConfig, deps SessionDeps) *Session {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if d, ok := domain.NormalizeDifficulty(cfg.Difficulty); ok {
		cfg.Difficulty = d
	} else {
		if cfg.Difficulty != "" {
			deps.Logger.Warn("unknown difficulty, playing Medium", zap.String("difficulty", cfg.Difficulty))
		}
		cfg.Difficulty = domain.DifficultyMedium
	}
	if cfg.Category == "" && cfg.Count <= 0 {
		cfg.Count = DefaultRandomCount
	}
	id := uuid.NewString()
	return &Session{
		id:          id,
		cfg:         cfg,
		deps:        deps,
		now:         deps.Now,
		log:         deps.Logger.With(zap.String("session", id)),
		phase:       PhaseLoading,
		subscribers: make(map[chan SessionState]struct{}),
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Load obtains questions online, falling back to the local cache. It is valid
// in the Loading and Error phases.
func (s *Session) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseLoading && s.phase != PhaseError {
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	s.phase = PhaseLoading
	s.errMsg = ""
	s.broadcastLocked()
	s.mu.Unlock()

	questions, offline, err := s.source(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.phase = PhaseError
		s.errMsg = err.Error()
		if errors.Is(err, domain.ErrNoOfflineQuestions) {
			s.errMsg = NoOfflineQuestionsMessage
		}
		s.broadcastLocked()
		return err
	}
	s.questions = questions
	s.offline = offline
	s.resetLocked()
	s.broadcastLocked()
	return nil
}

// source tries the backend first and falls back to the cache on any failure,
// on an empty response, or when already known to be offline.
func (s *Session) source(ctx context.Context) ([]domain.Question, bool, error) {
	if s.deps.Network == nil || s.deps.Network.Online() {
		questions, err := s.fetch(ctx)
		switch {
		case err == nil && len(questions) > 0:
			s.cacheFetched(ctx, questions)
			return questions, false, nil
		case err != nil:
			s.log.Warn("online fetch failed, using local cache", zap.Error(err))
			if s.deps.Network != nil && domain.Unreachable(err) {
				s.deps.Network.MarkOffline(err)
			}
		default:
			s.log.Info("backend returned no questions, using local cache")
		}
	}

	cached, err := s.cached(ctx)
	if err != nil {
		return nil, true, err
	}
	if len(cached) == 0 {
		return nil, true, domain.ErrNoOfflineQuestions
	}
	return cached, true, nil
}

func (s *Session) fetch(ctx context.Context) ([]domain.Question, error) {
	if s.deps.Remote == nil {
		return nil, &domain.RemoteError{Kind: domain.FailureTransport, Op: "fetch questions", Err: errors.New("no remote configured")}
	}
	if s.cfg.Category == "" {
		return s.deps.Remote.RandomQuestions(ctx, s.cfg.Count)
	}
	questions, err := s.deps.Remote.QuestionsByCategory(ctx, s.cfg.Category)
	if err != nil {
		return nil, err
	}
	return limit(questions, s.cfg.Count), nil
}

// cacheFetched writes fetched questions to the local cache; failures are logged only.
func (s *Session) cacheFetched(ctx context.Context, questions []domain.Question) {
	now := s.now()
	quizzes := make([]domain.LocalQuiz, 0, len(questions))
	for _, q := range questions {
		quizzes = append(quizzes, domain.NewLocalQuiz(q, now))
	}
	if err := s.deps.Cache.SaveQuestions(ctx, quizzes); err != nil {
		s.log.Warn("caching fetched questions failed", zap.Error(err))
	}
}

func (s *Session) cached(ctx context.Context) ([]domain.Question, error) {
	var (
		quizzes []domain.LocalQuiz
		err     error
	)
	if s.cfg.Category == "" {
		quizzes, err = s.deps.Cache.AvailableQuestions(ctx)
		rand.Shuffle(len(quizzes), func(i, j int) { quizzes[i], quizzes[j] = quizzes[j], quizzes[i] })
	} else {
		quizzes, err = s.deps.Cache.QuestionsByCategory(ctx, s.cfg.Category)
	}
	if err != nil {
		return nil, err
	}
	questions := make([]domain.Question, 0, len(quizzes))
	for _, q := range quizzes {
		questions = append(questions, q.Question)
	}
	return limit(questions, s.cfg.Count), nil
}

// Select records the chosen answer without advancing.
func (s *Session) Select(answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReady && s.phase != PhaseAnswering {
		return domain.ErrInvalidTransition
	}
	s.selected = answer
	s.broadcastLocked()
	return nil
}

// Submit locks in the selected answer, scores it and records an Attempt.
func (s *Session) Submit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseReady && s.phase != PhaseAnswering {
		return domain.ErrInvalidTransition
	}
	if s.selected == "" {
		return domain.ErrNoAnswerSelected
	}

	question := s.questions[s.index]
	correct := question.IsCorrect(s.selected)
	if correct {
		s.score++
	}
	s.lastCorrect = &correct
	s.phase = PhaseFeedback

	now := s.now()
	attempt := domain.Attempt{
		QuizID:           question.ID,
		SelectedAnswer:   s.selected,
		IsCorrect:        correct,
		TimeSpentSeconds: int(now.Sub(s.startedAt) / time.Second),
		CompletedAt:      now,
		IsSynced:         !s.offline,
	}
	err := s.deps.Results.InsertAttempt(ctx, &attempt)
	s.broadcastLocked()
	return err
}

// Next moves from Feedback to the next question, or completes the session
// after the last one.
func (s *Session) Next(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseFeedback {
		s.mu.Unlock()
		return domain.ErrInvalidTransition
	}
	if s.index+1 < len(s.questions) {
		s.index++
		s.selected = ""
		s.lastCorrect = nil
		s.phase = PhaseAnswering
		s.broadcastLocked()
		s.mu.Unlock()
		return nil
	}
	result, err := s.completeLocked(ctx)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.broadcastLocked()
	upload := !s.offline && s.deps.Uploader != nil && (s.deps.Network == nil || s.deps.Network.Online())
	s.mu.Unlock()

	if !upload {
		return nil
	}
	// s.mu is not held across the network call
	if err := s.deps.Uploader.UploadResult(ctx, &result); err != nil {
		s.log.Info("immediate result upload failed, leaving it for the reconciler", zap.Error(err))
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result != nil && s.result.ID == result.ID && s.phase == PhaseCompleted {
		s.result.IsSynced = result.IsSynced
		s.broadcastLocked()
	}
	return nil
}

// completeLocked persists exactly one QuizResult for the playthrough and
// returns a copy of it.
func (s *Session) completeLocked(ctx context.Context) (domain.QuizResult, error) {
	now := s.now()
	category := s.cfg.Category
	if category == "" {
		category = RandomCategory
	}
	result := domain.QuizResult{
		SessionID:        uuid.NewString(),
		UserID:           s.cfg.UserID,
		Category:         category,
		Difficulty:       s.cfg.Difficulty,
		Score:            s.score,
		TotalQuestions:   len(s.questions),
		CorrectAnswers:   s.score,
		TimeSpentSeconds: int64(now.Sub(s.startedAt) / time.Second),
		CompletedAt:      now,
		DeviceID:         s.cfg.DeviceID,
		IsSynced:         false,
	}
	if err := s.deps.Results.InsertResult(ctx, &result); err != nil {
		return domain.QuizResult{}, err
	}
	stored := result
	s.result = &stored
	s.phase = PhaseCompleted

	for _, q := range s.questions {
		if err := s.deps.Cache.MarkQuestionCompleted(ctx, q.ID); err != nil {
			s.log.Warn("marking question completed failed", zap.String("question", q.ID), zap.Error(err))
		}
	}
	return result, nil
}

// Restart replays the loaded questions from the start.
func (s *Session) Restart() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 || s.phase == PhaseLoading || s.phase == PhaseError {
		return domain.ErrInvalidTransition
	}
	s.resetLocked()
	s.broadcastLocked()
	return nil
}

func (s *Session) resetLocked() {
	s.index = 0
	s.score = 0
	s.selected = ""
	s.lastCorrect = nil
	s.result = nil
	s.errMsg = ""
	s.startedAt = s.now()
	s.phase = PhaseReady
}

// State returns the current snapshot.
func (s *Session) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of state snapshots, starting with the current one.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *Session) Subscribe() (<-chan SessionState, func()) {
	ch := make(chan SessionState, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) broadcastLocked() {
	state := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- state:
		default:
			// slow subscriber: drop its oldest snapshot
			select {
			case <-ch:
			default:
			}
			ch <- state
		}
	}
}

func (s *Session) snapshotLocked() SessionState {
	state := SessionState{
		SessionID:  s.id,
		Phase:      s.phase,
		Category:   s.cfg.Category,
		Difficulty: s.cfg.Difficulty,
		Offline:    s.offline,
		Index:      s.index,
		Total:      len(s.questions),
		Score:      s.score,
		Selected:   s.selected,
		Percentage: domain.Percentage(s.score, len(s.questions)),
		Error:      s.errMsg,
	}
	if s.lastCorrect != nil {
		v := *s.lastCorrect
		state.LastCorrect = &v
	}
	if s.index < len(s.questions) && s.phase != PhaseCompleted {
		q := s.questions[s.index]
		q.Choices = append([]string(nil), q.Choices...)
		state.Question = &q
	}
	if s.result != nil {
		r := *s.result
		state.Result = &r
	}
	return state
}

func limit(questions []domain.Question, n int) []domain.Question {
	if n > 0 && len(questions) > n {
		return questions[:n]
	}
	return questions
}
