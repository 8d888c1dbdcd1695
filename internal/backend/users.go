package backend

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"trivora/internal/domain"
)

// UserService manages profiles keyed by the caller identity.
type UserService struct {
	store  ProfileStore
	now    func() time.Time
	logger *zap.Logger
}

func NewUserService(store ProfileStore, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{store: store, now: time.Now, logger: logger}
}

// Profile returns the caller's profile, creating it on first access. created
// reports whether a new profile was made.
func (s *UserService) Profile(ctx context.Context, caller domain.Caller) (domain.User, bool, error) {
	user, err := s.store.User(ctx, caller.UserID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return domain.User{}, false, err
	}

	user = domain.NewUser(caller.UserID, callerEmail(caller), caller.Name, s.now())
	if err := user.Validate(); err != nil {
		return domain.User{}, false, err
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, false, err
	}
	s.logger.Info("user profile created", zap.String("user", user.UserID))
	return user, true, nil
}

// Stats returns the aggregate statistics of an existing profile.
func (s *UserService) Stats(ctx context.Context, userID string) (domain.UserStats, error) {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return domain.UserStats{}, err
	}
	return user.Stats(), nil
}

// UpdateDisplayName sets a trimmed, non-empty display name.
func (s *UserService) UpdateDisplayName(ctx context.Context, userID, name string) (domain.User, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, &domain.ValidationError{Problems: []string{"Display name is required"}}
	}
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	user.DisplayName = name
	user.UpdatedAt = s.now()
	if err := s.store.SaveUser(ctx, user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

// UpdatePushToken stores the device push token of the user.
func (s *UserService) UpdatePushToken(ctx context.Context, userID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return &domain.ValidationError{Problems: []string{"FCM token is required"}}
	}
	return s.setPushToken(ctx, userID, token)
}

// ClearPushToken removes the push token of the user.
func (s *UserService) ClearPushToken(ctx context.Context, userID string) error {
	return s.setPushToken(ctx, userID, "")
}

func (s *UserService) setPushToken(ctx context.Context, userID, token string) error {
	user, err := s.store.User(ctx, userID)
	if err != nil {
		return err
	}
	user.PushToken = token
	user.UpdatedAt = s.now()
	return s.store.SaveUser(ctx, user)
}

// callerEmail falls back to a synthetic address for tokens without an email claim.
func callerEmail(c domain.Caller) string {
	if c.Email != "" {
		return c.Email
	}
	return c.UserID + "@users.trivora.local"
}
