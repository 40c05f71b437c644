package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/pennywise/finance-client/internal/core/domain"
	"github.com/pennywise/finance-client/internal/core/ports"
)

// SessionProfiles is the part of the registry the session drives.
type SessionProfiles interface {
	FetchProfiles(ctx context.Context) ([]domain.Profile, error)
	Clear(ctx context.Context)
}

// SessionService keeps the authenticated session and gates profile loading on it.
type SessionService struct {
	auth     ports.AuthBackend
	state    ports.KeyValueStore
	profiles SessionProfiles
	log      zerolog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	token string
	user  *domain.User
}

func NewSessionService(auth ports.AuthBackend, state ports.KeyValueStore, profiles SessionProfiles, log zerolog.Logger) *SessionService {
	return &SessionService{
		auth:     auth,
		state:    state,
		profiles: profiles,
		log:      log.With().Str("component", "session").Logger(),
		now:      time.Now,
	}
}

var _ ports.SessionService = (*SessionService)(nil)

// Login authenticates, persists the session and loads the user's profiles.
// A failed profile load does not fail the login.
func (s *SessionService) Login(ctx context.Context, creds domain.Credentials) (*domain.User, error) {
	if err := validateInput(creds); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	res, err := s.auth.Login(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	userJSON, err := json.Marshal(res.User)
	if err != nil {
		return nil, fmt.Errorf("login: encode user: %w", err)
	}
	if err := s.state.Set(ctx, KeyAuthToken, res.Token); err != nil {
		return nil, fmt.Errorf("login: persist token: %w", err)
	}
	if err := s.state.Set(ctx, KeyUser, string(userJSON)); err != nil {
		return nil, fmt.Errorf("login: persist user: %w", err)
	}

	user := res.User
	s.mu.Lock()
	s.token = res.Token
	s.user = &user
	s.mu.Unlock()

	s.log.Info().Str("user_id", user.ID).Msg("logged in")

	if _, err := s.profiles.FetchProfiles(ctx); err != nil {
		s.log.Warn().Err(err).Msg("profiles not loaded after login")
	}
	out := user
	return &out, nil
}

// Restore reloads a persisted session. Missing, corrupt or expired sessions
// are cleared and reported as domain.ErrNoSession.
func (s *SessionService) Restore(ctx context.Context) (*domain.User, error) {
	token, okToken, err := s.state.Get(ctx, KeyAuthToken)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	raw, okUser, err := s.state.Get(ctx, KeyUser)
	if err != nil {
		return nil, fmt.Errorf("restore session: %w", err)
	}
	if !okToken || !okUser || token == "" {
		return nil, domain.ErrNoSession
	}

	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		s.log.Warn().Err(err).Msg("corrupt persisted user, clearing session")
		s.Logout(ctx)
		return nil, fmt.Errorf("restore session: %w", domain.ErrNoSession)
	}
	if tokenExpired(token, s.now()) {
		s.log.Info().Msg("persisted session expired")
		s.Logout(ctx)
		return nil, fmt.Errorf("restore session: token expired: %w", domain.ErrNoSession)
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.mu.Unlock()

	if _, err := s.profiles.FetchProfiles(ctx); err != nil {
		return &user, fmt.Errorf("restore session: %w", err)
	}
	return &user, nil
}

// Logout forgets the session and every profile. It never fails.
func (s *SessionService) Logout(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	s.mu.Unlock()

	for _, key := range []string{KeyAuthToken, KeyUser} {
		if err := s.state.Delete(ctx, key); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to erase session key")
		}
	}
	s.profiles.Clear(ctx)
	s.log.Info().Msg("logged out")
}

// Current returns the logged-in user.
func (s *SessionService) Current(_ context.Context) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, domain.ErrNoSession
	}
	u := *s.user
	return &u, nil
}

// Token returns the bearer token, empty when logged out.
func (s *SessionService) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// tokenExpired reads the exp claim without verifying the signature. Opaque
// tokens and tokens without exp never expire client-side.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
