package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/sakif/family-finance/internal/apperror"
	"github.com/sakif/family-finance/internal/auth"
	"github.com/sakif/family-finance/internal/model"
	"github.com/sakif/family-finance/internal/repository"
)

const MaxProfileNameLength = 80

// Session is an authenticated user together with the token that proves it.
// The server never keeps a "current user": every request restores its own
// Session from the token it carries.
type Session struct {
	UserID    string         `json:"userId"`
	Profile   *model.Profile `json:"profile"`
	Token     string         `json:"-"`
	ExpiresAt time.Time      `json:"expiresAt"`
}

type SessionEventType string

const (
	SessionSignedIn       SessionEventType = "signed_in"
	SessionSignedOut      SessionEventType = "signed_out"
	SessionProfileUpdated SessionEventType = "profile_updated"
)

// SessionEvent is delivered to subscribers after a session change.
type SessionEvent struct {
	Type    SessionEventType
	UserID  string
	Profile *model.Profile
}

// SessionManager owns sign-up, sign-in, session restore and the user's
// profile. Profiles are created lazily: whenever a signed-in user has none,
// one is synthesized from the account and persisted.
type SessionManager struct {
	accounts  repository.AccountRepository
	profiles  repository.ProfileRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger

	mu      sync.RWMutex
	subs    map[int]func(SessionEvent)
	nextSub int
}

func NewSessionManager(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *SessionManager {
	return &SessionManager{
		accounts:  accounts,
		profiles:  profiles,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
		subs:      make(map[int]func(SessionEvent)),
	}
}

// SignUp creates a password account and its profile and signs the user in.
//
// The profile write is best effort: if it fails the account still exists and
// LoadProfile synthesizes the profile again on the next sign-in.
func (m *SessionManager) SignUp(ctx context.Context, email, password, name string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := auth.CheckLength(password); err != nil {
		return nil, apperror.ValidationFailed("password", "password "+err.Error())
	}
	name = strings.TrimSpace(name)
	if len(name) > MaxProfileNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxProfileNameLength))
	}

	hash, err := m.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/session: hashing password: %w", err)
	}

	account := &model.Account{Email: email, PasswordHash: hash, Name: name}
	if err := m.accounts.CreateAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("account", email)
		}
		return nil, fmt.Errorf("service/session: creating account: %w", err)
	}

	profile := model.NewDefaultProfile(account.ID, email, name)
	if err := m.profiles.UpsertProfile(ctx, profile); err != nil {
		m.logger.Warn("profile creation failed after sign-up",
			slog.String("userID", account.ID),
			slog.String("error", err.Error()),
		)
	}

	m.logger.Info("account created", slog.String("userID", account.ID))
	return m.issue(account.ID, profile)
}

// SignIn checks email and password. Unknown email and wrong password are
// indistinguishable to the caller: both are apperror.ErrUnauthorized.
func (m *SessionManager) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	invalid := apperror.Unauthorized("invalid email or password")

	account, err := m.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/session: looking up account: %w", err)
	}
	if account.PasswordHash == "" {
		// Created through GitHub; there is no password to check.
		return nil, invalid
	}
	if err := m.passwords.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, invalid
		}
		return nil, fmt.Errorf("service/session: verifying password: %w", err)
	}

	profile := m.LoadProfile(ctx, account.ID, account.Email, account.Name)
	return m.issue(account.ID, profile)
}

// SignInGitHub signs in (creating the account on first use) the user GitHub
// vouched for.
func (m *SessionManager) SignInGitHub(ctx context.Context, gh *auth.GitHubUser) (*Session, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/session: GitHub user must not be nil")
	}

	ghID := gh.ID
	account := &model.Account{Email: gh.Email, Name: gh.DisplayName(), GitHubID: &ghID}
	if err := m.accounts.UpsertGitHubAccount(ctx, account); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, apperror.Conflict("account", gh.Email)
		}
		return nil, fmt.Errorf("service/session: upserting account (githubID=%d): %w", gh.ID, err)
	}

	m.logger.Info("user authenticated via GitHub",
		slog.String("userID", account.ID),
		slog.String("login", gh.Login),
	)

	profile := m.LoadProfile(ctx, account.ID, account.Email, account.Name)
	return m.issue(account.ID, profile)
}

// Restore rebuilds the session a token refers to. Any problem with the token
// or a deleted account is apperror.ErrUnauthorized.
func (m *SessionManager) Restore(ctx context.Context, token string) (*Session, error) {
	userID, expiresAt, err := m.tokens.Parse(token)
	if err != nil {
		return nil, apperror.Unauthorized("session expired or invalid")
	}

	account, err := m.accounts.GetAccountByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("session expired or invalid")
		}
		return nil, fmt.Errorf("service/session: restoring %s: %w", userID, err)
	}

	return &Session{
		UserID:    userID,
		Profile:   m.LoadProfile(ctx, account.ID, account.Email, account.Name),
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

// SignOut notifies subscribers. Tokens are stateless, so revoking the
// cookie is the HTTP layer's job.
func (m *SessionManager) SignOut(_ context.Context, s *Session) {
	if s == nil {
		return
	}
	m.notify(SessionEvent{Type: SessionSignedOut, UserID: s.UserID})
}

// LoadProfile returns the user's profile, synthesizing and persisting one
// when none exists. It never fails: when storage is unavailable the
// synthesized profile is returned without being saved.
func (m *SessionManager) LoadProfile(ctx context.Context, userID, email, name string) *model.Profile {
	profile, err := m.profiles.GetProfile(ctx, userID)
	if err == nil {
		return profile
	}

	synthesized := model.NewDefaultProfile(userID, email, name)
	if !errors.Is(err, apperror.ErrNotFound) {
		m.logger.Warn("profile lookup failed, using synthesized profile",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return synthesized
	}

	if err := m.profiles.UpsertProfile(ctx, synthesized); err != nil {
		m.logger.Warn("persisting synthesized profile failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
	}
	return synthesized
}

// UpdateProfile changes the name and/or avatar. A nil field is left alone;
// an empty avatar resets it to the generated one. Unlike LoadProfile, a
// storage failure is returned.
func (m *SessionManager) UpdateProfile(ctx context.Context, userID string, name, avatar *string) (*model.Profile, error) {
	profile, err := m.profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/session: loading profile %s: %w", userID, err)
		}
		account, err := m.accounts.GetAccountByID(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("service/session: loading account %s: %w", userID, err)
		}
		profile = model.NewDefaultProfile(userID, account.Email, account.Name)
	}

	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, apperror.ValidationFailed("name", "name is required")
		}
		if len(n) > MaxProfileNameLength {
			return nil, apperror.ValidationFailed("name",
				fmt.Sprintf("name must be %d characters or less", MaxProfileNameLength))
		}
		profile.Name = n
	}
	if avatar != nil {
		a := strings.TrimSpace(*avatar)
		if a == "" {
			a = model.AvatarFor(userID)
		} else if !strings.HasPrefix(a, "https://") {
			return nil, apperror.ValidationFailed("avatar", "avatar must be an https URL")
		}
		profile.AvatarURL = a
	}

	if err := m.profiles.UpsertProfile(ctx, profile); err != nil {
		m.logger.Error("failed to update profile",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("service/session: saving profile %s: %w", userID, err)
	}

	m.notify(SessionEvent{Type: SessionProfileUpdated, UserID: userID, Profile: profile})
	return profile, nil
}

// Subscribe registers fn for every session event until the returned
// function is called. fn runs synchronously on the goroutine that caused the
// event, after the subscriber lock is released, so it may itself subscribe
// or unsubscribe. Such changes apply from the next event on.
func (m *SessionManager) Subscribe(fn func(SessionEvent)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

func (m *SessionManager) notify(e SessionEvent) {
	m.mu.RLock()
	fns := make([]func(SessionEvent), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(e)
	}
}

func (m *SessionManager) issue(userID string, profile *model.Profile) (*Session, error) {
	token, expiresAt, err := m.tokens.Generate(userID)
	if err != nil {
		return nil, fmt.Errorf("service/session: generating token for %s: %w", userID, err)
	}
	s := &Session{UserID: userID, Profile: profile, Token: token, ExpiresAt: expiresAt}
	m.notify(SessionEvent{Type: SessionSignedIn, UserID: userID, Profile: profile})
	return s, nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "email is not valid")
	}
	return email, nil
}
