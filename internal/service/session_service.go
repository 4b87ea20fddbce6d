package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/GrishaDaradjanovv/Dani/internal/client"
	"github.com/GrishaDaradjanovv/Dani/internal/domain"
	"github.com/GrishaDaradjanovv/Dani/internal/store"
	"golang.org/x/sync/singleflight"
)

const (
	DashboardPath = "/dashboard"
	LoginPath     = "/login"

	minPasswordLength = 6

	// maxExchangedSessions bounds the latch. Older ids are forgotten first;
	// by then the provider has long stopped accepting them.
	maxExchangedSessions = 1024
)

// CallbackResult tells the caller where to send the user after an OAuth
// redirect. CleanURL is the callback URL with the session id fragment removed.
type CallbackResult struct {
	User     *domain.UserProfile
	CleanURL string
	Next     string
}

type authResponse struct {
	Token string             `json:"token"`
	User  domain.UserProfile `json:"user"`
}

// SessionService owns who is signed in. It is the CredentialsSource for the
// shared API client.
type SessionService struct {
	api    *client.Client
	tokens store.TokenStore
	logger *slog.Logger

	mu      sync.RWMutex
	user    *domain.UserProfile
	token   string
	cookie  string
	loading bool

	me singleflight.Group

	latchMu    sync.Mutex
	consumed   map[string]struct{}
	order      []string
	latchLimit int
}

func NewSessionService(api *client.Client, tokens store.TokenStore, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		api:        api,
		tokens:     tokens,
		logger:     logger,
		loading:    true,
		consumed:   make(map[string]struct{}),
		latchLimit: maxExchangedSessions,
	}
}

func (s *SessionService) Credentials() client.Credentials {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return client.Credentials{Token: s.token, SessionCookie: s.cookie}
}

func (s *SessionService) Session() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess := domain.Session{Token: s.token}
	if s.user != nil {
		u := *s.user
		sess.User = &u
	}
	return sess
}

func (s *SessionService) User() *domain.UserProfile {
	return s.Session().User
}

// Loading is true until the first CheckAuth has finished.
func (s *SessionService) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// CheckAuth asks the backend who we are. Any failure, including a network
// error, leaves the session signed out; it never returns an error. Concurrent
// callers share one request.
func (s *SessionService) CheckAuth(ctx context.Context) domain.Session {
	v, _, _ := s.me.Do("me", func() (interface{}, error) {
		return s.checkAuth(ctx), nil
	})
	return v.(domain.Session)
}

func (s *SessionService) checkAuth(ctx context.Context) domain.Session {
	defer s.setLoading(false)

	s.syncSlot(ctx)

	var user domain.UserProfile
	if err := s.api.Get(ctx, "/auth/me", &user); err != nil {
		s.logger.Info("not authenticated", "error", err)
		s.clear(ctx)
		return s.Session()
	}

	s.mu.Lock()
	s.user = &user
	s.mu.Unlock()
	return s.Session()
}

// syncSlot picks up whatever the shared slot holds now, including an empty
// slot left by a logout elsewhere.
func (s *SessionService) syncSlot(ctx context.Context) {
	slot, err := s.tokens.Load(ctx)
	switch {
	case err == nil:
		s.setSlot(slot)
	case errors.Is(err, store.ErrTokenNotFound):
		s.setSlot(store.Slot{})
	default:
		s.logger.Warn("failed to read persisted token", "error", err)
	}
}

// Login installs user right away and persists token when one is given. The
// in-memory session is set even if persisting fails.
func (s *SessionService) Login(ctx context.Context, user domain.UserProfile, token string) error {
	return s.signIn(ctx, user, token, "")
}

// signIn is Login that also keeps the backend session cookie. Empty values
// leave the current credential in place.
func (s *SessionService) signIn(ctx context.Context, user domain.UserProfile, token, cookie string) error {
	s.mu.Lock()
	s.user = &user
	if token != "" {
		s.token = token
	}
	if cookie != "" {
		s.cookie = cookie
	}
	s.loading = false
	slot := store.Slot{Token: s.token, SessionCookie: s.cookie}
	s.mu.Unlock()

	if token == "" && cookie == "" {
		return nil
	}
	if err := s.tokens.Save(ctx, slot); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	return nil
}

// Logout tells the backend to drop the session and then clears local state no
// matter what the backend said.
func (s *SessionService) Logout(ctx context.Context) {
	if err := s.api.Post(ctx, "/auth/logout", nil, nil); err != nil {
		s.logger.Warn("backend logout failed, server-side session may still be valid", "error", err)
	}
	s.clear(ctx)
}

// LoginWithPassword signs in with email and password and keeps the returned
// bearer token.
func (s *SessionService) LoginWithPassword(ctx context.Context, email, password string) (*domain.UserProfile, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	reply, err := s.api.Send(ctx, client.Request{Method: http.MethodPost, Path: "/auth/login", Body: body}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	cookie, _ := reply.Cookie(client.SessionCookieName)
	if err := s.signIn(ctx, resp.User, resp.Token, cookie); err != nil {
		s.logger.Warn("signed in but token was not persisted", "error", err)
	}
	return &resp.User, nil
}

func (s *SessionService) Register(ctx context.Context, name, email, password string) (*domain.UserProfile, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	var resp authResponse
	body := map[string]string{"name": name, "email": email, "password": password}
	reply, err := s.api.Send(ctx, client.Request{Method: http.MethodPost, Path: "/auth/register", Body: body}, &resp)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	cookie, _ := reply.Cookie(client.SessionCookieName)
	if err := s.signIn(ctx, resp.User, resp.Token, cookie); err != nil {
		s.logger.Warn("registered but token was not persisted", "error", err)
	}
	return &resp.User, nil
}

func (s *SessionService) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return ErrMissingCredentials
	}
	if err := s.api.Post(ctx, "/auth/forgot-password", map[string]string{"email": email}, nil); err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}
	return nil
}

func (s *SessionService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrPasswordTooShort
	}
	body := map[string]string{"token": resetToken, "new_password": newPassword}
	if err := s.api.Post(ctx, "/auth/reset-password", body, nil); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	return nil
}

// ExchangeOAuthSession trades the session_id found in the callback URL
// fragment for an app session. The backend answers with a session cookie,
// which is persisted like a bearer token. Each session id is exchanged at
// most once; a repeat call returns ErrDuplicateExchange without touching the
// network. On failure Next points at the login page.
func (s *SessionService) ExchangeOAuthSession(ctx context.Context, callbackURL string) (CallbackResult, error) {
	result := CallbackResult{Next: LoginPath}

	sessionID, cleanURL, err := parseCallbackURL(callbackURL)
	result.CleanURL = cleanURL
	if err != nil {
		return result, err
	}

	if !s.claim(sessionID) {
		result.Next = ""
		return result, ErrDuplicateExchange
	}

	var user domain.UserProfile
	body := map[string]string{"session_id": sessionID}
	reply, err := s.api.Send(ctx, client.Request{Method: http.MethodPost, Path: "/auth/session", Body: body}, &user)
	if err != nil {
		s.logger.Error("auth callback failed", "error", err)
		return result, fmt.Errorf("%w: %w", ErrOAuthExchange, err)
	}

	cookie, ok := reply.Cookie(client.SessionCookieName)
	if !ok || cookie == "" {
		s.logger.Warn("auth callback set no session cookie, sign-in will not outlive this process")
	}
	if err := s.signIn(ctx, user, "", cookie); err != nil {
		s.logger.Warn("signed in but session cookie was not persisted", "error", err)
	}

	result.User = &user
	result.Next = DashboardPath
	return result, nil
}

// claim is the one-shot latch: check-and-set under a lock before any I/O.
// It remembers the latchLimit most recent ids.
func (s *SessionService) claim(sessionID string) bool {
	s.latchMu.Lock()
	defer s.latchMu.Unlock()
	if _, done := s.consumed[sessionID]; done {
		return false
	}
	s.consumed[sessionID] = struct{}{}
	s.order = append(s.order, sessionID)
	if len(s.order) > s.latchLimit {
		delete(s.consumed, s.order[0])
		s.order = s.order[1:]
	}
	return true
}

func parseCallbackURL(raw string) (sessionID, cleanURL string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %w", ErrMissingSessionID, err)
	}

	fragment := u.EscapedFragment()
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	cleanURL = clean.String()

	values, err := url.ParseQuery(fragment)
	if err != nil {
		return "", cleanURL, fmt.Errorf("%w: %w", ErrMissingSessionID, err)
	}
	sessionID = values.Get("session_id")
	if sessionID == "" {
		return "", cleanURL, ErrMissingSessionID
	}
	return sessionID, cleanURL, nil
}

func (s *SessionService) setSlot(slot store.Slot) {
	s.mu.Lock()
	s.token = slot.Token
	s.cookie = slot.SessionCookie
	s.mu.Unlock()
}

func (s *SessionService) setLoading(v bool) {
	s.mu.Lock()
	s.loading = v
	s.mu.Unlock()
}

func (s *SessionService) clear(ctx context.Context) {
	s.mu.Lock()
	s.user = nil
	s.token = ""
	s.cookie = ""
	s.mu.Unlock()

	s.api.ForgetCookies()
	if err := s.tokens.Clear(ctx); err != nil {
		s.logger.Warn("failed to clear persisted token", "error", err)
	}
}
