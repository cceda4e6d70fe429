package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/target/mmk-rpc-api/config"
	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
)

// Login failures reported to callers.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserInactive  = errors.New("user is inactive")
	ErrTokenMissing  = errors.New("no pre-auth token issued to this client")
	ErrWrongPassword = errors.New("wrong password")
)

// LoginError is a failed login. Token is the pre-auth token reissued after a wrong
// password so the client can retry without another round trip.
type LoginError struct {
	Err   error
	Token string
}

func (e *LoginError) Error() string { return e.Err.Error() }

func (e *LoginError) Unwrap() error { return e.Err }

// LoginRequest carries the credentials of one login attempt.
// Digest is sha256hex(password_hash || pre_auth_token) as computed by the client.
type LoginRequest struct {
	Username string
	Digest   string
	Client   domainauth.ClientBinding
}

// SessionServiceOptions groups dependencies for SessionService.
type SessionServiceOptions struct {
	Users    core.UserRepository         // Required
	Sessions core.SessionRepository      // Required
	Tokens   core.PreAuthTokenRepository // Required
	Tx       core.Transactor             // Optional: makes the login writes atomic
	Config   config.SessionConfig
	Clock    data.TimeProvider // Optional: defaults to the wall clock
	NewToken func() string     // Optional: defaults to random UUIDs
	Logger   *slog.Logger
}

// SessionService creates, loads, renews and deletes sessions and issues pre-auth tokens.
type SessionService struct {
	users    core.UserRepository
	sessions core.SessionRepository
	tokens   core.PreAuthTokenRepository
	tx       core.Transactor
	cfg      config.SessionConfig
	clock    data.TimeProvider
	newToken func() string
	logger   *slog.Logger
}

// NewSessionService constructs a SessionService.
func NewSessionService(opts SessionServiceOptions) (*SessionService, error) {
	switch {
	case opts.Users == nil:
		return nil, errors.New("UserRepository is required")
	case opts.Sessions == nil:
		return nil, errors.New("SessionRepository is required")
	case opts.Tokens == nil:
		return nil, errors.New("PreAuthTokenRepository is required")
	}

	cfg := opts.Config
	cfg.Sanitize()
	svc := &SessionService{
		users:    opts.Users,
		sessions: opts.Sessions,
		tokens:   opts.Tokens,
		tx:       opts.Tx,
		cfg:      cfg,
		clock:    opts.Clock,
		newToken: opts.NewToken,
		logger:   opts.Logger,
	}
	if svc.clock == nil {
		svc.clock = &data.RealTimeProvider{}
	}
	if svc.newToken == nil {
		svc.newToken = uuid.NewString
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	svc.logger = svc.logger.With("component", "session_service")
	return svc, nil
}

// Establish loads the live session for token and pushes its expiry forward.
// It returns nil without error when the token is empty, unknown or expired.
func (s *SessionService) Establish(ctx context.Context, token string) (*domainauth.Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	now := s.clock.Now()
	sess, err := s.sessions.GetByToken(ctx, token, now)
	if errors.Is(err, data.ErrSessionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	expires, err := s.sessions.Extend(ctx, sess.ID, now.Add(s.cfg.TTL))
	if errors.Is(err, data.ErrSessionNotFound) {
		// Deleted between the read and the renewal.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("renew session: %w", err)
	}
	sess.ExpiresAt = expires
	return sess, nil
}

// IssuePreAuthToken replaces any token held by client with a fresh one.
func (s *SessionService) IssuePreAuthToken(ctx context.Context, client domainauth.ClientBinding) (string, error) {
	tok := domainauth.PreAuthToken{
		Token:     s.newToken(),
		Client:    client,
		ExpiresAt: s.clock.Now().Add(s.cfg.PreAuthTTL),
	}
	if err := s.tokens.Issue(ctx, tok); err != nil {
		return "", fmt.Errorf("issue pre-auth token: %w", err)
	}
	return tok.Token, nil
}

// Login verifies a salted password digest and opens a session.
//
// Failures wrap ErrUserNotFound, ErrUserInactive, ErrTokenMissing or ErrWrongPassword.
// A wrong password is reported as *LoginError carrying a fresh pre-auth token.
// The token is consumed inside the login transaction, so of two logins racing on
// one token only the first opens a session.
func (s *SessionService) Login(ctx context.Context, req LoginRequest) (*domainauth.Session, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if errors.Is(err, data.ErrUserNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.Active {
		return nil, ErrUserInactive
	}

	now := s.clock.Now()
	tok, err := s.tokens.GetLive(ctx, req.Client, now)
	if errors.Is(err, data.ErrTokenNotFound) {
		return nil, ErrTokenMissing
	}
	if err != nil {
		return nil, fmt.Errorf("load pre-auth token: %w", err)
	}

	if !VerifyDigest(user.PasswordHash, tok.Token, req.Digest) {
		s.logger.InfoContext(ctx, "login rejected", "username", user.Username, "reason", "wrong_password")
		next, issueErr := s.IssuePreAuthToken(ctx, req.Client)
		if issueErr != nil {
			s.logger.ErrorContext(ctx, "reissue after wrong password failed", "username", user.Username, "error", issueErr)
			return nil, fmt.Errorf("reissue pre-auth token: %w", issueErr)
		}
		return nil, &LoginError{Err: ErrWrongPassword, Token: next}
	}

	var sess *domainauth.Session
	err = s.withTx(ctx, func(ctx context.Context) error {
		n, err := s.tokens.DeleteToken(ctx, tok.Token)
		if err != nil {
			return fmt.Errorf("consume pre-auth token: %w", err)
		}
		if n != 1 {
			// A concurrent login consumed it, or a newer token replaced it.
			return ErrTokenMissing
		}
		id, err := s.sessions.Create(ctx, core.CreateSessionParams{
			UserID:    user.ID,
			Token:     s.newToken(),
			Client:    req.Client,
			CreatedAt: now,
			ExpiresAt: now.Add(s.cfg.TTL),
		})
		if err != nil {
			return err
		}
		if err := s.users.TouchLastLogin(ctx, user.ID, now); err != nil {
			return fmt.Errorf("record login: %w", err)
		}
		sess, err = s.sessions.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, ErrTokenMissing) {
		return nil, ErrTokenMissing
	}
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}

	s.logger.InfoContext(ctx, "login succeeded", "username", user.Username, "user_id", user.ID)
	return sess, nil
}

// Logout deletes one session. It reports whether a session was removed.
func (s *SessionService) Logout(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.sessions.Delete(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return ok, nil
}

// LogoutOthers deletes every session of userID except exceptSessionID.
// Having no other sessions is not a failure.
func (s *SessionService) LogoutOthers(ctx context.Context, userID, exceptSessionID string) (bool, error) {
	n, err := s.sessions.DeleteOthers(ctx, userID, exceptSessionID)
	if err != nil {
		return false, fmt.Errorf("delete other sessions: %w", err)
	}
	s.logger.DebugContext(ctx, "logged out other sessions", "user_id", userID, "count", n)
	return true, nil
}

// KeepAlive extends the session and returns its expiry.
func (s *SessionService) KeepAlive(ctx context.Context, sessionID string) (time.Time, error) {
	expires, err := s.sessions.Extend(ctx, sessionID, s.clock.Now().Add(s.cfg.TTL))
	if err != nil {
		return time.Time{}, fmt.Errorf("renew session: %w", err)
	}
	return expires, nil
}

func (s *SessionService) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return data.WithTx(ctx, s.tx, fn)
}

// ExpectedDigest returns the lowercase sha256 hex of passwordHash followed by token.
func ExpectedDigest(passwordHash, token string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(passwordHash) + token))
	return hex.EncodeToString(sum[:])
}

// VerifyDigest compares presented against the expected digest, ignoring case.
func VerifyDigest(passwordHash, token, presented string) bool {
	want := ExpectedDigest(passwordHash, token)
	got := strings.ToLower(strings.TrimSpace(presented))
	return subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1
}
