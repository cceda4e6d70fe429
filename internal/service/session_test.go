package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/mmk-rpc-api/config"
	"github.com/target/mmk-rpc-api/internal/core"
	"github.com/target/mmk-rpc-api/internal/data"
	domainauth "github.com/target/mmk-rpc-api/internal/domain/auth"
	"github.com/target/mmk-rpc-api/internal/mocks"
	"go.uber.org/mock/gomock"
)

const (
	testSessionID    = "0c3f7a52-5f0e-4f43-b8f8-3b4f1f0d2e10"
	testPasswordHash = "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"
)

var testClient = domainauth.ClientBinding{IP: "203.0.113.7", UserAgent: "curl/8.5"}

// recordingTransactor counts transaction outcomes without touching storage.
type recordingTransactor struct {
	begun, committed, rolledBack int
}

type recordingTx struct{ t *recordingTransactor }

func (r *recordingTransactor) Begin(ctx context.Context) (context.Context, core.Tx, error) {
	r.begun++
	return ctx, recordingTx{t: r}, nil
}

func (tx recordingTx) Commit() error   { tx.t.committed++; return nil }
func (tx recordingTx) Rollback() error { tx.t.rolledBack++; return nil }

type sessionFixture struct {
	users    *mocks.MockUserRepository
	sessions *mocks.MockSessionRepository
	tokens   *mocks.MockPreAuthTokenRepository
	tx       *recordingTransactor
	clock    *data.FixedTimeProvider
	svc      *SessionService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	f := &sessionFixture{
		users:    mocks.NewMockUserRepository(ctrl),
		sessions: mocks.NewMockSessionRepository(ctrl),
		tokens:   mocks.NewMockPreAuthTokenRepository(ctrl),
		tx:       &recordingTransactor{},
		clock:    data.NewFixedTimeProvider(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	seq := 0
	svc, err := NewSessionService(SessionServiceOptions{
		Users:    f.users,
		Sessions: f.sessions,
		Tokens:   f.tokens,
		Tx:       f.tx,
		Config:   config.SessionConfig{TTL: time.Hour, PreAuthTTL: time.Hour},
		Clock:    f.clock,
		NewToken: func() string {
			seq++
			return "tok-" + string(rune('a'+seq-1))
		},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func activeUser() *domainauth.User {
	return &domainauth.User{ID: testUserID, Username: "alice", PasswordHash: testPasswordHash, Active: true}
}

func TestNewSessionService_RequiresRepos(t *testing.T) {
	_, err := NewSessionService(SessionServiceOptions{})
	require.Error(t, err)
}

func TestExpectedDigest(t *testing.T) {
	d := ExpectedDigest(strings.ToUpper(testPasswordHash), "salt")
	assert.Equal(t, ExpectedDigest(testPasswordHash, "salt"), d)
	assert.Len(t, d, 64)
	assert.True(t, VerifyDigest(testPasswordHash, "salt", strings.ToUpper(d)))
	assert.False(t, VerifyDigest(testPasswordHash, "other", d))
	assert.False(t, VerifyDigest(testPasswordHash, "salt", ""))
}

func TestSessionService_Establish(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	stored := &domainauth.Session{ID: testSessionID, UserID: testUserID, Token: "live", ExpiresAt: now.Add(10 * time.Minute)}
	f.sessions.EXPECT().GetByToken(ctx, "live", now).Return(stored, nil)
	f.sessions.EXPECT().Extend(ctx, testSessionID, now.Add(time.Hour)).Return(now.Add(time.Hour), nil)

	got, err := f.svc.Establish(ctx, " live ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, testUserID, got.UserID)
	assert.Equal(t, now.Add(time.Hour), got.ExpiresAt)
}

func TestSessionService_Establish_Unknown(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	got, err := f.svc.Establish(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	f.sessions.EXPECT().GetByToken(ctx, "gone", gomock.Any()).Return(nil, data.ErrSessionNotFound)
	got, err = f.svc.Establish(ctx, "gone")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSessionService_Establish_StorageError(t *testing.T) {
	f := newSessionFixture(t)
	boom := errors.New("db down")
	f.sessions.EXPECT().GetByToken(gomock.Any(), "x", gomock.Any()).Return(nil, boom)

	_, err := f.svc.Establish(context.Background(), "x")
	require.ErrorIs(t, err, boom)
}

func TestSessionService_IssuePreAuthToken(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.tokens.EXPECT().Issue(ctx, domainauth.PreAuthToken{Token: "tok-a", Client: testClient, ExpiresAt: now.Add(time.Hour)}).Return(nil)

	tok, err := f.svc.IssuePreAuthToken(ctx, testClient)
	require.NoError(t, err)
	assert.Equal(t, "tok-a", tok)
}

func TestSessionService_Login_Success(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.users.EXPECT().GetByUsername(ctx, "alice").Return(activeUser(), nil)
	f.tokens.EXPECT().GetLive(ctx, testClient, now).Return(&domainauth.PreAuthToken{Token: "salt", Client: testClient}, nil)
	f.tokens.EXPECT().DeleteToken(ctx, "salt").Return(int64(1), nil)
	f.sessions.EXPECT().Create(ctx, core.CreateSessionParams{
		UserID: testUserID, Token: "tok-a", Client: testClient, CreatedAt: now, ExpiresAt: now.Add(time.Hour),
	}).Return(testSessionID, nil)
	f.users.EXPECT().TouchLastLogin(ctx, testUserID, now).Return(nil)
	f.sessions.EXPECT().GetByID(ctx, testSessionID).Return(&domainauth.Session{
		ID: testSessionID, UserID: testUserID, Token: "tok-a", ExpiresAt: now.Add(time.Hour),
	}, nil)

	sess, err := f.svc.Login(ctx, LoginRequest{
		Username: "alice",
		Digest:   strings.ToUpper(ExpectedDigest(testPasswordHash, "salt")),
		Client:   testClient,
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-a", sess.Token)
	assert.Equal(t, 1, f.tx.committed)
	assert.Zero(t, f.tx.rolledBack)
}

func TestSessionService_Login_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown user", func(t *testing.T) {
		f := newSessionFixture(t)
		f.users.EXPECT().GetByUsername(ctx, "bob").Return(nil, data.ErrUserNotFound)

		_, err := f.svc.Login(ctx, LoginRequest{Username: "bob", Client: testClient})
		require.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("inactive user", func(t *testing.T) {
		f := newSessionFixture(t)
		u := activeUser()
		u.Active = false
		f.users.EXPECT().GetByUsername(ctx, "alice").Return(u, nil)

		_, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Client: testClient})
		require.ErrorIs(t, err, ErrUserInactive)
	})

	t.Run("no pre-auth token", func(t *testing.T) {
		f := newSessionFixture(t)
		f.users.EXPECT().GetByUsername(ctx, "alice").Return(activeUser(), nil)
		f.tokens.EXPECT().GetLive(ctx, testClient, gomock.Any()).Return(nil, data.ErrTokenNotFound)

		_, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Client: testClient})
		require.ErrorIs(t, err, ErrTokenMissing)
	})

	t.Run("wrong password reissues token", func(t *testing.T) {
		f := newSessionFixture(t)
		f.users.EXPECT().GetByUsername(ctx, "alice").Return(activeUser(), nil)
		f.tokens.EXPECT().GetLive(ctx, testClient, gomock.Any()).Return(&domainauth.PreAuthToken{Token: "salt"}, nil)
		f.tokens.EXPECT().Issue(ctx, gomock.Any()).Return(nil)
		f.tokens.EXPECT().DeleteToken(gomock.Any(), gomock.Any()).Times(0)
		f.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.svc.Login(ctx, LoginRequest{
			Username: "alice",
			Digest:   ExpectedDigest(testPasswordHash, "stale"),
			Client:   testClient,
		})
		require.ErrorIs(t, err, ErrWrongPassword)
		var loginErr *LoginError
		require.ErrorAs(t, err, &loginErr)
		assert.Equal(t, "tok-a", loginErr.Token)
	})

	t.Run("reissue failure after wrong password is a fault", func(t *testing.T) {
		f := newSessionFixture(t)
		boom := errors.New("db down")
		f.users.EXPECT().GetByUsername(ctx, "alice").Return(activeUser(), nil)
		f.tokens.EXPECT().GetLive(ctx, testClient, gomock.Any()).Return(&domainauth.PreAuthToken{Token: "salt"}, nil)
		f.tokens.EXPECT().Issue(ctx, gomock.Any()).Return(boom)

		_, err := f.svc.Login(ctx, LoginRequest{
			Username: "alice",
			Digest:   ExpectedDigest(testPasswordHash, "stale"),
			Client:   testClient,
		})
		require.ErrorIs(t, err, boom)
		assert.NotErrorIs(t, err, ErrWrongPassword)
		var loginErr *LoginError
		assert.False(t, errors.As(err, &loginErr))
	})
}

func TestSessionService_Login_TokenAlreadyConsumed(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	// Both logins read the same token; the other one deleted it first.
	f.users.EXPECT().GetByUsername(ctx, "alice").Return(activeUser(), nil)
	f.tokens.EXPECT().GetLive(ctx, testClient, gomock.Any()).Return(&domainauth.PreAuthToken{Token: "salt"}, nil)
	f.tokens.EXPECT().DeleteToken(ctx, "salt").Return(int64(0), nil)
	f.sessions.EXPECT().Create(gomock.Any(), gomock.Any()).Times(0)
	f.users.EXPECT().TouchLastLogin(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	sess, err := f.svc.Login(ctx, LoginRequest{
		Username: "alice",
		Digest:   ExpectedDigest(testPasswordHash, "salt"),
		Client:   testClient,
	})
	require.ErrorIs(t, err, ErrTokenMissing)
	assert.Nil(t, sess)
	assert.Equal(t, 1, f.tx.rolledBack)
	assert.Zero(t, f.tx.committed)
}

func TestSessionService_Login_RollsBackOnWriteFailure(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	f.users.EXPECT().GetByUsername(ctx, "alice").Return(activeUser(), nil)
	f.tokens.EXPECT().GetLive(ctx, testClient, gomock.Any()).Return(&domainauth.PreAuthToken{Token: "salt"}, nil)
	f.tokens.EXPECT().DeleteToken(ctx, "salt").Return(int64(1), nil)
	f.sessions.EXPECT().Create(ctx, gomock.Any()).Return("", errors.New("unique violation"))

	_, err := f.svc.Login(ctx, LoginRequest{
		Username: "alice",
		Digest:   ExpectedDigest(testPasswordHash, "salt"),
		Client:   testClient,
	})
	require.Error(t, err)
	assert.Equal(t, 1, f.tx.rolledBack)
	assert.Zero(t, f.tx.committed)
}

func TestSessionService_LoginThenEstablish(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	opened := &domainauth.Session{ID: testSessionID, UserID: testUserID, Token: "tok-a", ExpiresAt: now.Add(time.Hour)}
	f.users.EXPECT().GetByUsername(ctx, "alice").Return(activeUser(), nil)
	f.tokens.EXPECT().GetLive(ctx, testClient, now).Return(&domainauth.PreAuthToken{Token: "salt"}, nil)
	f.tokens.EXPECT().DeleteToken(ctx, "salt").Return(int64(1), nil)
	f.sessions.EXPECT().Create(ctx, gomock.Any()).Return(testSessionID, nil)
	f.users.EXPECT().TouchLastLogin(ctx, testUserID, now).Return(nil)
	f.sessions.EXPECT().GetByID(ctx, testSessionID).Return(opened, nil)

	sess, err := f.svc.Login(ctx, LoginRequest{Username: "alice", Digest: ExpectedDigest(testPasswordHash, "salt"), Client: testClient})
	require.NoError(t, err)

	f.clock.AddTime(5 * time.Minute)
	later := f.clock.Now()
	f.sessions.EXPECT().GetByToken(ctx, sess.Token, later).Return(opened, nil)
	f.sessions.EXPECT().Extend(ctx, testSessionID, later.Add(time.Hour)).Return(later.Add(time.Hour), nil)

	established, err := f.svc.Establish(ctx, sess.Token)
	require.NoError(t, err)
	require.NotNil(t, established)
	assert.Equal(t, sess.UserID, established.UserID)
}

func TestSessionService_LogoutAndKeepAlive(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	f.sessions.EXPECT().Delete(ctx, testSessionID).Return(true, nil)
	ok, err := f.svc.Logout(ctx, testSessionID)
	require.NoError(t, err)
	assert.True(t, ok)

	f.sessions.EXPECT().DeleteOthers(ctx, testUserID, testSessionID).Return(int64(0), nil)
	ok, err = f.svc.LogoutOthers(ctx, testUserID, testSessionID)
	require.NoError(t, err)
	assert.True(t, ok)

	f.sessions.EXPECT().DeleteOthers(ctx, testUserID, testSessionID).Return(int64(0), errors.New("db"))
	ok, err = f.svc.LogoutOthers(ctx, testUserID, testSessionID)
	require.Error(t, err)
	assert.False(t, ok)

	// Extend never moves expiry backwards; the stored value wins.
	stored := now.Add(2 * time.Hour)
	f.sessions.EXPECT().Extend(ctx, testSessionID, now.Add(time.Hour)).Return(stored, nil)
	expires, err := f.svc.KeepAlive(ctx, testSessionID)
	require.NoError(t, err)
	assert.Equal(t, stored, expires)
}
