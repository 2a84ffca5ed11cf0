package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carnet-go/vehicle-command/internal/authentication"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
	"github.com/carnet-go/vehicle-command/pkg/token"
)

type fakeAuthenticator struct {
	now      func() time.Time
	lifetime time.Duration

	logins   atomic.Int32
	refreshs atomic.Int32
	revokes  atomic.Int32

	refreshStarted chan struct{}
	releaseRefresh chan struct{}
	refreshErr     error
	loginErr       error
}

func newFakeAuthenticator(now func() time.Time) *fakeAuthenticator {
	return &fakeAuthenticator{now: now, lifetime: time.Hour}
}

func (f *fakeAuthenticator) issue(refresh string) *token.Set {
	return &token.Set{
		AccessToken:  "access",
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresAt:    f.now().Add(f.lifetime),
	}
}

func (f *fakeAuthenticator) Login(ctx context.Context, creds authentication.Credentials) (*token.Set, error) {
	f.logins.Add(1)
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.issue("refresh-login"), nil
}

func (f *fakeAuthenticator) Refresh(ctx context.Context, current *token.Set) (*token.Set, error) {
	f.refreshs.Add(1)
	if f.refreshStarted != nil {
		close(f.refreshStarted)
		<-f.releaseRefresh
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.issue(current.RefreshToken), nil
}

func (f *fakeAuthenticator) Revoke(ctx context.Context, current *token.Set) error {
	f.revokes.Add(1)
	return nil
}

type testClock struct {
	lock sync.Mutex
	t    time.Time
}

func (c *testClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.t = c.t.Add(d)
}

func newTestManager() (*Manager, *fakeAuthenticator, *testClock) {
	clock := &testClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	auth := newFakeAuthenticator(clock.Now)
	m := NewManager(auth)
	m.Clock = clock.Now
	return m, auth, clock
}

func TestTokenHonorsSkew(t *testing.T) {
	m, auth, clock := newTestManager()
	_, err := m.Login(context.Background(), authentication.Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, Authenticated, m.State())

	// 56 minutes in, the remaining lifetime is inside the five minute skew.
	clock.Advance(56 * time.Minute)
	set, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.True(t, set.ExpiresAt.After(clock.Now().Add(m.Skew)))
	assert.EqualValues(t, 1, auth.refreshs.Load())

	set2, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Same(t, set, set2, "fresh token must be reused")
	assert.EqualValues(t, 1, auth.refreshs.Load())
}

func TestTokenRejectsShortLivedSet(t *testing.T) {
	m, auth, _ := newTestManager()
	auth.lifetime = time.Minute
	_, err := m.Login(context.Background(), authentication.Credentials{Username: "u", Password: "p"})
	assert.True(t, errors.Is(err, protocol.ErrUnexpectedResponseShape), "got %v", err)
}

func TestConcurrentCallsShareRefresh(t *testing.T) {
	m, auth, clock := newTestManager()
	require.NoError(t, m.Restore(&token.Set{AccessToken: "old", RefreshToken: "r", ExpiresAt: clock.Now().Add(time.Minute)}))
	assert.Equal(t, Expired, m.State())

	auth.refreshStarted = make(chan struct{})
	auth.releaseRefresh = make(chan struct{})

	var wg sync.WaitGroup
	results := make([]*token.Set, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = m.Token(context.Background())
	}()
	<-auth.refreshStarted
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = m.Token(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	close(auth.releaseRefresh)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Same(t, results[0], results[1])
	assert.EqualValues(t, 1, auth.refreshs.Load())
	assert.EqualValues(t, 0, auth.logins.Load())
}

func TestCancelledCallerDoesNotFailSharedRefresh(t *testing.T) {
	m, auth, clock := newTestManager()
	require.NoError(t, m.Restore(&token.Set{AccessToken: "old", RefreshToken: "r", ExpiresAt: clock.Now().Add(time.Minute)}))

	auth.refreshStarted = make(chan struct{})
	auth.releaseRefresh = make(chan struct{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := m.Token(firstCtx)
		firstErr <- err
	}()
	<-auth.refreshStarted

	var (
		wg        sync.WaitGroup
		second    *token.Set
		secondErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, secondErr = m.Token(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(auth.releaseRefresh)
	wg.Wait()
	require.NoError(t, secondErr)
	assert.Equal(t, "r", second.RefreshToken)
	assert.Equal(t, Authenticated, m.State())
	assert.EqualValues(t, 1, auth.refreshs.Load())
	assert.EqualValues(t, 0, auth.logins.Load())
}

func TestRefreshFailureFallsBackToLogin(t *testing.T) {
	m, auth, clock := newTestManager()
	_, err := m.Login(context.Background(), authentication.Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)

	auth.refreshErr = protocol.NewAuthError(protocol.AuthInvalidCredentials, "refresh token rejected", nil)
	clock.Advance(2 * time.Hour)
	set, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refresh-login", set.RefreshToken)
	assert.EqualValues(t, 1, auth.refreshs.Load())
	assert.EqualValues(t, 2, auth.logins.Load())
}

func TestNoCredentials(t *testing.T) {
	m, auth, clock := newTestManager()
	_, err := m.Token(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)

	require.NoError(t, m.Restore(&token.Set{AccessToken: "old", ExpiresAt: clock.Now()}))
	_, err = m.Token(context.Background())
	assert.ErrorIs(t, err, protocol.ErrInvalidCredentials)
	assert.Equal(t, Expired, m.State())
	assert.EqualValues(t, 0, auth.logins.Load())
}

func TestInvalidate(t *testing.T) {
	m, auth, _ := newTestManager()
	first, err := m.Login(context.Background(), authentication.Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)

	m.Invalidate(&token.Set{AccessToken: "someone else's"})
	assert.Equal(t, Authenticated, m.State(), "stale pointer must not expire the session")

	m.Invalidate(first)
	assert.Equal(t, Expired, m.State())
	second, err := m.Token(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 1, auth.refreshs.Load())
}

func TestLoginFailure(t *testing.T) {
	m, auth, _ := newTestManager()
	auth.loginErr = protocol.NewAuthError(protocol.AuthInvalidCredentials, "", nil)
	_, err := m.Login(context.Background(), authentication.Credentials{Username: "u", Password: "bad"})
	assert.ErrorIs(t, err, protocol.ErrInvalidCredentials)
	assert.Equal(t, Unauthenticated, m.State())
}

func TestLogoutAndTokenChange(t *testing.T) {
	m, auth, _ := newTestManager()
	var changes []*token.Set
	m.OnTokenChange(func(set *token.Set) { changes = append(changes, set) })

	_, err := m.Login(context.Background(), authentication.Credentials{Username: "u", Password: "p"})
	require.NoError(t, err)
	require.NoError(t, m.Logout(context.Background()))

	assert.Equal(t, Unauthenticated, m.State())
	assert.Nil(t, m.Current())
	assert.EqualValues(t, 1, auth.revokes.Load())
	require.Len(t, changes, 2)
	assert.NotNil(t, changes[0])
	assert.Nil(t, changes[1])
}
