// Package session keeps an authenticated session with the vendor backend alive.
//
// A [Manager] hands out token sets that remain valid for at least [Manager.Skew]. When the current
// set is about to expire the Manager refreshes it, and when refreshing fails it logs in again with
// the credentials it was given. Concurrent callers that find the session stale share a single
// refresh or login.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/carnet-go/vehicle-command/internal/authentication"
	"github.com/carnet-go/vehicle-command/internal/log"
	"github.com/carnet-go/vehicle-command/pkg/protocol"
	"github.com/carnet-go/vehicle-command/pkg/token"
)

// State of a session.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
	Expired
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "UNAUTHENTICATED"
	case Authenticating:
		return "AUTHENTICATING"
	case Authenticated:
		return "AUTHENTICATED"
	case Expired:
		return "EXPIRED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Authenticator obtains token sets from the identity provider. [authentication.Flow] is the
// production implementation.
type Authenticator interface {
	Login(ctx context.Context, creds authentication.Credentials) (*token.Set, error)
	Refresh(ctx context.Context, current *token.Set) (*token.Set, error)
	Revoke(ctx context.Context, current *token.Set) error
}

var ErrNoSession = errors.New("no session: log in or restore a token first")

const flightKey = "session"

// RenewTimeout bounds a shared login or refresh. It runs detached from the callers' contexts so
// that one caller giving up does not fail the others.
const RenewTimeout = 2 * time.Minute

// Manager owns the token set of one account.
type Manager struct {
	// Skew is the minimum remaining lifetime of a token returned by Token.
	Skew time.Duration
	// Clock returns the current time.
	Clock func() time.Time

	auth  Authenticator
	group singleflight.Group

	lock      sync.Mutex
	creds     *authentication.Credentials
	current   *token.Set
	state     State
	listeners []func(*token.Set)
}

// NewManager returns a Manager in the Unauthenticated state.
func NewManager(auth Authenticator) *Manager {
	return &Manager{
		Skew:  token.DefaultSkew,
		Clock: time.Now,
		auth:  auth,
	}
}

func (m *Manager) now() time.Time {
	if m.Clock == nil {
		return time.Now()
	}
	return m.Clock()
}

// State returns the current session state.
func (m *Manager) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state
}

// Current returns the current token set without checking its validity. Returns nil if there is no
// session.
func (m *Manager) Current() *token.Set {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.current
}

// OnTokenChange registers a callback invoked after every token replacement, including nil on
// logout. Callers use it to persist the token set.
func (m *Manager) OnTokenChange(callback func(*token.Set)) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.listeners = append(m.listeners, callback)
}

func (m *Manager) notify(set *token.Set) {
	m.lock.Lock()
	listeners := append([]func(*token.Set){}, m.listeners...)
	m.lock.Unlock()
	for _, callback := range listeners {
		callback(set)
	}
}

// usable returns the current set if it can be handed out. The caller must hold m.lock.
func (m *Manager) usable() *token.Set {
	if m.state == Authenticated && m.current.Valid(m.now(), m.Skew) {
		return m.current
	}
	return nil
}

// install replaces the current token set.
func (m *Manager) install(set *token.Set) (*token.Set, error) {
	if !set.Valid(m.now(), m.Skew) {
		m.lock.Lock()
		m.state = Expired
		m.lock.Unlock()
		return nil, protocol.NewAuthError(protocol.AuthUnexpectedResponseShape,
			fmt.Sprintf("identity provider issued a token that expires at %s", set.ExpiresAt.Format(time.RFC3339)), nil)
	}
	m.lock.Lock()
	m.current = set
	m.state = Authenticated
	m.lock.Unlock()
	m.notify(set)
	return set, nil
}

func (m *Manager) setState(state State) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.state = state
}

// Login authenticates with creds and remembers them for later re-login.
func (m *Manager) Login(ctx context.Context, creds authentication.Credentials) (*token.Set, error) {
	m.lock.Lock()
	m.creds = &creds
	m.lock.Unlock()
	set, _, err := m.share(ctx, func(ctx context.Context) (*token.Set, error) {
		return m.login(ctx, creds)
	})
	return set, err
}

// share runs fn as the single in-flight renewal, or joins the one already running. The caller
// stops waiting when ctx is done; the renewal itself only ends with RenewTimeout.
func (m *Manager) share(ctx context.Context, fn func(context.Context) (*token.Set, error)) (*token.Set, bool, error) {
	results := m.group.DoChan(flightKey, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RenewTimeout)
		defer cancel()
		return fn(flightCtx)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case result := <-results:
		if result.Err != nil {
			return nil, result.Shared, result.Err
		}
		return result.Val.(*token.Set), result.Shared, nil
	}
}

func (m *Manager) login(ctx context.Context, creds authentication.Credentials) (*token.Set, error) {
	m.setState(Authenticating)
	set, err := m.auth.Login(ctx, creds)
	if err != nil {
		m.lock.Lock()
		m.current = nil
		m.state = Unauthenticated
		m.lock.Unlock()
		return nil, err
	}
	return m.install(set)
}

// Restore installs a previously saved token set. It is refreshed on first use if it is stale.
func (m *Manager) Restore(set *token.Set) error {
	if set == nil || set.AccessToken == "" {
		return token.ErrMissingAccessToken
	}
	m.lock.Lock()
	m.current = set
	if set.Valid(m.now(), m.Skew) {
		m.state = Authenticated
	} else {
		m.state = Expired
	}
	m.lock.Unlock()
	log.Debug("Restored %s", set)
	return nil
}

// Token returns a token set valid for at least Skew, refreshing or logging in again if necessary.
func (m *Manager) Token(ctx context.Context) (*token.Set, error) {
	m.lock.Lock()
	set := m.usable()
	m.lock.Unlock()
	if set != nil {
		return set, nil
	}
	set, shared, err := m.share(ctx, m.renew)
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug("Shared in-flight session renewal")
	}
	return set, nil
}

func (m *Manager) renew(ctx context.Context) (*token.Set, error) {
	m.lock.Lock()
	if set := m.usable(); set != nil {
		m.lock.Unlock()
		return set, nil
	}
	current := m.current
	creds := m.creds
	previous := m.state
	m.state = Authenticating
	m.lock.Unlock()

	var refreshErr error
	if current.CanRefresh() {
		set, err := m.auth.Refresh(ctx, current)
		if err == nil {
			return m.install(set)
		}
		refreshErr = err
		log.Warning("Token refresh failed: %s", err)
	}

	if creds == nil {
		if current == nil {
			m.setState(Unauthenticated)
			return nil, ErrNoSession
		}
		m.setState(Expired)
		if refreshErr != nil {
			return nil, refreshErr
		}
		return nil, protocol.NewAuthError(protocol.AuthInvalidCredentials, "session expired and no credentials are available", nil)
	}
	log.Info("Session %s, logging in again", previous)
	return m.login(ctx, *creds)
}

// Invalidate marks the session expired after the backend rejected stale. If the token set has
// already been replaced, the call has no effect.
func (m *Manager) Invalidate(stale *token.Set) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if stale != nil && stale != m.current {
		return
	}
	if m.current != nil {
		m.state = Expired
	}
}

// Logout revokes the refresh token and forgets the session and credentials.
func (m *Manager) Logout(ctx context.Context) error {
	m.lock.Lock()
	current := m.current
	m.current = nil
	m.creds = nil
	m.state = Unauthenticated
	m.lock.Unlock()
	if current == nil {
		return nil
	}
	m.notify(nil)
	if err := m.auth.Revoke(ctx, current); err != nil {
		log.Warning("Failed to revoke token: %s", err)
		return err
	}
	return nil
}
