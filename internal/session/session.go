// Package session holds who is logged in for one browser client.
package session

import (
	"context"
	"sync"
	"time"

	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/token"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

const DefaultHydrationTimeout = 5 * time.Second

// ProfileFetcher asks the backend who the stored access token belongs to.
type ProfileFetcher interface {
	Me(ctx context.Context) (*user.Profile, error)
}

// State is a point-in-time copy of a session.
type State struct {
	User    *user.Profile
	Loading bool
}

func (s State) Authenticated() bool {
	return !s.Loading && s.User != nil
}

type Session struct {
	mu      sync.RWMutex
	user    *user.Profile
	loading bool
	// gen is bumped by SetUser and Logout so a fetch started earlier
	// cannot overwrite their result.
	gen uint64

	tokens   token.Store
	profiles ProfileFetcher
	timeout  time.Duration
	logger   *applog.Logger

	once  sync.Once
	ready chan struct{}
}

type Option func(*Session)

// WithTimeout bounds each profile fetch.
func WithTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *applog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger.WithComponent(applog.ComponentSession)
		}
	}
}

// New returns a session in its initial state: no user, loading.
func New(tokens token.Store, profiles ProfileFetcher, opts ...Option) *Session {
	s := &Session{
		loading:  true,
		tokens:   tokens,
		profiles: profiles,
		timeout:  DefaultHydrationTimeout,
		logger:   applog.Discard(),
		ready:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Hydrate rebuilds the session from the stored access token. Only the first
// call does any work; later calls return immediately.
func (s *Session) Hydrate(ctx context.Context) {
	s.once.Do(func() {
		defer close(s.ready)

		s.mu.RLock()
		gen := s.gen
		s.mu.RUnlock()

		s.finish(gen, s.fetch(ctx))
	})
}

// Reload fetches the profile again regardless of earlier hydration and
// returns it, or nil when the stored tokens do not identify anyone.
func (s *Session) Reload(ctx context.Context) *user.Profile {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	p := s.fetch(ctx)
	s.finish(gen, p)
	// Reload also counts as the initial hydration.
	s.once.Do(func() { close(s.ready) })
	return p.Clone()
}

func (s *Session) fetch(ctx context.Context) *user.Profile {
	if _, ok := s.tokens.Get(ctx, token.AccessToken); !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.profiles.Me(ctx)
	if err == nil && p != nil {
		err = p.Validate()
	}
	if err != nil {
		s.logger.InfoContext(ctx, "hydration failed, treating as logged out",
			applog.FieldOperation, applog.OpHydrate, applog.FieldError, err.Error())
		return nil
	}
	return p.Clone()
}

func (s *Session) finish(gen uint64, p *user.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen == s.gen {
		s.user = p
	}
	s.loading = false
}

// SetUser replaces the current user wholesale.
func (s *Session) SetUser(p *user.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.user = p.Clone()
}

// Logout forgets both tokens and the user. It does not navigate anywhere.
func (s *Session) Logout(ctx context.Context) {
	s.tokens.Remove(ctx, token.AccessToken)
	s.tokens.Remove(ctx, token.RefreshToken)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.user = nil
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return State{User: s.user.Clone(), Loading: s.loading}
}

// Ready is closed once the initial hydration has finished.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Tokens exposes the token store this session reads from.
func (s *Session) Tokens() token.Store {
	return s.tokens
}
