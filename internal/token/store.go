// Package token keeps the two opaque bearer tokens issued by the backend,
// scoped to one browser client.
package token

import (
	"context"
	"errors"

	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
)

// Key names a persisted token entry.
type Key string

const (
	AccessToken  Key = "accessToken"
	RefreshToken Key = "refreshToken"
)

var ErrNotFound = errors.New("token not found")

// Store is one client's view of its tokens. Absence is a valid outcome,
// so none of the operations report errors.
type Store interface {
	Get(ctx context.Context, key Key) (string, bool)
	Set(ctx context.Context, key Key, value string)
	Remove(ctx context.Context, key Key)
}

// Backend persists tokens for every client. Get returns ErrNotFound for a
// missing entry and Delete of a missing entry is not an error.
type Backend interface {
	Name() string
	Get(ctx context.Context, clientID string, key Key) (string, error)
	Set(ctx context.Context, clientID string, key Key, value string) error
	Delete(ctx context.Context, clientID string, key Key) error
	Ping(ctx context.Context) error
}

type scopedStore struct {
	backend  Backend
	clientID string
	logger   *applog.Logger
}

// NewStore scopes backend to clientID. Backend failures are logged and
// reported to callers as absence.
func NewStore(backend Backend, clientID string, logger *applog.Logger) Store {
	if logger == nil {
		logger = applog.Discard()
	}
	return &scopedStore{
		backend:  backend,
		clientID: clientID,
		logger: logger.WithComponent(applog.ComponentToken).With(
			applog.FieldBackend, backend.Name(),
			applog.FieldClientID, clientID,
		),
	}
}

func (s *scopedStore) Get(ctx context.Context, key Key) (string, bool) {
	value, err := s.backend.Get(ctx, s.clientID, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "token read failed, treating as absent",
				applog.FieldTokenKey, string(key), applog.FieldError, err.Error())
		}
		return "", false
	}
	if value == "" {
		return "", false
	}
	return value, true
}

func (s *scopedStore) Set(ctx context.Context, key Key, value string) {
	if err := s.backend.Set(ctx, s.clientID, key, value); err != nil {
		s.logger.WarnContext(ctx, "token write failed",
			applog.FieldTokenKey, string(key), applog.FieldError, err.Error())
	}
}

func (s *scopedStore) Remove(ctx context.Context, key Key) {
	if err := s.backend.Delete(ctx, s.clientID, key); err != nil {
		s.logger.WarnContext(ctx, "token delete failed",
			applog.FieldTokenKey, string(key), applog.FieldError, err.Error())
	}
}
