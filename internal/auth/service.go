package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/token"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

const otpLength = 6

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrProfileUnavailable  = errors.New("signed in, but your profile could not be loaded")
	ErrInvalidRole         = errors.New("accounts can only be registered with the USER role")
	ErrInvalidVerification = errors.New("verification code must be 6 digits")
)

// InputError lists every problem found in a submitted form. It is
// returned before any backend call.
type InputError struct {
	Errs []error
}

func (e *InputError) Error() string {
	return errors.Join(e.Errs...).Error()
}

func (e *InputError) Unwrap() []error {
	return e.Errs
}

func (e *InputError) Messages() []string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return msgs
}

// checkInput collects the non-nil errors into an InputError.
func checkInput(errs ...error) error {
	var found []error
	for _, err := range errs {
		if err != nil {
			found = append(found, err)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return &InputError{Errs: found}
}

// AuthAPI is the part of the backend client the auth flows call.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (api.TokenPair, error)
	Register(ctx context.Context, req api.RegisterRequest) error
	SendOTP(ctx context.Context, email string) error
	VerifyOTP(ctx context.Context, email, otp, newPassword string) error
}

type Registration struct {
	Username string
	Email    string
	Password string
	Confirm  string
	Role     string
}

type Service interface {
	Login(ctx context.Context, sess *session.Session, email, password string) (*user.Profile, error)
	Register(ctx context.Context, reg Registration) error
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword, confirm string) error
	Logout(ctx context.Context, sess *session.Session)
}

type service struct {
	api    AuthAPI
	logger *applog.Logger
}

func NewAuthService(authAPI AuthAPI, logger *applog.Logger) Service {
	if logger == nil {
		logger = applog.Discard()
	}
	return &service{
		api:    authAPI,
		logger: logger.WithComponent(applog.ComponentAuth),
	}
}

// Login stores the issued tokens in the session's store and hydrates the
// session from them.
func (s *service) Login(ctx context.Context, sess *session.Session, email, password string) (*user.Profile, error) {
	email = strings.TrimSpace(email)
	var missing []error
	if email == "" {
		missing = append(missing, user.ErrEmailRequired)
	}
	if password == "" {
		missing = append(missing, user.ErrPasswordRequired)
	}
	if err := checkInput(missing...); err != nil {
		return nil, err
	}

	pair, err := s.api.Login(ctx, email, password)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, err
	}

	tokens := sess.Tokens()
	tokens.Set(ctx, token.AccessToken, pair.AccessToken)
	tokens.Set(ctx, token.RefreshToken, pair.RefreshToken)

	p := sess.Reload(ctx)
	if p == nil {
		sess.Logout(ctx)
		s.logger.WarnContext(ctx, "login succeeded but profile could not be loaded", applog.FieldOperation, applog.OpLogin)
		return nil, ErrProfileUnavailable
	}
	s.logger.InfoContext(ctx, "user logged in", applog.FieldOperation, applog.OpLogin, applog.FieldUserID, p.ID)
	return p, nil
}

func (s *service) Register(ctx context.Context, reg Registration) error {
	var roleErr error
	if reg.Role != "" {
		if parsed, err := user.ParseRole(reg.Role); err != nil || parsed != user.RoleUser {
			roleErr = ErrInvalidRole
		}
	}
	if err := checkInput(
		user.ValidateUsername(reg.Username),
		user.ValidateEmail(reg.Email),
		user.ValidateNewPassword(reg.Password, reg.Confirm),
		roleErr,
	); err != nil {
		return err
	}

	err := s.api.Register(ctx, api.RegisterRequest{
		Username: strings.TrimSpace(reg.Username),
		Email:    strings.TrimSpace(reg.Email),
		Password: reg.Password,
		Role:     string(user.RoleUser),
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "account registered", applog.FieldOperation, applog.OpRegister)
	return nil
}

func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	if err := checkInput(user.ValidateEmail(email)); err != nil {
		return err
	}
	return s.api.SendOTP(ctx, strings.TrimSpace(email))
}

func (s *service) ResetPassword(ctx context.Context, email, otp, newPassword, confirm string) error {
	otp = strings.TrimSpace(otp)
	if err := checkInput(
		user.ValidateEmail(email),
		validOTP(otp),
		user.ValidateNewPassword(newPassword, confirm),
	); err != nil {
		return err
	}
	if err := s.api.VerifyOTP(ctx, strings.TrimSpace(email), otp, newPassword); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "password reset", applog.FieldOperation, applog.OpReset)
	return nil
}

func validOTP(otp string) error {
	if len(otp) != otpLength {
		return ErrInvalidVerification
	}
	for _, c := range otp {
		if c < '0' || c > '9' {
			return ErrInvalidVerification
		}
	}
	return nil
}

func (s *service) Logout(ctx context.Context, sess *session.Session) {
	sess.Logout(ctx)
	s.logger.InfoContext(ctx, "user logged out", applog.FieldOperation, applog.OpLogout)
}
