package api

import (
	"context"
	"net/http"

	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Login exchanges credentials for a token pair. It does not store them.
func (c *Client) Login(ctx context.Context, email, password string) (TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
	}, &pair)
	if err != nil {
		return TokenPair{}, err
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return TokenPair{}, ErrEmptyTokens
	}
	return pair, nil
}

// Me returns the profile the stored access token belongs to.
func (c *Client) Me(ctx context.Context) (*user.Profile, error) {
	var p user.Profile
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", authed: true}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/auth/register", body: req}, nil)
}

func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   "/auth/change-password",
		body:   map[string]string{"currentPassword": currentPassword, "newPassword": newPassword},
		authed: true,
	}, nil)
}

// SendOTP asks the backend to email a one-time reset code.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/send-otp",
		body:   map[string]string{"email": email},
	}, nil)
}

// VerifyOTP confirms a reset code and sets the new password.
func (c *Client) VerifyOTP(ctx context.Context, email, otp, newPassword string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/verify-otp",
		body:   map[string]string{"email": email, "otp": otp, "newPassword": newPassword},
	}, nil)
}

type ProfileUpdate struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

// UpdateProfile saves profile edits and returns the full updated profile.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*user.Profile, error) {
	var p user.Profile
	err := c.do(ctx, request{method: http.MethodPut, path: "/users/me", body: update, authed: true}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
