// Package settings serves the signed-in user's profile and password pages.
package settings

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
)

var ErrInvalidAvatarURL = errors.New("avatar URL must be an http or https address")

// ProfileAPI is the part of the backend client the settings page calls.
type ProfileAPI interface {
	UpdateProfile(ctx context.Context, update api.ProfileUpdate) (*user.Profile, error)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
}

type ClientFunc func(r *http.Request) ProfileAPI

type RenderFunc func(w http.ResponseWriter, r *http.Request, status int, name string, page view.Page)

// View is what the settings template shows. Profile holds the submitted
// values after a failed edit so the form keeps them.
type View struct {
	Profile *user.Profile
}

type Handler struct {
	clients ClientFunc
	render  RenderFunc
	signOut http.HandlerFunc
	logger  *applog.Logger
}

func NewHandler(clients ClientFunc, render RenderFunc, signOut http.HandlerFunc, logger *applog.Logger) *Handler {
	if clients == nil {
		log.Fatal("Client function must not be nil")
		return nil
	}
	if render == nil || signOut == nil {
		log.Fatal("Render and sign-out functions must not be nil")
		return nil
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Handler{
		clients: clients,
		render:  render,
		signOut: signOut,
		logger:  logger.WithComponent(applog.ComponentSettings),
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /settings", h.Settings)
	mux.HandleFunc("POST /settings/profile", h.UpdateProfile)
	mux.HandleFunc("POST /settings/password", h.ChangePassword)
}

func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	p := currentUser(r)
	if p == nil {
		h.signOut(w, r)
		return
	}
	h.render(w, r, http.StatusOK, "settings", page(p, nil))
}

// UpdateProfile saves the edit and replaces the session user with the
// profile the backend returns.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	current := currentUser(r)
	if current == nil {
		h.signOut(w, r)
		return
	}
	update := api.ProfileUpdate{
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		AvatarURL: strings.TrimSpace(r.PostFormValue("avatar_url")),
	}
	submitted := current.Clone()
	submitted.Username, submitted.Email, submitted.AvatarURL = update.Username, update.Email, update.AvatarURL

	if problems := messages(
		user.ValidateUsername(update.Username),
		user.ValidateEmail(update.Email),
		validateAvatarURL(update.AvatarURL),
	); len(problems) > 0 {
		h.render(w, r, http.StatusUnprocessableEntity, "settings",
			page(submitted, view.ErrorDialog("Please correct the following:", problems...)))
		return
	}

	updated, err := h.clients(r).UpdateProfile(r.Context(), update)
	if err == nil {
		err = updated.Validate()
	}
	if err != nil {
		if api.IsUnauthorized(err) {
			h.signOut(w, r)
			return
		}
		h.logger.WarnContext(r.Context(), "profile update failed", applog.FieldUserID, current.ID, applog.FieldError, err.Error())
		h.render(w, r, statusFor(err), "settings",
			page(submitted, view.ErrorDialog(api.Message(err, "Could not save your profile. Please try again."))))
		return
	}

	session.FromContext(r.Context()).SetUser(updated)
	h.render(w, r, http.StatusOK, "settings", view.Page{
		User:   updated,
		Dialog: view.InfoDialog("Profile saved."),
		Data:   View{Profile: updated},
	})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	current := currentUser(r)
	if current == nil {
		h.signOut(w, r)
		return
	}
	currentPassword := r.PostFormValue("current_password")
	newPassword := r.PostFormValue("new_password")

	if err := user.ValidatePasswordChange(currentPassword, newPassword, r.PostFormValue("confirm_password")); err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "settings", page(current, view.ErrorDialog(err.Error())))
		return
	}
	if err := h.clients(r).ChangePassword(r.Context(), currentPassword, newPassword); err != nil {
		if api.IsUnauthorized(err) {
			h.signOut(w, r)
			return
		}
		h.logger.WarnContext(r.Context(), "password change failed", applog.FieldUserID, current.ID, applog.FieldError, err.Error())
		h.render(w, r, statusFor(err), "settings",
			page(current, view.ErrorDialog(api.Message(err, "Could not change your password. Please try again."))))
		return
	}
	h.render(w, r, http.StatusOK, "settings", page(current, view.InfoDialog("Password changed.")))
}

func currentUser(r *http.Request) *user.Profile {
	if s := session.FromContext(r.Context()); s != nil {
		return s.State().User
	}
	return nil
}

func page(p *user.Profile, dialog *view.Dialog) view.Page {
	return view.Page{Title: "Settings", Dialog: dialog, Data: View{Profile: p}}
}

func validateAvatarURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidAvatarURL
	}
	return nil
}

func messages(errs ...error) []string {
	var out []string
	for _, err := range errs {
		if err != nil {
			out = append(out, err.Error())
		}
	}
	return out
}

func statusFor(err error) int {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Status < 500 {
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadGateway
}
