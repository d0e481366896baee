package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/sebuszqo/FinanceDashboard/internal/api"
	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/session"
	"github.com/sebuszqo/FinanceDashboard/internal/view"
)

const (
	homePath  = "/home"
	adminPath = "/admin"

	stepRequest = "request"
	stepConfirm = "confirm"
)

type RenderFunc func(w http.ResponseWriter, r *http.Request, status int, name string, page view.Page)

type LoginForm struct {
	Email string
}

type RegisterForm struct {
	Username string
	Email    string
}

type ResetForm struct {
	Step  string
	Email string
}

type Handler struct {
	authService Service
	render      RenderFunc
	logger      *applog.Logger
}

func NewHandler(authService Service, render RenderFunc, logger *applog.Logger) *Handler {
	if authService == nil {
		log.Fatal("Auth service must not be nil")
		return nil
	}
	if render == nil {
		log.Fatal("Render function must not be nil")
		return nil
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Handler{
		authService: authService,
		render:      render,
		logger:      logger.WithComponent(applog.ComponentAuth),
	}
}

// RegisterRoutes mounts the public account pages. They render whether or
// not the visitor is logged in.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /login", h.LoginPage)
	mux.HandleFunc("POST /login", h.HandleLogin)
	mux.HandleFunc("GET /register", h.RegisterPage)
	mux.HandleFunc("POST /register", h.HandleRegister)
	mux.HandleFunc("GET /forgot-password", h.ForgotPasswordPage)
	mux.HandleFunc("POST /forgot-password", h.HandleForgotPassword)
	mux.HandleFunc("POST /logout", h.HandleLogout)
}

func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login", view.Page{Title: "Log in", Data: LoginForm{}})
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		http.Error(w, "Session unavailable", http.StatusInternalServerError)
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	p, err := h.authService.Login(r.Context(), sess, email, password)
	if err != nil {
		status, dialog := h.failure(r, applog.OpLogin, err, "Login failed. Please try again.")
		h.render(w, r, status, "login", view.Page{Title: "Log in", Dialog: dialog, Data: LoginForm{Email: email}})
		return
	}

	target := homePath
	if p.IsAdmin() {
		target = adminPath
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "register", view.Page{Title: "Register", Data: RegisterForm{}})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	form := RegisterForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
	}
	err := h.authService.Register(r.Context(), Registration{
		Username: form.Username,
		Email:    form.Email,
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("confirm_password"),
		Role:     r.PostFormValue("role"),
	})
	if err != nil {
		status, dialog := h.failure(r, applog.OpRegister, err, "Registration failed. Please try again.")
		h.render(w, r, status, "register", view.Page{Title: "Register", Dialog: dialog, Data: form})
		return
	}
	h.render(w, r, http.StatusOK, "login", view.Page{
		Title:  "Log in",
		Dialog: view.InfoDialog("Account created. You can log in now."),
		Data:   LoginForm{Email: form.Email},
	})
}

func (h *Handler) ForgotPasswordPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "forgot_password", view.Page{
		Title: "Reset password",
		Data:  ResetForm{Step: stepRequest},
	})
}

// HandleForgotPassword drives both steps of the reset: requesting a code,
// then confirming it together with the new password.
func (h *Handler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	form := ResetForm{
		Step:  r.PostFormValue("step"),
		Email: strings.TrimSpace(r.PostFormValue("email")),
	}
	if form.Step != stepConfirm {
		form.Step = stepRequest
	}
	page := view.Page{Title: "Reset password", Data: form}

	if form.Step == stepRequest {
		if err := h.authService.RequestPasswordReset(r.Context(), form.Email); err != nil {
			status, dialog := h.failure(r, applog.OpReset, err, "Could not send the reset code. Please try again.")
			page.Dialog = dialog
			h.render(w, r, status, "forgot_password", page)
			return
		}
		form.Step = stepConfirm
		page.Data = form
		page.Dialog = view.InfoDialog("If the address is registered, a code is on its way.")
		h.render(w, r, http.StatusOK, "forgot_password", page)
		return
	}

	err := h.authService.ResetPassword(r.Context(), form.Email,
		r.PostFormValue("otp"), r.PostFormValue("new_password"), r.PostFormValue("confirm_password"))
	if err != nil {
		status, dialog := h.failure(r, applog.OpReset, err, "Could not reset the password. Please try again.")
		page.Dialog = dialog
		h.render(w, r, status, "forgot_password", page)
		return
	}
	h.render(w, r, http.StatusOK, "login", view.Page{
		Title:  "Log in",
		Dialog: view.InfoDialog("Password changed. Log in with your new password."),
		Data:   LoginForm{Email: form.Email},
	})
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.SignOut(w, r)
}

// SignOut clears the browser's session and sends it to the login page. It
// also serves the pages that find their credentials rejected mid-session.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if sess := session.FromContext(r.Context()); sess != nil {
		h.authService.Logout(r.Context(), sess)
	}
	redirect(w, r, LoginPath)
}

// failure maps an action error to a status and the dialog shown over the form.
func (h *Handler) failure(r *http.Request, op string, err error, fallback string) (int, *view.Dialog) {
	var input *InputError
	if errors.As(err, &input) {
		return http.StatusUnprocessableEntity, view.ErrorDialog("Please correct the following:", input.Messages()...)
	}
	if errors.Is(err, ErrInvalidCredentials) {
		return http.StatusUnauthorized, view.ErrorDialog("Invalid email or password.")
	}

	h.logger.WarnContext(r.Context(), "auth action failed",
		applog.FieldOperation, op,
		applog.FieldError, err.Error())

	if errors.Is(err, ErrProfileUnavailable) {
		return http.StatusBadGateway, view.ErrorDialog(err.Error())
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		status := http.StatusBadGateway
		if apiErr.Status < 500 {
			status = http.StatusUnprocessableEntity
		}
		if apiErr.Status == http.StatusTooManyRequests {
			status = http.StatusTooManyRequests
		}
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		return status, view.ErrorDialog(msg, apiErr.Details...)
	}
	return http.StatusBadGateway, view.ErrorDialog(fallback)
}
