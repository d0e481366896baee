package auth

import (
	"net/http"

	applog "github.com/sebuszqo/FinanceDashboard/internal/log"
	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

const LoginPath = "/login"

// DecisionKind tags the outcome of a route guard evaluation.
type DecisionKind int

const (
	// Pending means the session is still hydrating; nothing may be decided yet.
	Pending DecisionKind = iota
	// Redirect sends an unauthenticated visitor to Location.
	Redirect
	// Denied means authenticated but lacking every required role.
	Denied
	// Render lets the protected view through.
	Render
)

func (k DecisionKind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Redirect:
		return "redirect"
	case Denied:
		return "denied"
	case Render:
		return "render"
	}
	return "unknown"
}

type Decision struct {
	Kind     DecisionKind
	Location string
}

// Decide is the guard's decision function. An empty required set means
// any authenticated user.
func Decide(loading bool, u *user.Profile, required user.RoleSet) Decision {
	switch {
	case loading:
		return Decision{Kind: Pending}
	case u == nil:
		return Decision{Kind: Redirect, Location: LoginPath}
	case !required.IsEmpty() && !u.Roles.Intersects(required):
		return Decision{Kind: Denied}
	default:
		return Decision{Kind: Render}
	}
}

// StateFunc reports the session state for a request.
type StateFunc func(r *http.Request) (loading bool, u *user.Profile)

// Guard applies Decide to every request reaching a protected subtree.
type Guard struct {
	Required user.RoleSet
	State    StateFunc
	// Pending and Denied render the neutral and access-denied views.
	Pending http.Handler
	Denied  http.Handler
	Logger  *applog.Logger
}

func (g *Guard) Middleware(next http.Handler) http.Handler {
	logger := g.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentGuard)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loading, u := g.State(r)
		d := Decide(loading, u, g.Required)

		switch d.Kind {
		case Pending:
			w.Header().Set("Cache-Control", "no-store")
			g.Pending.ServeHTTP(w, r)
		case Redirect:
			redirect(w, r, d.Location)
		case Denied:
			logger.WarnContext(r.Context(), "access denied",
				applog.FieldPath, r.URL.Path,
				applog.FieldUserID, u.ID,
				"required", g.Required.String(),
				"roles", u.Roles.String())
			g.Denied.ServeHTTP(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// redirect replaces the current navigation. Form posts get 303 so the
// browser follows with a GET.
func redirect(w http.ResponseWriter, r *http.Request, location string) {
	w.Header().Set("Cache-Control", "no-store")
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", location)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	status := http.StatusFound
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, location, status)
}
