package devapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sebuszqo/FinanceDashboard/internal/user"
)

type ctxKey struct{}

func userIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

func (b *Backend) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			respondError(w, http.StatusUnauthorized, "Authorization header is required")
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			respondError(w, http.StatusUnauthorized, "Invalid token format")
			return
		}

		userID, tokenID, err := b.jwt.validateAccess(tokenString)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		b.mu.RLock()
		owner, live := b.accessTokens[tokenID]
		_, exists := b.accounts[userID]
		b.mu.RUnlock()
		if !live || owner != userID || !exists {
			respondError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	})
}

func (b *Backend) admin(next http.HandlerFunc) http.Handler {
	return b.authenticated(func(w http.ResponseWriter, r *http.Request) {
		b.mu.RLock()
		acc := b.accounts[userIDFrom(r)]
		isAdmin := acc != nil && acc.profile.Roles.Has(user.RoleAdmin)
		b.mu.RUnlock()
		if !isAdmin {
			respondError(w, http.StatusForbidden, "Admin role required")
			return
		}
		next(w, r)
	})
}

// AddUser seeds an account and returns its profile.
func (b *Backend) AddUser(username, email, password string, roles ...user.Role) (user.Profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.bcryptCost)
	if err != nil {
		return user.Profile{}, err
	}
	if len(roles) == 0 {
		roles = []user.Role{user.RoleUser}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := strings.ToLower(email)
	if _, taken := b.byEmail[key]; taken {
		return user.Profile{}, errEmailAlreadyExists
	}
	acc := &account{
		profile: user.Profile{
			ID:       uuid.NewString(),
			Username: username,
			Email:    email,
			Roles:    user.NewRoleSet(roles...),
		},
		passwordHash: hash,
		rotationKey:  uuid.NewString(),
		createdAt:    time.Now(),
	}
	b.accounts[acc.profile.ID] = acc
	b.byEmail[key] = acc.profile.ID
	b.categories[acc.profile.ID] = defaultCategories()
	return acc.profile, nil
}

// issueTokens must be called with b.mu held for writing.
func (b *Backend) issueTokens(acc *account) (map[string]string, error) {
	access, tokenID, err := b.jwt.generateAccess(acc.profile.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := b.jwt.generateRefresh(acc.profile.ID, acc.rotationKey)
	if err != nil {
		return nil, err
	}
	b.accessTokens[tokenID] = acc.profile.ID
	return map[string]string{"accessToken": access, "refreshToken": refresh}, nil
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	b.Calls.Login.Add(1)
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.byEmail[strings.ToLower(req.Email)]
	if !ok {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	acc := b.accounts[id]
	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.Password)) != nil {
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	tokens, err := b.issueTokens(acc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondSuccess(w, http.StatusOK, tokens)
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b.Calls.Refresh.Add(1)
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !decode(w, r, &req) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	userID, err := b.jwt.validateRefresh(req.RefreshToken, func(id string) (string, bool) {
		acc, ok := b.accounts[id]
		if !ok {
			return "", false
		}
		return acc.rotationKey, true
	})
	if err != nil {
		respondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	acc := b.accounts[userID]
	// Rotate so the presented refresh token cannot be replayed.
	acc.rotationKey = uuid.NewString()
	tokens, err := b.issueTokens(acc)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondSuccess(w, http.StatusOK, tokens)
}

func (b *Backend) handleMe(w http.ResponseWriter, r *http.Request) {
	if d := time.Duration(b.meDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	b.mu.RLock()
	acc, ok := b.accounts[userIDFrom(r)]
	var profile user.Profile
	if ok {
		profile = acc.profile
	}
	b.mu.RUnlock()
	if !ok {
		respondError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	respondSuccess(w, http.StatusOK, profile)
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	b.Calls.Register.Add(1)
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decode(w, r, &req) {
		return
	}

	var problems []string
	if err := user.ValidateUsername(req.Username); err != nil {
		problems = append(problems, err.Error())
	}
	if err := user.ValidateEmail(req.Email); err != nil {
		problems = append(problems, err.Error())
	}
	if err := user.ValidateNewPassword(req.Password, req.Password); err != nil {
		problems = append(problems, err.Error())
	}
	role := user.RoleUser
	if req.Role != "" {
		parsed, err := user.ParseRole(req.Role)
		if err != nil {
			problems = append(problems, "role must be USER or ADMIN")
		}
		role = parsed
	}
	if len(problems) > 0 {
		respondError(w, http.StatusBadRequest, "Validation errors occurred", problems)
		return
	}

	profile, err := b.AddUser(strings.TrimSpace(req.Username), strings.TrimSpace(req.Email), req.Password, role)
	if err != nil {
		if errors.Is(err, errEmailAlreadyExists) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondSuccess(w, http.StatusCreated, profile)
}

func (b *Backend) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := user.ValidateNewPassword(req.NewPassword, req.NewPassword); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc := b.accounts[userIDFrom(r)]
	if bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(req.CurrentPassword)) != nil {
		respondError(w, http.StatusBadRequest, "invalid old password")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), b.bcryptCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	acc.passwordHash = hash
	respondJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Password changed"})
}

func (b *Backend) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	b.Calls.SendOTP.Add(1)
	var req struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := user.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	// Unknown addresses get the same answer so accounts cannot be probed.
	if id, ok := b.byEmail[strings.ToLower(req.Email)]; ok {
		acc := b.accounts[id]
		secret, err := newOTPSecret(acc.profile.Email)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		code, err := generateOTP(secret, time.Now())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		acc.otpSecret = secret
		acc.lastOTP = code
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "If the account exists, a code has been sent"})
}

func (b *Backend) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"newPassword"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := user.ValidateNewPassword(req.NewPassword, req.NewPassword); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id, ok := b.byEmail[strings.ToLower(req.Email)]
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid verification code")
		return
	}
	acc := b.accounts[id]
	if acc.otpSecret == "" || !verifyOTP(strings.TrimSpace(req.OTP), acc.otpSecret, time.Now()) {
		respondError(w, http.StatusBadRequest, "invalid verification code")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), b.bcryptCost)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	acc.passwordHash = hash
	acc.otpSecret = ""
	acc.lastOTP = ""
	// A reset signs out every device.
	acc.rotationKey = uuid.NewString()
	respondJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Password has been reset"})
}

func (b *Backend) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username  string `json:"username"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatarUrl"`
	}
	if !decode(w, r, &req) {
		return
	}
	if err := user.ValidateUsername(req.Username); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := user.ValidateEmail(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	acc := b.accounts[userIDFrom(r)]
	newKey := strings.ToLower(strings.TrimSpace(req.Email))
	oldKey := strings.ToLower(acc.profile.Email)
	if newKey != oldKey {
		if _, taken := b.byEmail[newKey]; taken {
			respondError(w, http.StatusConflict, errEmailAlreadyExists.Error())
			return
		}
		delete(b.byEmail, oldKey)
		b.byEmail[newKey] = acc.profile.ID
	}
	acc.profile.Username = strings.TrimSpace(req.Username)
	acc.profile.Email = strings.TrimSpace(req.Email)
	acc.profile.AvatarURL = req.AvatarURL
	respondSuccess(w, http.StatusOK, acc.profile)
}
