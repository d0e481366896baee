package devapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
)

var (
	errEmailAlreadyExists     = errors.New("email already exists")
	ErrInvalidJWTToken        = errors.New("JWT token is invalid")
	ErrExpiredJWTToken        = errors.New("JWT token is expired")
	ErrInvalidJWTRefreshToken = errors.New("JWT refresh token is invalid")
)

const (
	defaultJWTDuration        = 10 * time.Minute
	defaultJWTRefreshDuration = 720 * time.Hour
)

type accessClaims struct {
	UserID string `json:"user_id"`
	jwt.StandardClaims
}

type refreshClaims struct {
	UserID string `json:"user_id"`
	CusKey string `json:"cus_key"`
	jwt.StandardClaims
}

// jwtManager signs HS256 tokens. Refresh tokens carry an HMAC of the user's
// current rotation key, so rotating the key revokes every earlier refresh token.
type jwtManager struct {
	secret          []byte
	accessDuration  time.Duration
	refreshDuration time.Duration
}

func newJWTManager(secret string) *jwtManager {
	return &jwtManager{
		secret:          []byte(secret),
		accessDuration:  defaultJWTDuration,
		refreshDuration: defaultJWTRefreshDuration,
	}
}

func customKey(userID, rotationKey string) string {
	h := hmac.New(sha256.New, []byte(rotationKey))
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}

func (j *jwtManager) keyFunc(*jwt.Token) (interface{}, error) {
	return j.secret, nil
}

// generateAccess returns the signed token and its ID.
func (j *jwtManager) generateAccess(userID string) (string, string, error) {
	now := time.Now()
	tokenID := uuid.NewString()
	claims := &accessClaims{
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			Id:        tokenID,
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(j.accessDuration).Unix(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	return signed, tokenID, err
}

func (j *jwtManager) generateRefresh(userID, rotationKey string) (string, error) {
	now := time.Now()
	claims := &refreshClaims{
		UserID: userID,
		CusKey: customKey(userID, rotationKey),
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(j.refreshDuration).Unix(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func classify(err error) error {
	var validationErr *jwt.ValidationError
	if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
		return ErrExpiredJWTToken
	}
	return ErrInvalidJWTToken
}

// validateAccess returns the user ID and token ID of a valid access token.
func (j *jwtManager) validateAccess(tokenString string) (string, string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, j.keyFunc)
	if err != nil {
		return "", "", classify(err)
	}
	claims, ok := token.Claims.(*accessClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", "", ErrInvalidJWTToken
	}
	return claims.UserID, claims.Id, nil
}

func (j *jwtManager) validateRefresh(tokenString string, rotationKeyFor func(userID string) (string, bool)) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &refreshClaims{}, j.keyFunc)
	if err != nil {
		return "", classify(err)
	}
	claims, ok := token.Claims.(*refreshClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return "", ErrInvalidJWTRefreshToken
	}
	rotationKey, ok := rotationKeyFor(claims.UserID)
	if !ok || !hmac.Equal([]byte(claims.CusKey), []byte(customKey(claims.UserID, rotationKey))) {
		return "", ErrInvalidJWTRefreshToken
	}
	return claims.UserID, nil
}
