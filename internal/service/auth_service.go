package service

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bark-labs/gntp-notify/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL = 12 * time.Hour
	tokenIssuer     = "gntp-notify"
	guestUsername   = "guest"
)

// Session is an authenticated admin. Token is empty when auth is disabled.
type Session struct {
	Username  string    `json:"username"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
	Enabled   bool      `json:"enabled"`
}

// AuthService issues and checks HS256 session tokens for the admin API.
// The username travels as the token subject.
type AuthService struct {
	cfg config.Auth
	ttl time.Duration
	now func() time.Time
}

func NewAuthService(cfg config.Auth) *AuthService {
	cfg.Username = strings.TrimSpace(cfg.Username)
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &AuthService{cfg: cfg, ttl: ttl, now: time.Now}
}

// Enabled reports whether authentication is enforced.
func (a *AuthService) Enabled() bool {
	return a != nil && a.cfg.Enabled
}

// Login checks credentials and opens a session. With auth disabled every
// caller gets a guest session without a token.
func (a *AuthService) Login(username, password string) (Session, error) {
	if !a.Enabled() {
		return Session{Username: guestUsername}, nil
	}
	userOK := subtle.ConstantTimeCompare([]byte(strings.TrimSpace(username)), []byte(a.cfg.Username)) == 1
	if !userOK || !a.checkPassword(password) {
		return Session{}, ErrInvalidCredentials
	}

	now := a.now()
	expires := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   a.cfg.Username,
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString([]byte(a.cfg.JWTSecret))
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Username: a.cfg.Username, Token: signed, ExpiresAt: expires.UTC().Truncate(time.Second), Enabled: true}, nil
}

// Session resolves a bearer token. Tokens signed with another secret, by
// another issuer or for another user are rejected with ErrInvalidToken.
func (a *AuthService) Session(token string) (Session, error) {
	if !a.Enabled() {
		return Session{Username: guestUsername}, nil
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return []byte(a.cfg.JWTSecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithSubject(a.cfg.Username),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return Session{}, errors.Join(ErrInvalidToken, err)
	}
	return Session{Username: claims.Subject, Token: token, ExpiresAt: claims.ExpiresAt.Time, Enabled: true}, nil
}

// checkPassword accepts the configured password verbatim, or its bcrypt
// preimage when the configured value is a bcrypt hash.
func (a *AuthService) checkPassword(input string) bool {
	stored := []byte(a.cfg.Password)
	if _, err := bcrypt.Cost(stored); err == nil {
		return bcrypt.CompareHashAndPassword(stored, []byte(input)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(input), stored) == 1
}
