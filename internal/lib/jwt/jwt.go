// Package jwt signs and verifies the HS256 tokens used by the service.
//
// Every token carries a kind claim. Verify only accepts a token whose kind
// matches the one the caller expects, so a refresh token can never pass as
// an access token and an email token can never reach a protected route.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token is expired")
	ErrEmptySecret  = errors.New("signing secret is empty")
)

type Kind string

const (
	KindAccess            Kind = "access"
	KindRefresh           Kind = "refresh"
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
)

// Payload is implemented by AccessPayload, RefreshPayload and EmailPayload.
type Payload interface {
	Kind() Kind
	apply(c *Claims)
}

type AccessPayload struct {
	UserID    string `json:"userId"`
	UserEmail string `json:"userEmail"`
	IsAdmin   bool   `json:"isAdmin"`
}

func (AccessPayload) Kind() Kind { return KindAccess }

func (p AccessPayload) apply(c *Claims) {
	c.Subject = p.UserID
	c.UserEmail = p.UserEmail
	c.IsAdmin = p.IsAdmin
}

type RefreshPayload struct {
	UserID string `json:"userId"`
}

func (RefreshPayload) Kind() Kind { return KindRefresh }

func (p RefreshPayload) apply(c *Claims) {
	c.Subject = p.UserID
}

// EmailPayload backs both verification and password reset tokens; Purpose
// selects which one.
type EmailPayload struct {
	UserEmail string `json:"userEmail"`
	Purpose   Kind   `json:"-"`
}

func (p EmailPayload) Kind() Kind { return p.Purpose }

func (p EmailPayload) apply(c *Claims) {
	c.UserEmail = p.UserEmail
}

type Claims struct {
	jwt.RegisteredClaims
	TokenKind Kind   `json:"kind"`
	UserEmail string `json:"userEmail,omitempty"`
	IsAdmin   bool   `json:"isAdmin,omitempty"`
}

func (c *Claims) Access() AccessPayload {
	return AccessPayload{
		UserID:    c.Subject,
		UserEmail: c.UserEmail,
		IsAdmin:   c.IsAdmin,
	}
}

func (c *Claims) Refresh() RefreshPayload {
	return RefreshPayload{UserID: c.Subject}
}

func (c *Claims) Email() EmailPayload {
	return EmailPayload{
		UserEmail: c.UserEmail,
		Purpose:   c.TokenKind,
	}
}

type Codec struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Codec)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

func New(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	c := &Codec{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Sign encodes p with an expiry of now+ttl. Each token gets a random jti,
// so two tokens signed for the same payload in the same second differ.
func (c *Codec) Sign(p Payload, ttl time.Duration) (string, error) {
	const op = "jwt.Sign"

	kind := p.Kind()
	if !kind.valid() {
		return "", fmt.Errorf("%s: unknown token kind %q", op, kind)
	}

	now := c.now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		TokenKind: kind,
	}
	p.apply(&claims)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return token, nil
}

// Verify checks signature, kind and expiry. It returns ErrTokenExpired for a
// correctly signed token of the wanted kind past its expiry and
// ErrTokenInvalid for everything else.
func (c *Codec) Verify(tokenStr string, want Kind) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		// Claims are only checked after the signature, so an expired token
		// still carries a trustworthy kind.
		if errors.Is(err, jwt.ErrTokenExpired) {
			if claims.TokenKind != want {
				return nil, fmt.Errorf("%w: kind %q, want %q", ErrTokenInvalid, claims.TokenKind, want)
			}
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.TokenKind != want {
		return nil, fmt.Errorf("%w: kind %q, want %q", ErrTokenInvalid, claims.TokenKind, want)
	}

	return claims, nil
}

func (c *Codec) VerifyAccess(tokenStr string) (AccessPayload, error) {
	claims, err := c.Verify(tokenStr, KindAccess)
	if err != nil {
		return AccessPayload{}, err
	}

	return claims.Access(), nil
}

func (c *Codec) VerifyRefresh(tokenStr string) (RefreshPayload, error) {
	claims, err := c.Verify(tokenStr, KindRefresh)
	if err != nil {
		return RefreshPayload{}, err
	}

	return claims.Refresh(), nil
}

func (c *Codec) VerifyEmail(tokenStr string, purpose Kind) (EmailPayload, error) {
	claims, err := c.Verify(tokenStr, purpose)
	if err != nil {
		return EmailPayload{}, err
	}

	return claims.Email(), nil
}

// Decode parses the token WITHOUT checking its signature or expiry. The
// result must not be used for any trust decision.
func (c *Codec) Decode(tokenStr string) (*Claims, error) {
	claims := &Claims{}

	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	return claims, nil
}

func (k Kind) valid() bool {
	switch k {
	case KindAccess, KindRefresh, KindEmailVerification, KindPasswordReset:
		return true
	}
	return false
}
