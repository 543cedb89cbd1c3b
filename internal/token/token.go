// internal/token/token.go
// Package token issues and verifies the bearer tokens of the admin API.
// Tokens are HS256 signed JWTs; an access token authorizes API calls and a
// refresh token can be exchanged for a new access token.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/awadmin/awadmin-api-go/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token types carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrExpired   = errors.New("token expired")
	ErrInvalid   = errors.New("token invalid")
	ErrWrongType = errors.New("wrong token type")
)

// Claims are the JWT claims of both token types.
type Claims struct {
	jwt.RegisteredClaims
	Type  string `json:"typ"`   // access or refresh
	Staff bool   `json:"staff"` // user may read admin-only resources
}

// Pair is the response of a credential exchange.
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Issuer signs and verifies tokens with a shared secret.
type Issuer struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewIssuer creates an Issuer. secret must not be empty.
func NewIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("token secret is required")
	}
	return &Issuer{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// WithClock returns a copy of i that reads the time from now.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// IssuePair returns a new access and refresh token for user.
func (i *Issuer) IssuePair(user model.User) (Pair, error) {
	access, err := i.sign(user.Username, user.IsStaff, TypeAccess, i.accessTTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := i.sign(user.Username, user.IsStaff, TypeRefresh, i.refreshTTL)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

// IssueAccess returns a new access token for user.
func (i *Issuer) IssueAccess(user model.User) (string, error) {
	return i.sign(user.Username, user.IsStaff, TypeAccess, i.accessTTL)
}

// Refresh verifies a refresh token and returns a new access token for the
// same subject.
func (i *Issuer) Refresh(refresh string) (string, error) {
	claims, err := i.Verify(refresh, TypeRefresh)
	if err != nil {
		return "", err
	}
	return i.sign(claims.Subject, claims.Staff, TypeAccess, i.accessTTL)
}

func (i *Issuer) sign(subject string, staff bool, typ string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Type:  typ,
		Staff: staff,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Verify parses tokenString, checks its signature, issuer, expiry and type,
// and returns its claims.
func (i *Issuer) Verify(tokenString, typ string) (*Claims, error) {
	claims := &Claims{}
	keyFunc := func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}

	_, err := jwt.ParseWithClaims(tokenString, claims, keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", ErrInvalid)
	}
	if claims.Type != typ {
		return nil, fmt.Errorf("%w: got %q, want %q", ErrWrongType, claims.Type, typ)
	}
	return claims, nil
}
