// Package auth issues and checks the admin session tokens and the admin
// password hash.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessCookie  = "cms_access"
	RefreshCookie = "cms_refresh"

	RoleAdmin = "admin"

	KindAccess  = "access"
	KindRefresh = "refresh"

	DefaultIssuer = "casehub-backend"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongKind    = errors.New("token kind not accepted here")
)

type Manager struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		Secret:     []byte(secret),
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
		Issuer:     DefaultIssuer,
	}
}

// Claims carries the admin role and whether the token is an access or a
// refresh token. A refresh token never authorises a CMS request.
type Claims struct {
	Role string `json:"role"`
	Kind string `json:"kind"`
	jwt.RegisteredClaims
}

// Pair is what a login or refresh hands out.
type Pair struct {
	Access  string
	Refresh string
}

func (m *Manager) sign(subject, role, kind string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

func (m *Manager) NewAccessToken(subject, role string) (string, error) {
	return m.sign(subject, role, KindAccess, m.AccessTTL)
}

func (m *Manager) NewRefreshToken(subject, role string) (string, error) {
	return m.sign(subject, role, KindRefresh, m.RefreshTTL)
}

// IssuePair signs a fresh admin access and refresh token for subject.
func (m *Manager) IssuePair(subject string) (Pair, error) {
	access, err := m.NewAccessToken(subject, RoleAdmin)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := m.NewRefreshToken(subject, RoleAdmin)
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (m *Manager) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return m.Secret, nil
	}, jwt.WithIssuer(m.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authorize parses tokenStr and requires an admin token of the given kind.
func (m *Manager) Authorize(tokenStr, kind string) (*Claims, error) {
	claims, err := m.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleAdmin {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return claims, nil
}
