package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"quiz-platform/internal/domain"
)

// Role distinguishes admins from quiz takers.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

const issuer = "quiz-platform"

// Claims is the JWT payload; the subject is the admin or user ID.
type Claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	ID   string
	Role Role
}

// Issuer signs and verifies HS256 tokens.
type Issuer struct {
	hmac     []byte
	adminTTL time.Duration
	userTTL  time.Duration
	now      func() time.Time
}

func NewIssuer(secret string, adminTTL, userTTL time.Duration) *Issuer {
	return &Issuer{hmac: []byte(secret), adminTTL: adminTTL, userTTL: userTTL, now: time.Now}
}

func (i *Issuer) IssueAdminToken(adminID string) (string, error) {
	return i.issue(adminID, RoleAdmin, i.adminTTL)
}

func (i *Issuer) IssueUserToken(userID string) (string, error) {
	return i.issue(userID, RoleUser, i.userTTL)
}

func (i *Issuer) issue(subject string, role Role, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.hmac)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies tokenStr and returns its principal. Any failure classifies as domain.ErrUnauthorized.
func (i *Issuer) Parse(tokenStr string) (Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return i.hmac, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", domain.ErrUnauthorized, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Principal{}, fmt.Errorf("%w: malformed token", domain.ErrUnauthorized)
	}
	if claims.Role != RoleAdmin && claims.Role != RoleUser {
		return Principal{}, fmt.Errorf("%w: unknown role %q", domain.ErrUnauthorized, claims.Role)
	}
	return Principal{ID: claims.Subject, Role: claims.Role}, nil
}
