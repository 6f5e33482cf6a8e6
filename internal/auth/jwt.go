// Package auth verifies the bearer tokens issued by the platform's auth service.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tobby-pro/New-Rental-Stack/internal/domain"

	"github.com/golang-jwt/jwt"
)

var (
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrInvalidSubject  = errors.New("invalid subject")
)

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
	Role   domain.Role
}

func (p Principal) IsLandlord() bool { return p.Role == domain.RoleLandlord }
func (p Principal) IsTenant() bool   { return p.Role == domain.RoleTenant }

// Claims carries the user id in sub and the platform role.
type Claims struct {
	jwt.StandardClaims
	Role string `json:"role"`
}

type Config struct {
	// HS256 when Secret is set, otherwise RS256 with PublicKey.
	Secret    string
	PublicKey *rsa.PublicKey
	Issuer    string
	Audience  string
	ClockSkew time.Duration
}

type Verifier struct {
	cfg    Config
	method jwt.SigningMethod
}

func NewVerifier(cfg Config) (*Verifier, error) {
	v := &Verifier{cfg: cfg}
	switch {
	case cfg.Secret != "":
		v.method = jwt.SigningMethodHS256
	case cfg.PublicKey != nil:
		v.method = jwt.SigningMethodRS256
	default:
		return nil, errors.New("auth: either a secret or a public key is required")
	}
	return v, nil
}

func (v *Verifier) key(t *jwt.Token) (any, error) {
	if t.Method.Alg() != v.method.Alg() {
		return nil, ErrInvalidToken
	}
	if v.cfg.Secret != "" {
		return []byte(v.cfg.Secret), nil
	}
	return v.cfg.PublicKey, nil
}

// Verify parses the token and returns the caller it names.
func (v *Verifier) Verify(tokenStr string) (Principal, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Principal{}, ErrInvalidToken
	}

	claims := &Claims{}
	parser := &jwt.Parser{SkipClaimsValidation: true}
	token, err := parser.ParseWithClaims(tokenStr, claims, v.key)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	if v.cfg.Issuer != "" && !claims.VerifyIssuer(v.cfg.Issuer, true) {
		return Principal{}, ErrInvalidIssuer
	}
	if v.cfg.Audience != "" && !claims.VerifyAudience(v.cfg.Audience, true) {
		return Principal{}, ErrInvalidAudience
	}

	now := time.Now()
	if claims.ExpiresAt != 0 && now.After(time.Unix(claims.ExpiresAt, 0).Add(v.cfg.ClockSkew)) {
		return Principal{}, ErrTokenExpired
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.cfg.ClockSkew)) {
		return Principal{}, ErrInvalidToken
	}

	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return Principal{}, ErrInvalidSubject
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Principal{UserID: uid, Role: role}, nil
}

// Sign issues an HS256 token. Used by tests and local tooling; production
// tokens come from the auth service.
func Sign(secret string, p Principal, issuer, audience string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		StandardClaims: jwt.StandardClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			Issuer:    issuer,
			Audience:  audience,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
		Role: string(p.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func LoadRSAPublicKeyFromPEM(path string) (*rsa.PublicKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return jwt.ParseRSAPublicKeyFromPEM(b)
}
