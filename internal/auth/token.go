package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trivora/internal/domain"
)

// DefaultIssuer is used when no issuer is configured.
const DefaultIssuer = "trivora"

// Claims are the identity claims carried by a bearer token.
type Claims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks HS256 bearer tokens signed with a shared secret.
type Verifier struct {
	secret []byte
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Verifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses the token and returns the caller it identifies.
func (v *Verifier) Verify(tokenString string) (domain.Caller, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithIssuer(v.issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return domain.Caller{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return domain.Caller{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	return domain.Caller{UserID: claims.Subject, Email: claims.Email, Name: claims.Name}, nil
}

// VerifyRequest reads the Authorization header of r.
func (v *Verifier) VerifyRequest(r *http.Request) (domain.Caller, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return domain.Caller{}, fmt.Errorf("%w: authorization header is required", domain.ErrUnauthorized)
	}
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return domain.Caller{}, fmt.Errorf("%w: expected bearer token", domain.ErrUnauthorized)
	}
	return v.Verify(tokenString)
}

// Issuer mints tokens for development and the agent.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret, issuer string, ttl time.Duration) *Issuer {
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &Issuer{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
}

// Issue signs a token for caller. A zero ttl produces a token without expiry.
func (i *Issuer) Issue(caller domain.Caller) (string, error) {
	now := i.now()
	claims := Claims{
		Email: caller.Email,
		Name:  caller.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  caller.UserID,
			Issuer:   i.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.ttl))
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
