package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier checks HS256 bearer tokens minted by the identity provider.
// The subject is the user id; name, email and picture claims are optional.
type TokenVerifier struct {
	secret []byte
	issuer string
}

// NewTokenVerifier builds a verifier. An empty issuer accepts any issuer.
func NewTokenVerifier(secret, issuer string) (*TokenVerifier, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenVerifier{secret: []byte(secret), issuer: issuer}, nil
}

type claims struct {
	jwt.RegisteredClaims
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// Verify parses and validates tokenStr and returns the caller identity.
func (v *TokenVerifier) Verify(tokenStr string) (AuthContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return AuthContext{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return AuthContext{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return AuthContext{}, fmt.Errorf("%w: bad claims", ErrInvalidToken)
	}
	if c.Subject == "" {
		return AuthContext{}, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}

	return AuthContext{
		UserID:  c.Subject,
		Name:    c.Name,
		Email:   c.Email,
		Picture: c.Picture,
	}, nil
}

// Generate signs a token for ac valid for d. Used by tests and the dev token
// command; production tokens come from the identity provider.
func (v *TokenVerifier) Generate(ac AuthContext, d time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ac.UserID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		},
		Name:    ac.Name,
		Email:   ac.Email,
		Picture: ac.Picture,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}
