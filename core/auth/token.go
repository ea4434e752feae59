package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims binds a bearer token to a participant. The subject is the
// participant ID; Role is informational, the registry stays the source of
// truth for a participant's role.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Issuer mints HS256 tokens.
type Issuer struct {
	Secret []byte
	Name   string
	TTL    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, name string, ttl time.Duration) *Issuer {
	return &Issuer{Secret: secret, Name: name, TTL: ttl, now: time.Now}
}

// Issue returns a signed token for participantID.
func (i *Issuer) Issue(participantID, role string) (string, error) {
	if len(i.Secret) == 0 {
		return "", errors.New("no signing secret configured")
	}
	if participantID == "" {
		return "", errors.New("participant id is required")
	}
	now := i.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  participantID,
			Issuer:   i.Name,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if i.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.TTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.Secret)
}

// Verifier checks tokens minted by an Issuer.
type Verifier struct {
	KeyProvider KeyProvider
	Issuer      string
}

// Verify parses tokenString and returns its claims when the signature,
// issuer and expiry check out.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return v.KeyProvider.GetKey(kid)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
