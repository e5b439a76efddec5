package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenValidator pins the issuer, audience, and signing algorithm an access
// token must carry. Pinning the algorithm closes the door on tokens that
// declare a weaker scheme than the one we sign with.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks the token's claims against the pinned expectations at the
// given instant.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	if tok == nil {
		return errors.New("auth: no token to validate")
	}
	switch {
	case algorithm == "":
		return errors.New("auth: token does not declare a signing algorithm")
	case v.Algorithm != "" && algorithm != v.Algorithm:
		return fmt.Errorf("auth: token signed with %s, want %s", algorithm, v.Algorithm)
	}

	opts := make([]jwt.ValidateOption, 0, 4)
	opts = append(opts, jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })))
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	if v.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	return jwt.Validate(tok, opts...)
}
