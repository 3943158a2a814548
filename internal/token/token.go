// Package token signs and validates the HS256 tokens exchanged with the remote service.
package token

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresClaim is the claim holding the epoch second after which a token is stale.
const ExpiresClaim = "expires"

type Cause string

const (
	Malformed    Cause = "malformed token"
	BadSignature Cause = "signature mismatch"
	Expired      Cause = "token expired"
	WrongDomain  Cause = "domain mismatch"
	Empty        Cause = "missing token"
)

// Error is returned for every token that fails validation.
type Error struct {
	Cause Cause
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid token: %s: %s", e.Cause, e.Err)
	}
	return "invalid token: " + string(e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error, or one with the same cause when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Cause == "" || t.Cause == e.Cause
}

// ErrInvalid matches every token validation failure through errors.Is.
var ErrInvalid = &Error{}

var ErrEmptySecret = errors.New("empty signing secret")

// Claims is the payload of a token. Validate returns numbers as json.Number,
// so integers keep their full precision.
type Claims map[string]any

type Codec struct {
	secret        []byte
	now           func() time.Time
	enforceExpiry bool
}

type Option func(*Codec)

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// WithExpiry toggles rejection of tokens whose expires claim is in the past.
// Enabled by default.
func WithExpiry(enforce bool) Option {
	return func(c *Codec) {
		c.enforceExpiry = enforce
	}
}

func New(secret string, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}

	c := &Codec{
		secret:        []byte(secret),
		now:           time.Now,
		enforceExpiry: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign serializes claims with sorted keys and signs them, so equal claims
// always produce the same token.
func (c *Codec) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims(claims))
	return t.SignedString(c.secret)
}

func (c *Codec) Validate(raw string) (Claims, error) {
	if raw == "" {
		return nil, &Error{Cause: Empty}
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
		jwt.WithJSONNumber(),
	)

	mc := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(raw, mc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, &Error{Cause: BadSignature, Err: err}
		}
		return nil, &Error{Cause: Malformed, Err: err}
	}

	claims := Claims(mc)
	if c.enforceExpiry {
		if err := c.checkExpiry(claims); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

func (c *Codec) checkExpiry(claims Claims) error {
	v, ok := claims[ExpiresClaim]
	if !ok {
		return nil
	}

	exp, err := epoch(v)
	if err != nil {
		return &Error{Cause: Malformed, Err: err}
	}
	if c.now().Unix() > exp {
		return &Error{Cause: Expired}
	}
	return nil
}

func epoch(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, errors.New("expires is not a finite number")
		}
		return int64(n), nil
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return epoch(f)
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("expires has type %T", v)
	}
}
