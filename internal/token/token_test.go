package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

var fixed = time.Unix(1700000000, 0)

func newCodec(t *testing.T, secret string, opts ...Option) *Codec {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	c, err := New(secret, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewRejectsEmptySecret(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
}

func TestRoundTrip(t *testing.T) {
	c := newCodec(t, "x")
	cases := []struct {
		name   string
		claims Claims
	}{
		{"single string", Claims{"foo": "bar"}},
		{"user session", Claims{"domain": "example.fyre.co", "user_id": "1234", "expires": float64(fixed.Unix() + 60), "display_name": "Sarah"}},
		{"integer expiry", Claims{"user_id": "1234", "expires": fixed.Unix() + 60}},
		{"numeric user", Claims{"user_id": int64(9007199254740993)}},
		{"empty", Claims{}},
	}

	for _, c2 := range cases {
		t.Run(c2.name, func(t *testing.T) {
			tok, err := c.Sign(c2.claims)
			if err != nil {
				t.Fatal(err)
			}
			got, err := c.Validate(tok)
			if err != nil {
				t.Fatal("unexpected error:", err)
			}
			if diff := cmp.Diff(numbers(c2.claims), got); diff != "" {
				t.Error(diff)
			}
		})
	}
}

// numbers rewrites numeric claims the way Validate returns them.
func numbers(claims Claims) Claims {
	out := Claims{}
	for k, v := range claims {
		switch n := v.(type) {
		case int64:
			out[k] = json.Number(strconv.FormatInt(n, 10))
		case float64:
			out[k] = json.Number(strconv.FormatFloat(n, 'f', -1, 64))
		default:
			out[k] = v
		}
	}
	return out
}

func TestValidateKeepsIntegerPrecision(t *testing.T) {
	c := newCodec(t, "x")
	const id = int64(9007199254740993)

	tok, err := c.Sign(Claims{"user_id": id})
	if err != nil {
		t.Fatal(err)
	}
	got, err := c.Validate(tok)
	if err != nil {
		t.Fatal(err)
	}
	n, ok := got["user_id"].(json.Number)
	if !ok {
		t.Fatalf("expected json.Number, got %T", got["user_id"])
	}
	if v, err := n.Int64(); err != nil || v != id {
		t.Errorf("expected %d, got %s", id, n)
	}
}

func TestSignIsDeterministic(t *testing.T) {
	c := newCodec(t, "x")
	a, _ := c.Sign(Claims{"b": "2", "a": "1"})
	b, _ := c.Sign(Claims{"a": "1", "b": "2"})
	if a != b {
		t.Errorf("expected identical tokens, got %q and %q", a, b)
	}
}

func TestValidateFailures(t *testing.T) {
	c := newCodec(t, "x")
	other := newCodec(t, "y")

	good, _ := c.Sign(Claims{"foo": "bar"})
	foreign, _ := other.Sign(Claims{"foo": "bar"})
	stale, _ := c.Sign(Claims{"expires": float64(fixed.Unix() - 1)})
	badExpiry, _ := c.Sign(Claims{"expires": "tomorrow"})
	fractional, _ := c.Sign(Claims{"expires": float64(fixed.Unix()-1) + 0.5})

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"foo":"bar"}`))
	unsigned := header + "." + payload + "."

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"foo":"baz"}`)) + "." + parts[2]

	cases := []struct {
		name  string
		token string
		cause Cause
	}{
		{"empty", "", Empty},
		{"garbage", "not-a-token", Malformed},
		{"wrong secret", foreign, BadSignature},
		{"tampered payload", tampered, BadSignature},
		{"expired", stale, Expired},
		{"expired fractional", fractional, Expired},
		{"non numeric expiry", badExpiry, Malformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Validate(tc.token)
			if !errors.Is(err, &Error{Cause: tc.cause}) {
				t.Errorf("expected cause %q, got %v", tc.cause, err)
			}
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("expected ErrInvalid to match %v", err)
			}
		})
	}

	t.Run("alg none", func(t *testing.T) {
		if _, err := c.Validate(unsigned); !errors.Is(err, ErrInvalid) {
			t.Errorf("unsigned token accepted: %v", err)
		}
	})
}

func TestExpiryCanBeAdvisory(t *testing.T) {
	c := newCodec(t, "x", WithExpiry(false))
	stale, _ := c.Sign(Claims{"expires": float64(fixed.Unix() - 3600)})
	if _, err := c.Validate(stale); err != nil {
		t.Errorf("unexpected error: %s", err)
	}
}
