// Package signature implements the sig_created HMAC scheme used to
// authenticate site feed requests and inbound postbacks.
package signature

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"time"
)

// DefaultWindow is how far sig_created may drift from the local clock.
const DefaultWindow = 5 * time.Minute

type Cause string

const (
	MissingSignature Cause = "missing signature"
	MissingTimestamp Cause = "missing timestamp"
	MissingSecret    Cause = "missing secret"
	Mismatch         Cause = "signature mismatch"
	MalformedSecret  Cause = "malformed secret"
	BadTimestamp     Cause = "malformed timestamp"
	Stale            Cause = "timestamp outside window"
)

type Error struct {
	Cause Cause
}

func (e *Error) Error() string {
	return "invalid signature: " + string(e.Cause)
}

// Is matches any *Error, or one with the same cause when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Cause == "" || t.Cause == e.Cause
}

// ErrInvalid matches every verification failure through errors.Is.
var ErrInvalid = &Error{}

// Payload is the exact string the HMAC is computed over.
func Payload(createdAt string) string {
	return "sig_created=" + createdAt
}

// Sign returns base64(HMAC-SHA1(base64decode(secret), "sig_created=<createdAt>")).
func Sign(secret string, createdAt int64) (string, error) {
	if secret == "" {
		return "", &Error{Cause: MissingSecret}
	}
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return compute(key, strconv.FormatInt(createdAt, 10)), nil
}

func compute(key []byte, createdAt string) string {
	mac := hmac.New(sha1.New, key)
	mac.Write([]byte(Payload(createdAt)))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// The remote service hands out padded base64 secrets, but unpadded ones show
// up in hand-written configuration.
func decodeSecret(secret string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(secret)
	if err == nil {
		return key, nil
	}
	key, err = base64.RawStdEncoding.DecodeString(secret)
	if err != nil {
		return nil, &Error{Cause: MalformedSecret}
	}
	return key, nil
}

type Verifier struct {
	// Window bounds |now - createdAt|. Zero disables the freshness check.
	Window time.Duration
	Now    func() time.Time
}

func NewVerifier(window time.Duration) Verifier {
	return Verifier{
		Window: window,
		Now:    time.Now,
	}
}

// Verify returns nil when sig authenticates createdAt under secret and, if a
// window is set, createdAt is close enough to the current time.
func (v Verifier) Verify(sig, createdAt, secret string) error {
	switch {
	case sig == "":
		return &Error{Cause: MissingSignature}
	case createdAt == "":
		return &Error{Cause: MissingTimestamp}
	case secret == "":
		return &Error{Cause: MissingSecret}
	}

	created, err := strconv.ParseInt(createdAt, 10, 64)
	if err != nil {
		return &Error{Cause: BadTimestamp}
	}

	key, err := decodeSecret(secret)
	if err != nil {
		return err
	}

	expected := compute(key, createdAt)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return &Error{Cause: Mismatch}
	}

	if v.Window > 0 {
		now := time.Now
		if v.Now != nil {
			now = v.Now
		}
		drift := now().Sub(time.Unix(created, 0))
		if drift < 0 {
			drift = -drift
		}
		if drift > v.Window {
			return &Error{Cause: Stale}
		}
	}
	return nil
}
