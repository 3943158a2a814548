package livefyre

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sidereusnuntius/golivefyre/internal/transport"
)

// DefaultTokenMaxAge is how long a user session token is valid for.
const DefaultTokenMaxAge = 24 * time.Hour

// User is a proxy for a user profile on the network. It has no local state
// beyond what was known when it was built.
type User struct {
	ID          string
	DisplayName string
	Email       string
	URL         string
	client      *Client
}

func (u *User) Client() *Client {
	return u.client
}

// WithClient returns a copy of u bound to c; u is left untouched.
func (u *User) WithClient(c *Client) *User {
	cp := *u
	cp.client = c
	return &cp
}

func (u *User) JID() string {
	return u.client.JID(u.ID)
}

// Token returns a session token for the user signed with the network key.
// A non-positive maxAge means DefaultTokenMaxAge.
func (u *User) Token(maxAge time.Duration) (string, error) {
	if maxAge <= 0 {
		maxAge = DefaultTokenMaxAge
	}

	claims := Claims{
		"domain":  u.client.host,
		"user_id": u.ID,
		"expires": u.client.now().Add(maxAge).Unix(),
	}
	if u.DisplayName != "" {
		claims["display_name"] = u.DisplayName
	}
	return u.client.Sign(claims)
}

// Push publishes profile data for the user as described by the network's
// profile schema.
func (u *User) Push(ctx context.Context, profile map[string]any) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return invalid("profile", err.Error())
	}

	query := u.client.actor()
	query.Set("id", u.ID)
	_, err = u.client.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/profiles/",
		Query:  query,
		Form:   url.Values{"data": {string(data)}},
	})
	return err
}

// Refresh asks the network to pull the user's profile again.
func (u *User) Refresh(ctx context.Context) error {
	_, err := u.client.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/v3_0/user/" + url.PathEscape(u.ID) + "/refresh",
		Form:   url.Values{"lftoken": {u.client.systemToken}},
	})
	return err
}

// UserRef is anything that names a user: a UserID, a NumericUserID or a *User.
type UserRef interface {
	userRef()
}

// UserID is a raw user id, or a "id@host" jid of which only the id is kept.
type UserID string

// NumericUserID is an integer user id.
type NumericUserID int64

func (UserID) userRef()        {}
func (NumericUserID) userRef() {}
func (*User) userRef()         {}

// ResolveUserID extracts the bare user id from ref.
func ResolveUserID(ref UserRef) (string, error) {
	switch r := ref.(type) {
	case UserID:
		id := splitJID(string(r))
		if id == "" {
			return "", invalid("user", "empty user id")
		}
		return id, nil
	case NumericUserID:
		return strconv.FormatInt(int64(r), 10), nil
	case *User:
		if r == nil || r.ID == "" {
			return "", invalid("user", "user without id")
		}
		return r.ID, nil
	}
	return "", invalid("user", "no user given")
}

// ResolveUser returns a User bound to c. Users passed in are copied, never
// rebound in place.
func ResolveUser(ref UserRef, c *Client) (*User, error) {
	if u, ok := ref.(*User); ok && u != nil {
		if u.ID == "" {
			return nil, invalid("user", "user without id")
		}
		return u.WithClient(c), nil
	}

	id, err := ResolveUserID(ref)
	if err != nil {
		return nil, err
	}
	return c.User(id, ""), nil
}
