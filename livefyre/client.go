// Package livefyre is a client for the Livefyre network REST API. A Client
// holds the network credentials; Domain, Site, User, Conversation, Comment
// and Activity values are thin proxies over remote resources that borrow the
// Client that created them.
package livefyre

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"codeberg.org/gruf/go-mutexes"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/golivefyre/internal/signature"
	"github.com/sidereusnuntius/golivefyre/internal/token"
	"github.com/sidereusnuntius/golivefyre/internal/transport"
)

// Claims is the payload of a signed token.
type Claims = token.Claims

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleMember  Role = "member"
	RoleNone    Role = "none"
	RoleOutcast Role = "outcast"
	RoleOwner   Role = "owner"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleMember, RoleNone, RoleOutcast, RoleOwner:
		return true
	}
	return false
}

type Scope string

const (
	ScopeDomain       Scope = "domain"
	ScopeSite         Scope = "site"
	ScopeConversation Scope = "conv"
)

func (s Scope) Valid() bool {
	switch s {
	case ScopeDomain, ScopeSite, ScopeConversation:
		return true
	}
	return false
}

type Options struct {
	// Host is the network host, e.g. "example.fyre.co". Required.
	Host string
	// Key is the network key every system token is signed with. Required.
	Key string
	// SystemToken is the long-lived token authorizing administrative calls. Required.
	SystemToken string
	// SiteKey signs conversation metadata. Only needed to create or update conversations.
	SiteKey string
	// SiteID is the site conversations are created on when none is given.
	SiteID string
	// Scheme used to reach the network. Defaults to http.
	Scheme     string
	HTTPClient *http.Client
	// SignatureWindow bounds the age of sig_created on postbacks. Zero means
	// signature.DefaultWindow; a negative value disables the check.
	SignatureWindow time.Duration
	// AdvisoryExpiry stops Validate from rejecting tokens past their expires claim.
	AdvisoryExpiry bool
	Now            func() time.Time
}

type Client struct {
	host        string
	systemToken string
	siteID      string
	identifier  string

	codec     *token.Codec
	siteCodec *token.Codec
	verifier  signature.Verifier
	doer      transport.Doer
	now       func() time.Time

	properties *cache.Cache
	locks      *mutexes.MutexMap
}

// New validates opts and builds a Client that talks HTTP to the network's
// sub-hosts.
func New(opts Options) (*Client, error) {
	c, err := newClient(opts)
	if err != nil {
		return nil, err
	}

	doer, err := transport.New(opts.HTTPClient, transport.BaseURLs(opts.Scheme, opts.Host))
	if err != nil {
		return nil, err
	}
	c.doer = doer
	return c, nil
}

func newClient(opts Options) (*Client, error) {
	switch {
	case opts.Host == "":
		return nil, &ConfigurationError{Field: "host"}
	case opts.Key == "":
		return nil, &ConfigurationError{Field: "key"}
	case opts.SystemToken == "":
		return nil, &ConfigurationError{Field: "system_token"}
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	codecOpts := []token.Option{token.WithClock(now), token.WithExpiry(!opts.AdvisoryExpiry)}
	codec, err := token.New(opts.Key, codecOpts...)
	if err != nil {
		return nil, &ConfigurationError{Field: "key"}
	}

	var siteCodec *token.Codec
	if opts.SiteKey != "" {
		siteCodec, err = token.New(opts.SiteKey, codecOpts...)
		if err != nil {
			return nil, &ConfigurationError{Field: "site_key"}
		}
	}

	window := opts.SignatureWindow
	switch {
	case window == 0:
		window = signature.DefaultWindow
	case window < 0:
		window = 0
	}
	verifier := signature.NewVerifier(window)
	verifier.Now = now

	return &Client{
		host:        opts.Host,
		systemToken: opts.SystemToken,
		siteID:      opts.SiteID,
		identifier:  fmt.Sprintf("GoLib-%d-%s", os.Getpid(), uuid.NewString()),
		codec:       codec,
		siteCodec:   siteCodec,
		verifier:    verifier,
		now:         now,
		properties:  cache.New(cache.NoExpiration, 0),
		locks:       &mutexes.MutexMap{},
	}, nil
}

func (c *Client) Host() string {
	return c.host
}

func (c *Client) SiteID() string {
	return c.siteID
}

// Identifier distinguishes this client instance to the bootstrap service.
func (c *Client) Identifier() string {
	return c.identifier
}

// Sign signs claims with the network key.
func (c *Client) Sign(claims Claims) (string, error) {
	return c.codec.Sign(claims)
}

// Validate checks a token signed with the network key. A domain claim, when
// present, must name this client's host.
func (c *Client) Validate(raw string) (Claims, error) {
	claims, err := c.codec.Validate(raw)
	if err != nil {
		return nil, err
	}
	if d, ok := claims["domain"]; ok && d != c.host {
		return nil, &InvalidTokenError{Cause: token.WrongDomain}
	}
	return claims, nil
}

// ValidateSession is Validate for tokens that must carry a domain claim, such
// as the lftoken the service sends with ping-to-pull requests.
func (c *Client) ValidateSession(raw string) (Claims, error) {
	claims, err := c.Validate(raw)
	if err != nil {
		return nil, err
	}
	if _, ok := claims["domain"]; !ok {
		return nil, &InvalidTokenError{Cause: token.WrongDomain}
	}
	return claims, nil
}

// JID composes the network-wide identifier for a user id.
func (c *Client) JID(id string) string {
	return id + "@" + c.host
}

func (c *Client) User(id, displayName string) *User {
	return &User{
		ID:          id,
		DisplayName: displayName,
		client:      c,
	}
}

func (c *Client) Domain() *Domain {
	return &Domain{client: c}
}

// Site returns a proxy for a site. Properties already known, such as those
// returned by Domain.Sites, seed the cache.
func (c *Client) Site(id string, properties map[string]any) *Site {
	s := &Site{ID: id, client: c}
	if len(properties) > 0 {
		c.properties.Set(id, maps.Clone(properties), cache.NoExpiration)
	}
	return s
}

// Conversation returns a proxy for a collection on the client's default site.
func (c *Client) Conversation(id, articleID string) *Conversation {
	return &Conversation{
		ID:        id,
		ArticleID: articleID,
		SiteID:    c.siteID,
		client:    c,
	}
}

// SetUserRole sets a user's affiliation. Scope ids are required for site and
// conversation scopes and ignored for the domain scope.
func (c *Client) SetUserRole(ctx context.Context, user UserRef, role Role, scope Scope, scopeID string) error {
	if !scope.Valid() {
		return invalid("scope", fmt.Sprintf("%q is not one of domain, site, conv", scope))
	}
	if !role.Valid() {
		return invalid("role", fmt.Sprintf("%q is not one of admin, member, none, outcast, owner", role))
	}
	uid, err := ResolveUserID(user)
	if err != nil {
		return err
	}

	form := url.Values{
		"affiliation": {string(role)},
		"lftoken":     {c.systemToken},
	}
	switch scope {
	case ScopeDomain:
		form.Set("domain_wide", "1")
	case ScopeSite:
		if scopeID == "" {
			return invalid("scope id", "required for site scope")
		}
		form.Set("site_id", scopeID)
	case ScopeConversation:
		if scopeID == "" {
			return invalid("scope id", "required for conv scope")
		}
		form.Set("conv_id", scopeID)
	}

	_, err = c.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/api/v1.1/private/management/user/" + url.PathEscape(c.JID(uid)) + "/role/",
		Form:   form,
	})
	return err
}

func (c *Client) actor() url.Values {
	return url.Values{"actor_token": {c.systemToken}}
}

// do issues req and turns every non-2xx response into a RemoteAPIError.
func (c *Client) do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	res, err := c.doer.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: %w", req.Method, req.Service, req.Path, err)
	}
	if !res.Success() {
		return nil, newRemoteAPIError(res.StatusCode, res.Body)
	}
	return res, nil
}

// decode is do followed by unmarshalling the body into v, keeping numbers as
// json.Number. A success response that cannot be decoded is reported as a
// RemoteAPIError.
func (c *Client) decode(ctx context.Context, req transport.Request, v any) error {
	res, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(res.Body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		log.Error().Err(err).Str("path", req.Path).Msg("response body unmarshaling error")
		return &RemoteAPIError{StatusCode: res.StatusCode, Body: res.Body, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// splitJID returns the local part of a "local@host" identifier.
func splitJID(jid string) string {
	local, _, _ := strings.Cut(jid, "@")
	return local
}
