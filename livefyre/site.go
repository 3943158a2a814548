package livefyre

import (
	"context"
	"maps"
	"net/http"
	"net/url"
	"strconv"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/golivefyre/internal/signature"
	"github.com/sidereusnuntius/golivefyre/internal/transport"
)

// Site is a proxy for one commenting surface on the network. Its properties
// are fetched once and cached on the Client, shared by every Site value with
// the same id; only an explicit reload fetches them again.
type Site struct {
	ID     string
	client *Client
}

func (s *Site) Client() *Client {
	return s.client
}

func (s *Site) path(elem ...string) string {
	p := "/site/" + url.PathEscape(s.ID) + "/"
	for _, e := range elem {
		p += e
	}
	return p
}

// Properties returns the site's properties, fetching them when they are not
// cached yet or when reload is set.
func (s *Site) Properties(ctx context.Context, reload bool) (map[string]any, error) {
	unlock := s.client.locks.Lock(s.ID)
	defer unlock()

	if !reload {
		if v, found := s.client.properties.Get(s.ID); found {
			return maps.Clone(v.(map[string]any)), nil
		}
	}

	var props map[string]any
	err := s.client.decode(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   s.path(),
		Query:  s.client.actor(),
	}, &props)
	if err != nil {
		return nil, err
	}
	if props == nil {
		props = map[string]any{}
	}

	s.client.properties.Set(s.ID, props, cache.NoExpiration)
	return maps.Clone(props), nil
}

// Secret returns the site's API secret, reloading the properties once if the
// cached ones lack it.
func (s *Site) Secret(ctx context.Context) (string, error) {
	props, err := s.Properties(ctx, false)
	if err != nil {
		return "", err
	}
	if secret := str(props, "api_secret"); secret != "" {
		return secret, nil
	}

	props, err = s.Properties(ctx, true)
	if err != nil {
		return "", err
	}
	if secret := str(props, "api_secret"); secret != "" {
		return secret, nil
	}
	return "", &InvalidSignatureError{Cause: signature.MissingSecret}
}

// SetPostbackURL points the site's postbacks at target. Calling it again with
// the same target is harmless.
func (s *Site) SetPostbackURL(ctx context.Context, target string) error {
	if _, err := url.ParseRequestURI(target); err != nil {
		return invalid("postback url", err.Error())
	}

	form := s.client.actor()
	form.Set("postback_url", target)
	_, err := s.client.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   s.path(),
		Form:   form,
	})
	if err != nil {
		return err
	}

	// The update already succeeded; a stale cache is not worth failing over.
	if _, err := s.Properties(ctx, true); err != nil {
		log.Error().Err(err).Str("site", s.ID).Msg("failed to reload site properties after postback update")
	}
	return nil
}

func (s *Site) Owners(ctx context.Context) ([]*User, error) {
	return s.client.listUsers(ctx, s.path("owners/"))
}

func (s *Site) AddOwner(ctx context.Context, user UserRef) error {
	return s.addMember(ctx, "owners/", user)
}

func (s *Site) RemoveOwner(ctx context.Context, user UserRef) error {
	return s.removeMember(ctx, "owner/", user)
}

func (s *Site) Admins(ctx context.Context) ([]*User, error) {
	return s.client.listUsers(ctx, s.path("admins/"))
}

func (s *Site) AddAdmin(ctx context.Context, user UserRef) error {
	return s.addMember(ctx, "admins/", user)
}

func (s *Site) RemoveAdmin(ctx context.Context, user UserRef) error {
	return s.removeMember(ctx, "admin/", user)
}

func (s *Site) addMember(ctx context.Context, collection string, user UserRef) error {
	uid, err := ResolveUserID(user)
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   s.path(collection),
		Query:  s.client.actor(),
		Form:   url.Values{"jid": {s.client.JID(uid)}},
	})
	return err
}

func (s *Site) removeMember(ctx context.Context, member string, user UserRef) error {
	uid, err := ResolveUserID(user)
	if err != nil {
		return err
	}
	_, err = s.client.do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   s.path(member, url.PathEscape(s.client.JID(uid))),
		Query:  s.client.actor(),
	})
	return err
}

// Feed returns the site's activity since the activity sinceID, or from the
// start of the retained feed when sinceID is empty. Requests are signed with
// the site secret at the current time.
func (s *Site) Feed(ctx context.Context, sinceID string) ([]*Activity, error) {
	secret, err := s.Secret(ctx)
	if err != nil {
		return nil, err
	}

	created := s.client.now().Unix()
	sig, err := signature.Sign(secret, created)
	if err != nil {
		return nil, err
	}

	path := s.path("sync/")
	if sinceID != "" {
		path += url.PathEscape(sinceID)
	}

	var entries []map[string]any
	err = s.client.decode(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   path,
		Query: url.Values{
			"sig_created": {strconv.FormatInt(created, 10)},
			"sig":         {sig},
		},
	}, &entries)
	if err != nil {
		return nil, err
	}

	activities := make([]*Activity, 0, len(entries))
	for _, e := range entries {
		activities = append(activities, NewActivity(s.client, s.ID, e))
	}
	return activities, nil
}

// Comments is Feed restricted to new comments. Nothing is cached; every call
// fetches the feed again.
func (s *Site) Comments(ctx context.Context, sinceID string) ([]*Comment, error) {
	feed, err := s.Feed(ctx, sinceID)
	if err != nil {
		return nil, err
	}

	comments := []*Comment{}
	for _, a := range feed {
		if !a.IsComment() {
			continue
		}
		c, err := a.Comment()
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, nil
}

// VerifySignature checks the sig and sig_created values sent with a postback
// against the site's API secret.
func (s *Site) VerifySignature(ctx context.Context, sig, createdAt string) error {
	switch {
	case sig == "":
		return &InvalidSignatureError{Cause: signature.MissingSignature}
	case createdAt == "":
		return &InvalidSignatureError{Cause: signature.MissingTimestamp}
	}

	secret, err := s.Secret(ctx)
	if err != nil {
		return err
	}
	return s.client.verifier.Verify(sig, createdAt, secret)
}

// Conversation returns a proxy for a collection on this site.
func (s *Site) Conversation(id, articleID string) *Conversation {
	return &Conversation{
		ID:        id,
		ArticleID: articleID,
		SiteID:    s.ID,
		client:    s.client,
	}
}

func (s *Site) CreateConversation(ctx context.Context, articleID, title, link string, tags Tags) (*Conversation, error) {
	return createConversation(ctx, s.client, s.ID, articleID, title, link, tags)
}
