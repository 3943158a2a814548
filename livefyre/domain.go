package livefyre

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sidereusnuntius/golivefyre/internal/transport"
)

// Domain is the network itself: its sites, users, owners and admins.
type Domain struct {
	client *Client
}

func (d *Domain) Client() *Client {
	return d.client
}

func (d *Domain) Sites(ctx context.Context) ([]*Site, error) {
	var entries []map[string]any
	err := d.client.decode(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/sites/",
		Query:  d.client.actor(),
	}, &entries)
	if err != nil {
		return nil, err
	}

	sites := make([]*Site, 0, len(entries))
	for _, e := range entries {
		sites = append(sites, d.client.Site(str(e, "id"), e))
	}
	return sites, nil
}

func (d *Domain) Users(ctx context.Context) ([]*User, error) {
	var entries []map[string]any
	err := d.client.decode(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/profiles/",
		Query:  d.client.actor(),
	}, &entries)
	if err != nil {
		return nil, err
	}

	users := make([]*User, 0, len(entries))
	for _, e := range entries {
		users = append(users, d.client.User(str(e, "id"), str(e, "display_name")))
	}
	return users, nil
}

// AddUser pushes a profile to the network. The profile must carry an id.
func (d *Domain) AddUser(ctx context.Context, profile map[string]any) error {
	id := str(profile, "id")
	if id == "" {
		return invalid("profile", "missing id")
	}

	query := d.client.actor()
	query.Set("id", id)
	_, err := d.client.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/profiles/",
		Query:  query,
		JSON:   profile,
	})
	return err
}

func (d *Domain) CreateSite(ctx context.Context, siteURL string) (*Site, error) {
	if _, err := url.ParseRequestURI(siteURL); err != nil {
		return nil, invalid("site url", err.Error())
	}

	query := d.client.actor()
	query.Set("url", siteURL)
	var props map[string]any
	err := d.client.decode(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/sites/",
		Query:  query,
	}, &props)
	if err != nil {
		return nil, err
	}

	id := str(props, "id")
	if id == "" {
		return nil, &RemoteAPIError{StatusCode: http.StatusOK, Message: "site created without id"}
	}
	return d.client.Site(id, props), nil
}

func (d *Domain) Owners(ctx context.Context) ([]*User, error) {
	return d.client.listUsers(ctx, "/owners/")
}

func (d *Domain) AddOwner(ctx context.Context, user UserRef) error {
	u, err := ResolveUser(user, d.client)
	if err != nil {
		return err
	}
	_, err = d.client.do(ctx, transport.Request{
		Method: http.MethodPut,
		Path:   "/owners/",
		Query:  d.client.actor(),
		Form:   url.Values{"jid": {u.JID()}},
	})
	return err
}

func (d *Domain) RemoveOwner(ctx context.Context, user UserRef) error {
	return d.removeMember(ctx, "/owner/", user)
}

func (d *Domain) Admins(ctx context.Context) ([]*User, error) {
	return d.client.listUsers(ctx, "/admins/")
}

func (d *Domain) AddAdmin(ctx context.Context, user UserRef) error {
	u, err := ResolveUser(user, d.client)
	if err != nil {
		return err
	}
	_, err = d.client.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/admins/",
		Query:  d.client.actor(),
		Form:   url.Values{"jid": {u.JID()}},
	})
	return err
}

func (d *Domain) RemoveAdmin(ctx context.Context, user UserRef) error {
	return d.removeMember(ctx, "/admin/", user)
}

func (d *Domain) removeMember(ctx context.Context, prefix string, user UserRef) error {
	u, err := ResolveUser(user, d.client)
	if err != nil {
		return err
	}
	_, err = d.client.do(ctx, transport.Request{
		Method: http.MethodDelete,
		Path:   prefix + url.PathEscape(u.JID()) + "/",
		Query:  d.client.actor(),
	})
	return err
}

// PullURLPlaceholder marks where the user id goes in a profile pull URL.
const PullURLPlaceholder = "{{id}}"

// SetPullURL sets the URL template the network fetches profiles from.
func (d *Domain) SetPullURL(ctx context.Context, template string) error {
	if !strings.Contains(template, PullURLPlaceholder) {
		return invalid("pull url", "template must contain "+PullURLPlaceholder)
	}

	form := d.client.actor()
	form.Set("pull_profile_url", template)
	_, err := d.client.do(ctx, transport.Request{
		Method: http.MethodPost,
		Path:   "/",
		Form:   form,
	})
	return err
}

// listUsers fetches a list of jids and turns each into a User.
func (c *Client) listUsers(ctx context.Context, path string) ([]*User, error) {
	var jids []string
	err := c.decode(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  c.actor(),
	}, &jids)
	if err != nil {
		return nil, err
	}

	users := make([]*User, 0, len(jids))
	for _, jid := range jids {
		users = append(users, c.User(splitJID(jid), ""))
	}
	return users, nil
}

// str reads a scalar field of a decoded JSON object as a string.
func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}
