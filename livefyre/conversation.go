package livefyre

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/sidereusnuntius/golivefyre/internal/transport"
)

// Conversation is a proxy for a collection, the comment thread of one article.
type Conversation struct {
	ID        string
	ArticleID string
	SiteID    string
	// Title and URL are only known for conversations returned by a search.
	Title  string
	URL    string
	client *Client
}

func (c *Conversation) Client() *Client {
	return c.client
}

// Tags are the tags of a conversation: a TagList, a comma separated
// TagString, or nil for none.
type Tags interface {
	tagString() (string, error)
}

type TagList []string

type TagString string

func (l TagList) tagString() (string, error) {
	for _, t := range l {
		if strings.Contains(t, ",") {
			return "", invalid("tags", "tag "+t+" contains a comma")
		}
	}
	return strings.Join(l, ","), nil
}

func (s TagString) tagString() (string, error) {
	return string(s), nil
}

// CollectionMeta signs the article metadata of a conversation with the site
// key. It fails before any request is made when the link is not an absolute
// URL or the client has no site key.
func CollectionMeta(c *Client, articleID, title, link string, tags Tags) (string, error) {
	var tagStr string
	if tags != nil {
		var err error
		if tagStr, err = tags.tagString(); err != nil {
			return "", err
		}
	}

	u, err := url.Parse(link)
	if err != nil {
		return "", invalid("link", err.Error())
	}
	if u.Scheme == "" || u.Host == "" {
		return "", invalid("link", "must be an absolute url")
	}

	if c.siteCodec == nil {
		return "", &ConfigurationError{Field: "site_key"}
	}
	return c.siteCodec.Sign(Claims{
		"title":     title,
		"url":       link,
		"articleId": articleID,
		"tags":      tagStr,
	})
}

type collectionRequest struct {
	CollectionMeta string `json:"collectionMeta"`
	ArticleID      string `json:"articleId"`
}

// CreateConversation creates a collection on the client's default site.
func (c *Client) CreateConversation(ctx context.Context, articleID, title, link string, tags Tags) (*Conversation, error) {
	return createConversation(ctx, c, c.siteID, articleID, title, link, tags)
}

func createConversation(ctx context.Context, c *Client, siteID, articleID, title, link string, tags Tags) (*Conversation, error) {
	if siteID == "" {
		return nil, &ConfigurationError{Field: "site_id"}
	}
	meta, err := CollectionMeta(c, articleID, title, link, tags)
	if err != nil {
		return nil, err
	}

	var body struct {
		Data struct {
			CollectionID flexID `json:"collectionId"`
		} `json:"data"`
	}
	err = c.decode(ctx, transport.Request{
		Method:  http.MethodPost,
		Service: transport.Message,
		Path:    "/api/v3.0/site/" + url.PathEscape(siteID) + "/collection/create",
		JSON:    collectionRequest{CollectionMeta: meta, ArticleID: articleID},
	}, &body)
	if err != nil {
		return nil, err
	}
	if body.Data.CollectionID == "" {
		return nil, &RemoteAPIError{StatusCode: http.StatusOK, Message: "collection created without id"}
	}

	return &Conversation{
		ID:        string(body.Data.CollectionID),
		ArticleID: articleID,
		SiteID:    siteID,
		Title:     title,
		URL:       link,
		client:    c,
	}, nil
}

// Update replaces the conversation's article metadata.
func (c *Conversation) Update(ctx context.Context, title, link string, tags Tags) error {
	if c.SiteID == "" {
		return &ConfigurationError{Field: "site_id"}
	}
	meta, err := CollectionMeta(c.client, c.ArticleID, title, link, tags)
	if err != nil {
		return err
	}

	_, err = c.client.do(ctx, transport.Request{
		Method:  http.MethodPost,
		Service: transport.Message,
		Path:    "/api/v3.0/site/" + url.PathEscape(c.SiteID) + "/collection/update/",
		JSON:    collectionRequest{CollectionMeta: meta, ArticleID: c.ArticleID},
	})
	if err != nil {
		return err
	}
	c.Title, c.URL = title, link
	return nil
}

// CreateComment posts body as user, in reply to parentID when it is set.
func (c *Conversation) CreateComment(ctx context.Context, user *User, body, parentID string) (*Comment, error) {
	return CreateComment(ctx, c.client, user, c, body, parentID)
}

// Comment returns a proxy for an existing comment in the conversation.
func (c *Conversation) Comment(id string) *Comment {
	return &Comment{ID: id, Conversation: c, client: c.client}
}

func (c *Conversation) FollowAs(ctx context.Context, user *User) error {
	return c.follow(ctx, user, "follow/")
}

func (c *Conversation) UnfollowAs(ctx context.Context, user *User) error {
	return c.follow(ctx, user, "unfollow/")
}

func (c *Conversation) follow(ctx context.Context, user *User, action string) error {
	if user == nil {
		return invalid("user", "no user given")
	}
	tok, err := user.WithClient(c.client).Token(0)
	if err != nil {
		return err
	}
	_, err = c.client.do(ctx, transport.Request{
		Method:  http.MethodPost,
		Service: transport.Message,
		Path:    "/api/v3.0/collection/" + url.PathEscape(c.ID) + "/" + action,
		Form:    url.Values{"lftoken": {tok}, "collectionId": {c.ID}},
	})
	return err
}

// Init fetches the bootstrap document of the conversation: its settings and
// the first page of content.
func (c *Conversation) Init(ctx context.Context) (map[string]any, error) {
	if c.SiteID == "" {
		return nil, &ConfigurationError{Field: "site_id"}
	}
	article := base64.StdEncoding.EncodeToString([]byte(c.ArticleID))

	var doc map[string]any
	err := c.client.decode(ctx, transport.Request{
		Method:  http.MethodGet,
		Service: transport.Bootstrap,
		Path:    "/bs3/" + c.client.host + "/" + url.PathEscape(c.SiteID) + "/" + url.PathEscape(article) + "/init",
	}, &doc)
	return doc, err
}

// flexID accepts ids the service encodes either as strings or as numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}
