package livefyre

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/golivefyre/internal/transport"
)

// Channel is the network a comment originated from.
type Channel int

const (
	ChannelUnknown Channel = iota
	ChannelLivefyre
	ChannelTwitter
	ChannelFacebook
)

func (c Channel) String() string {
	switch c {
	case ChannelLivefyre:
		return "Livefyre"
	case ChannelTwitter:
		return "Twitter"
	case ChannelFacebook:
		return "Facebook"
	}
	return "Unknown"
}

// Source is the wire code for how a comment was posted. Several codes share
// a channel.
type Source uint8

func (s Source) Channel() Channel {
	switch s {
	case 0, 4, 5, 8:
		return ChannelLivefyre
	case 1, 2, 7:
		return ChannelTwitter
	case 3, 6:
		return ChannelFacebook
	}
	return ChannelUnknown
}

func (s Source) String() string {
	return s.Channel().String()
}

type Visibility uint8

const (
	VisibilityNone Visibility = iota
	VisibilityEveryone
	VisibilityOwner
	VisibilityGroup
)

func (v Visibility) String() string {
	switch v {
	case VisibilityNone:
		return "None"
	case VisibilityEveryone:
		return "Everyone"
	case VisibilityOwner:
		return "Owner"
	case VisibilityGroup:
		return "Group"
	}
	return fmt.Sprintf("Visibility(%d)", uint8(v))
}

type ContentType uint8

const (
	ContentMessage ContentType = iota
	ContentOpinion
)

func (t ContentType) String() string {
	switch t {
	case ContentMessage:
		return "Message"
	case ContentOpinion:
		return "Opinion"
	}
	return fmt.Sprintf("ContentType(%d)", uint8(t))
}

type FlagReason string

const (
	FlagDisagree  FlagReason = "disagree"
	FlagSpam      FlagReason = "spam"
	FlagOffensive FlagReason = "offensive"
	FlagOffTopic  FlagReason = "off-topic"
)

func (r FlagReason) Valid() bool {
	switch r {
	case FlagDisagree, FlagSpam, FlagOffensive, FlagOffTopic:
		return true
	}
	return false
}

// Comment is a proxy for one message in a conversation.
type Comment struct {
	ID           string
	Body         string
	Author       *User
	ParentID     string
	AuthorIP     string
	State        string
	CreatedAt    time.Time
	Conversation *Conversation

	// Only set on comments returned by CreateComment.
	source      *Source
	visibility  *Visibility
	contentType *ContentType

	client *Client
}

func (c *Comment) Source() (Source, bool) {
	if c.source == nil {
		return 0, false
	}
	return *c.source, true
}

func (c *Comment) Visibility() (Visibility, bool) {
	if c.visibility == nil {
		return 0, false
	}
	return *c.visibility, true
}

func (c *Comment) ContentType() (ContentType, bool) {
	if c.contentType == nil {
		return 0, false
	}
	return *c.contentType, true
}

type createCommentResponse struct {
	Data struct {
		Messages []struct {
			Content struct {
				ID        flexID `json:"id"`
				BodyHTML  string `json:"bodyHtml"`
				ParentID  flexID `json:"parentId"`
				AuthorID  string `json:"authorId"`
				CreatedAt int64  `json:"createdAt"`
			} `json:"content"`
			Source json.Number `json:"source"`
			Vis    json.Number `json:"vis"`
			Type   json.Number `json:"type"`
		} `json:"messages"`
		Authors map[string]struct {
			DisplayName string `json:"displayName"`
			ProfileURL  string `json:"profileUrl"`
		} `json:"authors"`
	} `json:"data"`
}

// CreateComment posts body to conv as user. Creating is not idempotent: every
// call adds a comment.
func CreateComment(ctx context.Context, c *Client, user *User, conv *Conversation, body, parentID string) (*Comment, error) {
	if user == nil {
		return nil, invalid("user", "no user given")
	}
	if conv == nil || conv.ID == "" {
		return nil, invalid("conversation", "no collection id")
	}
	tok, err := user.WithClient(c).Token(0)
	if err != nil {
		return nil, err
	}

	form := url.Values{
		"lftoken": {tok},
		"body":    {body},
		"_bi":     {c.identifier},
	}
	if parentID != "" {
		form.Set("parent_id", parentID)
	}

	var res createCommentResponse
	err = c.decode(ctx, transport.Request{
		Method:  http.MethodPost,
		Service: transport.Message,
		Path:    "/api/v3.0/collection/" + url.PathEscape(conv.ID) + "/post/",
		Form:    form,
	}, &res)
	if err != nil {
		return nil, err
	}
	if len(res.Data.Messages) == 0 {
		return nil, &RemoteAPIError{StatusCode: http.StatusOK, Message: "no message in response"}
	}

	m := res.Data.Messages[0]
	author := c.User(splitJID(m.Content.AuthorID), "")
	if a, ok := res.Data.Authors[m.Content.AuthorID]; ok {
		author.DisplayName = a.DisplayName
		author.URL = a.ProfileURL
	}

	return &Comment{
		ID:           string(m.Content.ID),
		Body:         m.Content.BodyHTML,
		Author:       author,
		ParentID:     string(m.Content.ParentID),
		CreatedAt:    time.Unix(m.Content.CreatedAt, 0).UTC(),
		Conversation: conv,
		source:       wireCode[Source]("source", m.Source),
		visibility:   wireCode[Visibility]("vis", m.Vis),
		contentType:  wireCode[ContentType]("type", m.Type),
		client:       c,
	}, nil
}

// wireCode narrows a numeric enum from a response. Absent or out of range
// codes are left unset.
func wireCode[T ~uint8](field string, n json.Number) *T {
	if n == "" {
		return nil
	}
	v, err := n.Int64()
	if err != nil || v < 0 || v > math.MaxUint8 {
		log.Warn().Str("field", field).Str("value", n.String()).Msg("ignoring unknown comment code")
		return nil
	}
	code := T(v)
	return &code
}

func (c *Comment) path(action string) string {
	return "/api/v3.0/message/" + url.PathEscape(c.ID) + "/" + action
}

func (c *Comment) Delete(ctx context.Context) error {
	_, err := c.client.do(ctx, transport.Request{
		Method:  http.MethodPost,
		Service: transport.Message,
		Path:    c.path("delete"),
		Form:    url.Values{"lftoken": {c.client.systemToken}},
	})
	return err
}

// Update replaces the comment's body.
func (c *Comment) Update(ctx context.Context, body string) error {
	_, err := c.client.do(ctx, transport.Request{
		Method:  http.MethodPost,
		Service: transport.Message,
		Path:    c.path("edit"),
		Form:    url.Values{"lftoken": {c.client.systemToken}, "body": {body}},
	})
	if err != nil {
		return err
	}
	c.Body = body
	return nil
}

func (c *Comment) Like(ctx context.Context, user *User) error {
	return c.vote(ctx, user, "like/")
}

func (c *Comment) Unlike(ctx context.Context, user *User) error {
	return c.vote(ctx, user, "unlike/")
}

func (c *Comment) vote(ctx context.Context, user *User, action string) error {
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
		Path:    c.path(action),
		Form:    url.Values{"collection_id": {c.collectionID()}, "lftoken": {tok}},
	})
	return err
}

type flagRequest struct {
	MessageID    string `json:"message_id"`
	CollectionID string `json:"collection_id"`
	Flag         string `json:"flag"`
	Notes        string `json:"notes"`
	Email        string `json:"email"`
	Token        string `json:"lftoken,omitempty"`
}

// Flag reports the comment. When user is set the flag is attributed to them.
func (c *Comment) Flag(ctx context.Context, reason FlagReason, notes, email string, user *User) error {
	if !reason.Valid() {
		return invalid("flag reason", fmt.Sprintf("%q is not one of disagree, spam, offensive, off-topic", reason))
	}

	req := flagRequest{
		MessageID:    c.ID,
		CollectionID: c.collectionID(),
		Flag:         string(reason),
		Notes:        notes,
		Email:        email,
	}
	if user != nil {
		tok, err := user.WithClient(c.client).Token(0)
		if err != nil {
			return err
		}
		req.Token = tok
	}

	_, err := c.client.do(ctx, transport.Request{
		Method:  http.MethodPost,
		Service: transport.Message,
		Path:    c.path("flag/" + string(reason) + "/"),
		JSON:    req,
	})
	return err
}

func (c *Comment) collectionID() string {
	if c.Conversation == nil {
		return ""
	}
	return c.Conversation.ID
}
