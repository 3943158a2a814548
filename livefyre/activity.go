package livefyre

import (
	"encoding/json"
	"strconv"
	"time"
)

// CommentAdded is the activity type of a newly posted comment.
const CommentAdded = "comment-add"

// Activity is one entry of a site feed, kept as the raw decoded JSON object.
type Activity struct {
	ID     string
	Params map[string]any
	siteID string
	client *Client
}

// NewActivity wraps a decoded feed entry or postback payload.
func NewActivity(c *Client, siteID string, params map[string]any) *Activity {
	return &Activity{
		ID:     str(params, "activity_id"),
		Params: params,
		siteID: siteID,
		client: c,
	}
}

func (a *Activity) Type() string {
	return str(a.Params, "activity_type")
}

func (a *Activity) IsComment() bool {
	return a.Type() == CommentAdded
}

// CreatedAt is the zero time when the entry carries no creation time.
func (a *Activity) CreatedAt() time.Time {
	var sec int64
	switch v := a.Params["created"].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			sec = n
		} else if f, err := v.Float64(); err == nil {
			sec = int64(f)
		}
	case float64:
		sec = int64(v)
	case string:
		sec, _ = strconv.ParseInt(v, 10, 64)
	default:
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func (a *Activity) Conversation() *Conversation {
	return &Conversation{
		ID:        str(a.Params, "lf_conv_id"),
		ArticleID: str(a.Params, "article_identifier"),
		SiteID:    a.siteID,
		client:    a.client,
	}
}

// User is the author of the activity, identified by the local part of its jid.
func (a *Activity) User() *User {
	u := a.client.User(splitJID(str(a.Params, "lf_jid")), str(a.Params, "author"))
	u.Email = str(a.Params, "author_email")
	u.URL = str(a.Params, "author_url")
	return u
}

// Comment projects a comment-add activity onto a Comment.
func (a *Activity) Comment() (*Comment, error) {
	if !a.IsComment() {
		return nil, invalid("activity", "type "+a.Type()+" is not "+CommentAdded)
	}
	return &Comment{
		ID:           str(a.Params, "lf_comment_id"),
		Body:         str(a.Params, "body_text"),
		Author:       a.User(),
		ParentID:     str(a.Params, "lf_parent_comment_id"),
		AuthorIP:     str(a.Params, "author_ip"),
		State:        str(a.Params, "state"),
		CreatedAt:    a.CreatedAt(),
		Conversation: a.Conversation(),
		client:       a.client,
	}, nil
}
