package livefyre

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/sidereusnuntius/golivefyre/internal/transport"
)

func TestSourceChannel(t *testing.T) {
	cases := []struct {
		source Source
		want   Channel
	}{
		{0, ChannelLivefyre},
		{1, ChannelTwitter},
		{2, ChannelTwitter},
		{3, ChannelFacebook},
		{4, ChannelLivefyre},
		{5, ChannelLivefyre},
		{6, ChannelFacebook},
		{7, ChannelTwitter},
		{8, ChannelLivefyre},
		{9, ChannelUnknown},
		{255, ChannelUnknown},
	}

	for _, c := range cases {
		if got := c.source.Channel(); got != c.want {
			t.Errorf("source %d: expected %s, got %s", c.source, c.want, got)
		}
	}
}

const createdComment = `{
	"status": "ok",
	"data": {
		"messages": [{
			"content": {
				"id": "m1",
				"bodyHtml": "<p>hello</p>",
				"parentId": "",
				"authorId": "alice@test.fyre.co",
				"createdAt": 1700000000
			},
			"source": 5,
			"vis": 1,
			"type": 0
		}],
		"authors": {
			"alice@test.fyre.co": {"displayName": "Alice", "profileUrl": "http://example.com/alice"}
		}
	}
}`

func TestCreateComment(t *testing.T) {
	c, doer := newTestClient(t)
	user := c.User("alice", "")
	tok, _ := user.Token(0)

	expectRequest(t, doer, transport.Request{
		Method:  http.MethodPost,
		Service: transport.Message,
		Path:    "/api/v3.0/collection/12345/post/",
		Form:    url.Values{"lftoken": {tok}, "body": {"hello"}, "_bi": {c.Identifier()}},
	}, respond(http.StatusOK, createdComment))

	conv := c.Conversation("12345", "article-1")
	comment, err := conv.CreateComment(context.Background(), user, "hello", "")
	if err != nil {
		t.Fatal(err)
	}

	if comment.ID != "m1" || comment.Body != "<p>hello</p>" || comment.ParentID != "" {
		t.Errorf("unexpected comment %+v", comment)
	}
	if comment.Conversation != conv {
		t.Error("comment not attached to its conversation")
	}
	if !comment.CreatedAt.Equal(now) {
		t.Errorf("expected created at %v, got %v", now, comment.CreatedAt)
	}
	if a := comment.Author; a.ID != "alice" || a.DisplayName != "Alice" || a.URL != "http://example.com/alice" {
		t.Errorf("unexpected author %+v", a)
	}

	if s, ok := comment.Source(); !ok || s.Channel() != ChannelLivefyre {
		t.Errorf("expected livefyre source, got %v, %v", s, ok)
	}
	if v, ok := comment.Visibility(); !ok || v != VisibilityEveryone {
		t.Errorf("expected visibility everyone, got %v, %v", v, ok)
	}
	if ct, ok := comment.ContentType(); !ok || ct != ContentMessage {
		t.Errorf("expected message content, got %v, %v", ct, ok)
	}
}

func TestCreateComment_Reply(t *testing.T) {
	c, doer := newTestClient(t)
	user := c.User("alice", "")
	tok, _ := user.Token(0)

	expectRequest(t, doer, transport.Request{
		Method:  http.MethodPost,
		Service: transport.Message,
		Path:    "/api/v3.0/collection/12345/post/",
		Form:    url.Values{"lftoken": {tok}, "body": {"hello"}, "_bi": {c.Identifier()}, "parent_id": {"m0"}},
	}, respond(http.StatusOK, createdComment))

	if _, err := c.Conversation("12345", "").CreateComment(context.Background(), user, "hello", "m0"); err != nil {
		t.Fatal(err)
	}
}

func TestCreateComment_UnknownCodes(t *testing.T) {
	c, doer := newTestClient(t)
	expectRequestAny(doer, respond(http.StatusOK, `{
		"data": {
			"messages": [{
				"content": {"id": 77, "authorId": "alice@test.fyre.co", "createdAt": 1700000000},
				"source": 300,
				"vis": -1
			}]
		}
	}`))

	comment, err := c.Conversation("12345", "").CreateComment(context.Background(), c.User("alice", ""), "hello", "")
	if err != nil {
		t.Fatal(err)
	}
	if comment.ID != "77" {
		t.Errorf("unexpected comment id %q", comment.ID)
	}
	if s, ok := comment.Source(); ok {
		t.Errorf("expected source to be unset, got %d", s)
	}
	if v, ok := comment.Visibility(); ok {
		t.Errorf("expected visibility to be unset, got %v", v)
	}
	if ct, ok := comment.ContentType(); ok {
		t.Errorf("expected content type to be unset, got %v", ct)
	}
}

func TestCreateComment_Errors(t *testing.T) {
	t.Run("NoUser", func(t *testing.T) {
		c, _ := newTestClient(t)
		_, err := c.Conversation("12345", "").CreateComment(context.Background(), nil, "hello", "")
		if !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("expected invalid argument, got %v", err)
		}
	})

	t.Run("NoMessages", func(t *testing.T) {
		c, doer := newTestClient(t)
		expectRequestAny(doer, respond(http.StatusOK, `{"data":{"messages":[]}}`))
		_, err := c.Conversation("12345", "").CreateComment(context.Background(), c.User("alice", ""), "hello", "")
		if !errors.Is(err, ErrRemoteAPI) {
			t.Errorf("expected remote api error, got %v", err)
		}
	})
}

func TestCommentEnums_Unset(t *testing.T) {
	var c Comment
	if _, ok := c.Source(); ok {
		t.Error("source should be unset")
	}
	if _, ok := c.Visibility(); ok {
		t.Error("visibility should be unset")
	}
	if _, ok := c.ContentType(); ok {
		t.Error("content type should be unset")
	}
}

func TestCommentActions(t *testing.T) {
	c, _ := newTestClient(t)
	user := c.User("bob", "")
	tok, _ := user.Token(0)

	cases := []struct {
		name string
		call func(*Comment) error
		want transport.Request
	}{
		{
			name: "Delete",
			call: func(cm *Comment) error { return cm.Delete(context.Background()) },
			want: transport.Request{Method: http.MethodPost, Service: transport.Message, Path: "/api/v3.0/message/m1/delete", Form: url.Values{"lftoken": {systemTok}}},
		},
		{
			name: "Update",
			call: func(cm *Comment) error { return cm.Update(context.Background(), "edited") },
			want: transport.Request{Method: http.MethodPost, Service: transport.Message, Path: "/api/v3.0/message/m1/edit", Form: url.Values{"lftoken": {systemTok}, "body": {"edited"}}},
		},
		{
			name: "Like",
			call: func(cm *Comment) error { return cm.Like(context.Background(), user) },
			want: transport.Request{Method: http.MethodPost, Service: transport.Message, Path: "/api/v3.0/message/m1/like/", Form: url.Values{"collection_id": {"12345"}, "lftoken": {tok}}},
		},
		{
			name: "Unlike",
			call: func(cm *Comment) error { return cm.Unlike(context.Background(), user) },
			want: transport.Request{Method: http.MethodPost, Service: transport.Message, Path: "/api/v3.0/message/m1/unlike/", Form: url.Values{"collection_id": {"12345"}, "lftoken": {tok}}},
		},
		{
			name: "FlagAnonymous",
			call: func(cm *Comment) error {
				return cm.Flag(context.Background(), FlagSpam, "buy now", "mod@example.com", nil)
			},
			want: transport.Request{
				Method:  http.MethodPost,
				Service: transport.Message,
				Path:    "/api/v3.0/message/m1/flag/spam/",
				JSON:    flagRequest{MessageID: "m1", CollectionID: "12345", Flag: "spam", Notes: "buy now", Email: "mod@example.com"},
			},
		},
		{
			name: "FlagAsUser",
			call: func(cm *Comment) error {
				return cm.Flag(context.Background(), FlagOffTopic, "", "", user)
			},
			want: transport.Request{
				Method:  http.MethodPost,
				Service: transport.Message,
				Path:    "/api/v3.0/message/m1/flag/off-topic/",
				JSON:    flagRequest{MessageID: "m1", CollectionID: "12345", Flag: "off-topic", Token: tok},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, doer := newTestClient(t)
			expectRequest(t, doer, tc.want, respond(http.StatusOK, "{}"))
			comment := c.Conversation("12345", "article-1").Comment("m1")
			if err := tc.call(comment); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCommentFlag_InvalidReason(t *testing.T) {
	c, _ := newTestClient(t)
	err := c.Conversation("12345", "").Comment("m1").Flag(context.Background(), FlagReason("boring"), "", "", nil)
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestCommentUpdate_KeepsBodyOnFailure(t *testing.T) {
	c, doer := newTestClient(t)
	expectRequestAny(doer, respond(http.StatusNotFound, `{"msg":"no such message"}`))

	comment := c.Conversation("12345", "").Comment("m1")
	comment.Body = "original"
	if err := comment.Update(context.Background(), "edited"); !errors.Is(err, ErrRemoteAPI) {
		t.Fatalf("expected remote api error, got %v", err)
	}
	if comment.Body != "original" {
		t.Errorf("body changed on failure: %q", comment.Body)
	}
}
