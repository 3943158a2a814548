package livefyre

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sidereusnuntius/golivefyre/internal/transport"
)

type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortCreated   SortOrder = "created"
	SortUpdated   SortOrder = "updated"
	SortHotness   SortOrder = "hotness"
	SortComments  SortOrder = "ncomments"
)

func (s SortOrder) Valid() bool {
	switch s {
	case SortRelevance, SortCreated, SortUpdated, SortHotness, SortComments:
		return true
	}
	return false
}

// SiteRef names a site, either by id or by proxy.
type SiteRef interface {
	siteID() string
}

type SiteID string

func (s SiteID) siteID() string { return string(s) }

func (s *Site) siteID() string {
	if s == nil {
		return ""
	}
	return s.ID
}

// SearchOptions narrows a conversation search. Zero values are left out of
// the query.
type SearchOptions struct {
	// Fields to search in and return.
	Fields []string
	// Sort defaults to SortRelevance.
	Sort SortOrder
	// Max caps the number of results per page.
	Max int
	// Since and Until bound the creation time of matched conversations.
	Since time.Time
	Until time.Time
	Sites []SiteRef
	// Page selects a page of Max results; it becomes the cursor Max*Page.
	Page int
}

const searchTimeLayout = "2006-01-02T15:04:05Z"

func (o SearchOptions) query(text string) (url.Values, error) {
	sort := o.Sort
	if sort == "" {
		sort = SortRelevance
	}
	if !sort.Valid() {
		return nil, invalid("sort", fmt.Sprintf("%q is not one of relevance, created, updated, hotness, ncomments", sort))
	}
	if o.Max < 0 || o.Page < 0 {
		return nil, invalid("page", "max and page must not be negative")
	}

	q := url.Values{}
	if text != "" {
		q.Set("text", text)
	}
	q.Set("sort", string(sort))
	if len(o.Fields) > 0 {
		q.Set("fields", strings.Join(o.Fields, ","))
	}
	if o.Max > 0 {
		q.Set("max", strconv.Itoa(o.Max))
	}
	if !o.Since.IsZero() {
		q.Set("since", o.Since.UTC().Format(searchTimeLayout))
	}
	if !o.Until.IsZero() {
		q.Set("until", o.Until.UTC().Format(searchTimeLayout))
	}
	if len(o.Sites) > 0 {
		ids := make([]string, 0, len(o.Sites))
		for _, s := range o.Sites {
			if s == nil || s.siteID() == "" {
				return nil, invalid("sites", "site without id")
			}
			ids = append(ids, s.siteID())
		}
		q.Set("sites", strings.Join(ids, ","))
	}
	if o.Page > 0 {
		q.Set("cursor", strconv.Itoa(o.Max*o.Page))
	}
	return q, nil
}

type searchResult struct {
	CollectionID flexID `json:"collectionId"`
	ArticleID    string `json:"articleId"`
	SiteID       flexID `json:"siteId"`
	Title        string `json:"title"`
	URL          string `json:"url"`
}

// SearchConversations finds conversations across the network matching text.
func (d *Domain) SearchConversations(ctx context.Context, text string, opts SearchOptions) ([]*Conversation, error) {
	q, err := opts.query(text)
	if err != nil {
		return nil, err
	}
	for k, v := range d.client.actor() {
		q[k] = v
	}

	var body struct {
		Data []searchResult `json:"data"`
	}
	err = d.client.decode(ctx, transport.Request{
		Method: http.MethodGet,
		Path:   "/api/v3_0/search/conversations/",
		Query:  q,
	}, &body)
	if err != nil {
		return nil, err
	}

	convs := make([]*Conversation, 0, len(body.Data))
	for _, r := range body.Data {
		convs = append(convs, &Conversation{
			ID:        string(r.CollectionID),
			ArticleID: r.ArticleID,
			SiteID:    string(r.SiteID),
			Title:     r.Title,
			URL:       r.URL,
			client:    d.client,
		})
	}
	return convs, nil
}
