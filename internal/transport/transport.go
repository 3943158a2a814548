package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Service names one of the remote sub-hosts a request is routed to.
type Service int

const (
	Core Service = iota
	Message
	Stream
	Bootstrap
)

func (s Service) String() string {
	switch s {
	case Core:
		return "core"
	case Message:
		return "message"
	case Stream:
		return "stream"
	case Bootstrap:
		return "bootstrap"
	}
	return fmt.Sprintf("service(%d)", int(s))
}

// prefix is prepended to the network host to reach each sub-service.
func (s Service) prefix() string {
	switch s {
	case Message:
		return "quill."
	case Stream:
		return "stream."
	case Bootstrap:
		return "bootstrap."
	}
	return ""
}

// Request describes one call. At most one of Form and JSON is set; Query is
// appended to Path.
type Request struct {
	Method  string
	Service Service
	Path    string
	Query   url.Values
	Form    url.Values
	JSON    any
}

type Response struct {
	StatusCode int
	Body       []byte
}

func (r *Response) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

//go:generate mockgen -destination=../mocks/mock_transport.go -package=mocks github.com/sidereusnuntius/golivefyre/internal/transport Doer

// Doer is the seam between the proxies and the network.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// BaseURLs derives the four sub-service roots from a network host.
func BaseURLs(scheme, host string) map[Service]*url.URL {
	if scheme == "" {
		scheme = "http"
	}
	bases := make(map[Service]*url.URL, 4)
	for _, s := range []Service{Core, Message, Stream, Bootstrap} {
		bases[s] = &url.URL{Scheme: scheme, Host: s.prefix() + host}
	}
	return bases
}

type HttpTransport struct {
	client *http.Client
	bases  map[Service]*url.URL
}

func New(client *http.Client, bases map[Service]*url.URL) (*HttpTransport, error) {
	for _, s := range []Service{Core, Message, Stream, Bootstrap} {
		if bases[s] == nil {
			return nil, fmt.Errorf("no base url for %s service", s)
		}
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HttpTransport{
		client: client,
		bases:  bases,
	}, nil
}

func (t *HttpTransport) URL(req Request) (*url.URL, error) {
	base, ok := t.bases[req.Service]
	if !ok {
		return nil, fmt.Errorf("unknown service %s", req.Service)
	}

	ref, err := url.Parse(req.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", req.Path, err)
	}
	u := base.ResolveReference(ref)
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (t *HttpTransport) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := t.URL(req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	var contentType string
	switch {
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	case req.Form != nil:
		body = strings.NewReader(req.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	r, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	r.Header.Set("Accept", "application/json")

	log.Debug().Str("method", method).Str("service", req.Service.String()).Str("path", u.Path).Msg("issuing request")
	res, err := t.client.Do(r)
	if err != nil {
		log.Error().Err(err).Str("path", u.Path).Msg("failed to do request")
		return nil, err
	}
	defer res.Body.Close()

	content, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		log.Error().Int("code", res.StatusCode).Str("path", u.Path).Bytes("response body", content).Msg("request failed")
	}

	return &Response{
		StatusCode: res.StatusCode,
		Body:       content,
	}, nil
}
