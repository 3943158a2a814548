package queue

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sidereusnuntius/golivefyre/internal/initialization"
	"github.com/sidereusnuntius/golivefyre/livefyre"
)

type recorded struct {
	Method, Path string
	Query, Form  url.Values
}

type network struct {
	mu       sync.Mutex
	requests []recorded
	status   int
}

func (n *network) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n.mu.Lock()
	n.requests = append(n.requests, recorded{r.Method, r.URL.Path, r.URL.Query(), r.PostForm})
	n.mu.Unlock()
	w.WriteHeader(n.status)
	w.Write([]byte(`{}`))
}

func newClient(t *testing.T, status int) (*livefyre.Client, *network) {
	t.Helper()
	n := &network{status: status}
	srv := httptest.NewServer(n)
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	c, err := livefyre.New(livefyre.Options{
		Host:        u.Host,
		Key:         "networkkey",
		SystemToken: "systoken",
		HTTPClient:  srv.Client(),
	})
	if err != nil {
		t.Fatal(err)
	}
	return c, n
}

func TestProcessors(t *testing.T) {
	c, n := newClient(t, http.StatusOK)
	ctx := context.Background()

	if err := refresh(c)(ctx, RefreshJob{UserID: "alice"}); err != nil {
		t.Fatal(err)
	}
	if err := push(c)(ctx, PushJob{UserID: "alice", Profile: map[string]any{"email": "alice@example.com"}}); err != nil {
		t.Fatal(err)
	}

	want := []recorded{
		{
			Method: http.MethodPost,
			Path:   "/api/v3_0/user/alice/refresh",
			Query:  url.Values{},
			Form:   url.Values{"lftoken": {"systoken"}},
		},
		{
			Method: http.MethodPost,
			Path:   "/profiles/",
			Query:  url.Values{"actor_token": {"systoken"}, "id": {"alice"}},
			Form:   url.Values{"data": {`{"email":"alice@example.com"}`}},
		},
	}
	if diff := cmp.Diff(want, n.requests); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessors_Failure(t *testing.T) {
	c, _ := newClient(t, http.StatusServiceUnavailable)

	err := refresh(c)(context.Background(), RefreshJob{UserID: "alice"})
	if !errors.Is(err, livefyre.ErrRemoteAPI) {
		t.Errorf("expected the failure to be returned for a retry, got %v", err)
	}
}

func TestQueue_Enqueue(t *testing.T) {
	db, err := initialization.OpenDB(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	tasks, err := initialization.InitQueue(db, 1)
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newClient(t, http.StatusOK)
	q := New(c, tasks)

	ctx := context.Background()
	if err := q.Refresh(ctx, "alice"); err != nil {
		t.Errorf("refresh: %v", err)
	}
	if err := q.Push(ctx, "alice", map[string]any{"display_name": "Alice"}); err != nil {
		t.Errorf("push: %v", err)
	}
	if err := q.Refresh(ctx, ""); !errors.Is(err, livefyre.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}
