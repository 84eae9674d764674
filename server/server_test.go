package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"devecho/bot"
	"devecho/generator"
	"devecho/pipeline"
	"devecho/publisher"
)

type stubPipeline struct {
	mu    sync.Mutex
	posts map[string][]generator.PostDraft
}

func (p *stubPipeline) Run(_ context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (pipeline.Result, error) {
	progress(pipeline.StageCollecting, 1, 3)
	progress(pipeline.StageRetrieving, 2, 3)
	progress(pipeline.StageGenerating, 3, 3)
	posts := make([]generator.PostDraft, req.DraftCount)
	for i := range posts {
		posts[i] = generator.PostDraft{DraftNumber: i + 1, Content: fmt.Sprintf("draft %d", i+1), Tone: "professional"}
	}
	p.mu.Lock()
	p.posts[req.UserID] = posts
	p.mu.Unlock()
	return pipeline.Result{RunID: "run", Posts: posts}, nil
}

func (p *stubPipeline) LatestPosts(_ context.Context, userID string) ([]generator.PostDraft, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	posts, ok := p.posts[userID]
	if !ok {
		return nil, pipeline.ErrNoPosts
	}
	return posts, nil
}

type fixedTone string

func (t fixedTone) Get() string    { return string(t) }
func (fixedTone) Set(string) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *bot.Machine) {
	return newTestServerWith(t, nil)
}

func newTestServerWith(t *testing.T, configure func(*bot.Config)) (*httptest.Server, *bot.Machine) {
	t.Helper()
	p := &stubPipeline{posts: map[string][]generator.PostDraft{}}
	outbox := NewOutbox()
	router := bot.NewRouter()
	router.Register(Transport, outbox)
	cfg := bot.Config{
		Pipeline: p,
		Tones:    fixedTone("professional"),
		Notifier: router,
		Logger:   log.New(io.Discard, "", 0),
	}
	if configure != nil {
		configure(&cfg)
	}
	m, err := bot.NewMachine(cfg)
	if err != nil {
		t.Fatalf("NewMachine: %v", err)
	}
	srv, err := New(m, p, outbox, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return ts, m
}

func send(t *testing.T, ts *httptest.Server, user, text string) messageResp {
	t.Helper()
	body := fmt.Sprintf(`{"text":%q}`, text)
	resp, err := http.Post(ts.URL+"/api/sessions/"+user+"/messages", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var out messageResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
	return resp.StatusCode
}

func TestConversationOverHTTP(t *testing.T) {
	ts, m := newTestServer(t)

	if got := send(t, ts, "alice", "/new"); got.State != "awaiting_instructions" || got.Reply.Text == "" {
		t.Fatalf("/new = %+v", got)
	}
	send(t, ts, "alice", "Write about vector search")
	send(t, ts, "alice", "vector databases")
	send(t, ts, "alice", "backend engineers")
	if got := send(t, ts, "alice", "2"); got.State != "processing" {
		t.Fatalf("state after count = %q", got.State)
	}
	m.Wait()

	var events eventsResp
	if code := getJSON(t, ts.URL+"/api/sessions/alice/events", &events); code != http.StatusOK {
		t.Fatalf("events status = %d", code)
	}
	if len(events.Events) < 5 || !strings.HasPrefix(events.Events[0].Text, "Step 1/3") {
		t.Fatalf("events = %+v", events.Events)
	}
	var again eventsResp
	getJSON(t, ts.URL+"/api/sessions/alice/events", &again)
	if len(again.Events) != 0 {
		t.Fatalf("events not drained: %+v", again.Events)
	}

	var posts []generator.PostDraft
	if code := getJSON(t, ts.URL+"/api/sessions/alice/posts", &posts); code != http.StatusOK || len(posts) != 2 {
		t.Fatalf("posts = %d %+v", code, posts)
	}
	var snap bot.Snapshot
	getJSON(t, ts.URL+"/api/sessions/alice", &snap)
	if snap.State != "idle" || snap.DraftCount != 2 || snap.Address.Transport != Transport {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestPostsBeforeGeneration(t *testing.T) {
	ts, _ := newTestServer(t)
	if code := getJSON(t, ts.URL+"/api/sessions/bob/posts", nil); code != http.StatusNotFound {
		t.Fatalf("status = %d", code)
	}
	if code := getJSON(t, ts.URL+"/api/sessions/bob", nil); code != http.StatusNotFound {
		t.Fatalf("unknown session status = %d", code)
	}
}

func TestInvalidUserID(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/sessions/bad%20id/messages", "application/json", strings.NewReader(`{"text":"/new"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestEmptyMessageRejected(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Post(ts.URL+"/api/sessions/carol/messages", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestResetSession(t *testing.T) {
	ts, _ := newTestServer(t)
	send(t, ts, "dave", "/new")

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/dave", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if code := getJSON(t, ts.URL+"/api/sessions/dave", nil); code != http.StatusNotFound {
		t.Fatalf("session survived reset: %d", code)
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t)
	var body map[string]string
	if code := getJSON(t, ts.URL+"/healthz", &body); code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", code, body)
	}
}

type fakeLinker struct{}

func (fakeLinker) AuthorizeURL(state string) string {
	return "https://www.linkedin.com/oauth/v2/authorization?state=" + url.QueryEscape(state)
}

func (fakeLinker) Exchange(_ context.Context, code string) (string, error) {
	if code != "good-code" {
		return "", &publisher.PublishError{Op: "authorize", Status: http.StatusBadRequest, Err: errors.New("invalid code")}
	}
	return "member-token", nil
}

type identityPublisher struct{}

func (identityPublisher) FetchIdentity(_ context.Context, token string) (publisher.Identity, error) {
	if token != "member-token" {
		return publisher.Identity{}, publisher.ErrInvalidCredential
	}
	return publisher.Identity{ID: "m-1", Name: "Dana"}, nil
}

func (identityPublisher) PublishPost(context.Context, string, string, string) (publisher.PostResult, error) {
	return publisher.PostResult{ID: "urn:li:share:1"}, nil
}

func TestLinkedInSignIn(t *testing.T) {
	ts, m := newTestServerWith(t, func(c *bot.Config) {
		c.Linker = fakeLinker{}
		c.Publisher = identityPublisher{}
	})

	got := send(t, ts, "alice", "/linkedin")
	if len(got.Reply.Buttons) != 1 || got.Reply.Buttons[0][0].URL == "" {
		t.Fatalf("/linkedin reply = %+v", got.Reply)
	}
	u, err := url.Parse(got.Reply.Buttons[0][0].URL)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	state := u.Query().Get("state")

	callback := func(q string) (int, string) {
		resp, err := http.Get(ts.URL + "/linkedin/callback?" + q)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	if code, body := callback("state=" + url.QueryEscape(state) + "&code=good-code"); code != http.StatusOK || !strings.Contains(body, "Dana") {
		t.Fatalf("callback = %d %q", code, body)
	}
	snap, ok := m.Sessions().Snapshot("web-alice")
	if !ok || !snap.HasCredential {
		t.Fatalf("session = %+v", snap)
	}
	var events eventsResp
	getJSON(t, ts.URL+"/api/sessions/alice/events", &events)
	if len(events.Events) != 1 || !strings.Contains(events.Events[0].Text, "connected") {
		t.Fatalf("events = %+v", events.Events)
	}

	if code, _ := callback("state=" + url.QueryEscape(state) + "&code=good-code"); code != http.StatusBadRequest {
		t.Fatalf("reused state status = %d, want 400", code)
	}
	if code, _ := callback("error=user_cancelled_login&state=x"); code != http.StatusBadRequest {
		t.Fatalf("denied status = %d, want 400", code)
	}
}

func TestLinkedInSignInBadCode(t *testing.T) {
	ts, m := newTestServerWith(t, func(c *bot.Config) {
		c.Linker = fakeLinker{}
		c.Publisher = identityPublisher{}
	})
	got := send(t, ts, "bob", "/linkedin")
	u, _ := url.Parse(got.Reply.Buttons[0][0].URL)

	resp, err := http.Get(ts.URL + "/linkedin/callback?state=" + url.QueryEscape(u.Query().Get("state")) + "&code=stale")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
	if snap, _ := m.Sessions().Snapshot("web-bob"); snap.HasCredential {
		t.Fatal("credential stored after failed exchange")
	}
}
