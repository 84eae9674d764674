package publisher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func newTestAuthorizer(t *testing.T, srv *httptest.Server) *Authorizer {
	t.Helper()
	a, err := NewAuthorizer(OAuthConfig{
		ClientID:     "cid",
		ClientSecret: "secret",
		RedirectURL:  "https://devecho.example/linkedin/callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   srv.URL + "/oauth/v2/authorization",
			TokenURL:  srv.URL + "/oauth/v2/accessToken",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}, srv.Client())
	if err != nil {
		t.Fatalf("NewAuthorizer: %v", err)
	}
	return a
}

func TestAuthorizeURL(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()
	a := newTestAuthorizer(t, srv)

	u, err := url.Parse(a.AuthorizeURL("st-1"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	q := u.Query()
	if u.Path != "/oauth/v2/authorization" || q.Get("response_type") != "code" || q.Get("client_id") != "cid" {
		t.Fatalf("url = %s", u)
	}
	if q.Get("state") != "st-1" || q.Get("redirect_uri") != "https://devecho.example/linkedin/callback" {
		t.Fatalf("url = %s", u)
	}
	if q.Get("scope") != strings.Join(DefaultScopes, " ") {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
}

func TestExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth/v2/accessToken" {
			http.NotFound(w, r)
			return
		}
		r.ParseForm()
		if r.Form.Get("grant_type") != "authorization_code" || r.Form.Get("client_secret") != "secret" || r.Form.Get("client_id") != "cid" {
			t.Errorf("form = %v", r.Form)
		}
		if r.Form.Get("code") != "good-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid_request","error_description":"Unable to retrieve access token"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"member-token","expires_in":5184000}`))
	}))
	defer srv.Close()
	a := newTestAuthorizer(t, srv)

	tok, err := a.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if tok != "member-token" {
		t.Fatalf("token = %q", tok)
	}

	_, err = a.Exchange(context.Background(), "stale-code")
	var pe *PublishError
	if !errors.As(err, &pe) || pe.Op != "authorize" || pe.Status != http.StatusBadRequest {
		t.Fatalf("err = %v, want 400 PublishError", err)
	}
	if _, err := a.Exchange(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty code")
	}
}

func TestNewAuthorizerRequiresApp(t *testing.T) {
	if _, err := NewAuthorizer(OAuthConfig{ClientID: "cid"}, nil); err == nil {
		t.Fatal("expected error without secret")
	}
	if _, err := NewAuthorizer(OAuthConfig{ClientID: "cid", ClientSecret: "s"}, nil); err == nil {
		t.Fatal("expected error without redirect url")
	}
}
