package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// LinkedIn 的 OAuth 2.0 授权码端点。
var LinkedInEndpoint = oauth2.Endpoint{
	AuthURL:   "https://www.linkedin.com/oauth/v2/authorization",
	TokenURL:  "https://www.linkedin.com/oauth/v2/accessToken",
	AuthStyle: oauth2.AuthStyleInParams,
}

// DefaultScopes cover /v2/userinfo and posting as the member.
var DefaultScopes = []string{"openid", "profile", "email", "w_member_social"}

// OAuthConfig describes the registered LinkedIn app.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Endpoint     oauth2.Endpoint
}

// Authorizer exchanges authorization codes for member access tokens.
type Authorizer struct {
	conf   *oauth2.Config
	client *http.Client
}

func NewAuthorizer(cfg OAuthConfig, client *http.Client) (*Authorizer, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("linkedin client id and secret are required")
	}
	if cfg.RedirectURL == "" {
		return nil, errors.New("linkedin redirect url is required")
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.Endpoint.AuthURL == "" {
		cfg.Endpoint = LinkedInEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Authorizer{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint:     cfg.Endpoint,
		},
		client: client,
	}, nil
}

// AuthorizeURL is the consent page the member opens; state comes back on the
// redirect unchanged.
func (a *Authorizer) AuthorizeURL(state string) string {
	return a.conf.AuthCodeURL(state)
}

// Exchange trades code for an access token.
func (a *Authorizer) Exchange(ctx context.Context, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", &PublishError{Op: "authorize", Err: errors.New("authorization code is empty")}
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return "", &PublishError{Op: "authorize", Status: re.Response.StatusCode, Err: err}
		}
		return "", &PublishError{Op: "authorize", Err: err}
	}
	if tok.AccessToken == "" {
		return "", &PublishError{Op: "authorize", Err: fmt.Errorf("token response has no access_token")}
	}
	return tok.AccessToken, nil
}
