package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.linkedin.com"
	userInfoPath   = "/v2/userinfo"
	ugcPostsPath   = "/v2/ugcPosts"
)

// ErrInvalidCredential is returned when LinkedIn rejects the access token.
var ErrInvalidCredential = errors.New("linkedin access token rejected")

// PublishError reports a failed identity lookup or post.
type PublishError struct {
	Op     string
	Status int
	Err    error
}

func (e *PublishError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("linkedin %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("linkedin %s: %v", e.Op, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Identity 是 userinfo 接口返回的成员信息。
type Identity struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

// PostResult identifies the created share.
type PostResult struct {
	ID string `json:"id"`
}

type userInfoResp struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

type shareCommentary struct {
	Text string `json:"text"`
}

type shareContent struct {
	ShareCommentary    shareCommentary `json:"shareCommentary"`
	ShareMediaCategory string          `json:"shareMediaCategory"`
}

type ugcPostPayload struct {
	Author          string                  `json:"author"`
	LifecycleState  string                  `json:"lifecycleState"`
	SpecificContent map[string]shareContent `json:"specificContent"`
	Visibility      map[string]string       `json:"visibility"`
}

type ugcPostResp struct {
	ID string `json:"id"`
}

// Client talks to the LinkedIn member APIs with a user supplied access token.
type Client struct {
	BaseURL string
	client  *http.Client
	verbose bool
	logger  *log.Logger
}

// New 创建 LinkedIn 客户端；token 由调用方逐次传入。
func New(client *http.Client, verbose bool, logger *log.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		BaseURL: defaultBaseURL,
		client:  client,
		verbose: verbose,
		logger:  logger,
	}
}

func (c *Client) infof(format string, args ...interface{}) {
	if !c.verbose {
		return
	}
	c.logger.Printf("[INFO] "+format, args...)
}

// FetchIdentity validates token and returns the member it belongs to.
func (c *Client) FetchIdentity(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, &PublishError{Op: "identity", Err: ErrInvalidCredential}
	}
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+userInfoPath, nil)
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Identity{}, &PublishError{Op: "identity", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Identity{}, &PublishError{Op: "identity", Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, &PublishError{Op: "identity", Status: resp.StatusCode, Err: ErrInvalidCredential}
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, &PublishError{Op: "identity", Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(body)))}
	}

	var data userInfoResp
	if err := json.Unmarshal(body, &data); err != nil {
		return Identity{}, &PublishError{Op: "identity", Err: err}
	}
	if data.Sub == "" {
		return Identity{}, &PublishError{Op: "identity", Err: errors.New("userinfo response has no member id")}
	}
	c.infof("Fetched LinkedIn identity id=%s name=%s", data.Sub, data.Name)
	return Identity{ID: data.Sub, Name: data.Name, Email: data.Email, Picture: data.Picture}, nil
}

// PublishPost creates a public text share authored by authorID.
func (c *Client) PublishPost(ctx context.Context, token, authorID, text string) (PostResult, error) {
	if authorID == "" {
		return PostResult{}, &PublishError{Op: "publish", Err: errors.New("author id is required")}
	}
	if strings.TrimSpace(text) == "" {
		return PostResult{}, &PublishError{Op: "publish", Err: errors.New("post text is empty")}
	}

	payload := ugcPostPayload{
		Author:         "urn:li:person:" + authorID,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]shareContent{
			"com.linkedin.ugc.ShareContent": {
				ShareCommentary:    shareCommentary{Text: text},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return PostResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+ugcPostsPath, bytes.NewReader(body))
	if err != nil {
		return PostResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return PostResult{}, &PublishError{Op: "publish", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PostResult{}, &PublishError{Op: "publish", Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusUnauthorized, http.StatusForbidden:
		return PostResult{}, &PublishError{Op: "publish", Status: resp.StatusCode, Err: ErrInvalidCredential}
	default:
		return PostResult{}, &PublishError{Op: "publish", Status: resp.StatusCode, Err: errors.New(strings.TrimSpace(string(respBody)))}
	}

	var data ugcPostResp
	_ = json.Unmarshal(respBody, &data)
	if data.ID == "" {
		data.ID = resp.Header.Get("X-RestLi-Id")
	}
	c.infof("Published LinkedIn post id=%s", data.ID)
	return PostResult{ID: data.ID}, nil
}
