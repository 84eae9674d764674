package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRejectsMissingProvider(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil settings")
	}
	if _, err := New(&Settings{Provider: "nope"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewCompatibleProvidersNeedBaseURL(t *testing.T) {
	_, err := New(&Settings{Provider: "groq", Model: "llama3-70b-8192", APIKey: "k"})
	if err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
}

func TestNewOpenAIRequiresKeyAndModel(t *testing.T) {
	if _, err := NewOpenAIFromSettings(&Settings{Model: "m"}); err == nil {
		t.Error("expected missing api key error")
	}
	if _, err := NewOpenAIFromSettings(&Settings{APIKey: "k"}); err == nil {
		t.Error("expected missing model error")
	}
}

func TestOpenAICompleteSendsSystemAndUser(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"draft text"}}]}`))
	}))
	defer srv.Close()

	client, err := NewOpenAIFromSettings(&Settings{Provider: "groq", Model: "m", APIKey: "k", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewOpenAIFromSettings: %v", err)
	}
	out, err := client.Complete(context.Background(), Prompt{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "draft text" {
		t.Errorf("Complete = %q, want %q", out, "draft text")
	}
	if got.Model != "m" || len(got.Messages) != 2 {
		t.Fatalf("unexpected request: %+v", got)
	}
	if got.Messages[0].Role != "system" || got.Messages[0].Content != "sys" {
		t.Errorf("first message = %+v, want system/sys", got.Messages[0])
	}
	if got.Messages[1].Role != "user" || got.Messages[1].Content != "usr" {
		t.Errorf("second message = %+v, want user/usr", got.Messages[1])
	}
}

func TestAnthropicCompleteSendsTemperature(t *testing.T) {
	var got struct {
		Model       string   `json:"model"`
		Temperature *float64 `json:"temperature"`
		System      []struct {
			Text string `json:"text"`
		} `json:"system"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"m",
			"content":[{"type":"text","text":"critique"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":1,"output_tokens":1}}`))
	}))
	defer srv.Close()

	client, err := NewAnthropicFromSettings(&Settings{Model: "m", APIKey: "k", BaseURL: srv.URL + "/", Temperature: 0.4})
	if err != nil {
		t.Fatalf("NewAnthropicFromSettings: %v", err)
	}
	out, err := client.Complete(context.Background(), Prompt{System: "sys", User: "usr"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "critique" {
		t.Errorf("Complete = %q, want critique", out)
	}
	if got.Temperature == nil || *got.Temperature != 0.4 {
		t.Errorf("temperature = %v, want 0.4", got.Temperature)
	}
	if len(got.System) != 1 || got.System[0].Text != "sys" {
		t.Errorf("system = %+v", got.System)
	}
}

func TestOpenAICompleteWrapsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, err := NewOpenAIFromSettings(&Settings{Model: "m", APIKey: "k", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewOpenAIFromSettings: %v", err)
	}
	_, err = client.Complete(context.Background(), Prompt{User: "x"})
	var te *TransformError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransformError, got %v", err)
	}
	if te.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", te.Provider)
	}
}

func TestMockEchoesFirstLine(t *testing.T) {
	out, err := Mock{}.Complete(context.Background(), Prompt{User: "hello world\nsecond line"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !strings.Contains(out, "hello world") || strings.Contains(out, "second line") {
		t.Errorf("unexpected mock output %q", out)
	}
}
