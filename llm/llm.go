package llm

import (
	"context"
	"fmt"
)

// Client 抽象大模型调用（文本变换），便于替换/Mock。
type Client interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// Prompt 表示发送给 LLM 的一次请求：系统指令 + 用户输入。
type Prompt struct {
	System string
	User   string
}

// Settings 提供给具体实现的基础配置。
type Settings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}

// TransformError wraps a failed text transform. It is fatal to the current run.
type TransformError struct {
	Provider string
	Err      error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("%s: text transform failed: %v", e.Provider, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Func adapts a plain function to Client.
type Func func(ctx context.Context, prompt Prompt) (string, error)

func (f Func) Complete(ctx context.Context, prompt Prompt) (string, error) {
	return f(ctx, prompt)
}
