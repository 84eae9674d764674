package llm

import (
	"context"
	"strings"
)

// Mock 一个简单的占位实现，便于本地调试，不调用外部模型。
type Mock struct{}

func (Mock) Complete(_ context.Context, prompt Prompt) (string, error) {
	// 取用户输入的首行拼一个假稿件。
	first := strings.TrimSpace(prompt.User)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if len(first) > 120 {
		first = first[:120]
	}
	var sb strings.Builder
	sb.WriteString("Mock output\n\n")
	sb.WriteString(first)
	sb.WriteString("\n\nWhat do you think?")
	return sb.String(), nil
}
