package generator

import (
	"context"
	"errors"

	"devecho/llm"
)

// Agent 负责执行三个会调用模型的步骤：Editor、Writer、Critique。
type Agent struct {
	llm llm.Client
}

func NewAgent(client llm.Client) (*Agent, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: client}, nil
}

// Edit 按语气改写检索答案。
func (a *Agent) Edit(ctx context.Context, answer, tone string) (string, error) {
	return a.complete(ctx, StepEdit, BuildEditorPrompt(answer, tone))
}

// Write 产出一篇新稿件。
func (a *Agent) Write(ctx context.Context, in WriteInput) (string, error) {
	return a.complete(ctx, StepWrite, BuildWriterPrompt(in))
}

// Critique 针对最新稿件给出反馈。
func (a *Agent) Critique(ctx context.Context, edited, draft, audience, tone string) (string, error) {
	return a.complete(ctx, StepCritique, BuildCritiquePrompt(edited, draft, audience, tone))
}

func (a *Agent) complete(ctx context.Context, step Step, prompt llm.Prompt) (string, error) {
	raw, err := a.llm.Complete(ctx, prompt)
	if err != nil {
		return "", &StepError{Step: step, Err: asTransformError(err)}
	}
	text, err := PostProcess(raw)
	if err != nil {
		return "", &StepError{Step: step, Err: &llm.TransformError{Provider: "llm", Err: err}}
	}
	return text, nil
}

func asTransformError(err error) error {
	var te *llm.TransformError
	if errors.As(err, &te) {
		return err
	}
	return &llm.TransformError{Provider: "llm", Err: err}
}
