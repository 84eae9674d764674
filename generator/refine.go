package generator

import (
	"context"
	"errors"
	"fmt"
	"log"

	"devecho/classify"
	"devecho/shorten"
)

// ErrInvalidDraftCount is returned when fewer than one draft is requested.
var ErrInvalidDraftCount = errors.New("draft count must be a positive integer")

// Decide 是唯一的出口判断：稿件数达到目标即结束，否则进入评审。
func Decide(draftsSoFar, target int) Step {
	if draftsSoFar >= target {
		return StepDone
	}
	return StepCritique
}

// Input 描述一次精修运行。
type Input struct {
	Answer     string
	Audience   string
	Tone       string
	DraftCount int
	Kind       classify.Kind
	// Sources are the discovered source URLs, first one wins.
	Sources []string
}

// Output 包含最终稿件以及循环结束时的累积状态。
type Output struct {
	Posts []PostDraft
	State DraftState
	// Trace records every visited step in order.
	Trace []Step
}

// Refiner runs the Edit → Write → Decide → {Done | Critique → Write} loop.
type Refiner struct {
	agent     *Agent
	shortener shorten.Shortener
	logger    *log.Logger
	Width     int
}

func NewRefiner(agent *Agent, shortener shorten.Shortener, logger *log.Logger) (*Refiner, error) {
	if agent == nil {
		return nil, errors.New("agent is required")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Refiner{agent: agent, shortener: shortener, logger: logger, Width: WrapWidth}, nil
}

// Run 执行完整的编辑/写作/评审循环，任一模型调用失败即终止。
func (r *Refiner) Run(ctx context.Context, in Input) (Output, error) {
	if in.DraftCount <= 0 {
		return Output{}, fmt.Errorf("%w: got %d", ErrInvalidDraftCount, in.DraftCount)
	}
	tone := NormalizeTone(in.Tone)
	sources := r.resolveSources(ctx, in.Kind, in.Sources)

	var (
		out    Output
		state  DraftState
		edited string
		err    error
	)
	step := StepEdit
	for step != StepDone {
		out.Trace = append(out.Trace, step)
		switch step {
		case StepEdit:
			edited, err = r.agent.Edit(ctx, in.Answer, tone)
			if err != nil {
				return Output{}, err
			}
			step = StepWrite
		case StepWrite:
			draft, err := r.agent.Write(ctx, WriteInput{
				Edited:    edited,
				Audience:  in.Audience,
				Tone:      tone,
				Feedback:  state.Feedback,
				Sources:   sources,
				HasDrafts: len(state.Drafts) > 0,
			})
			if err != nil {
				return Output{}, err
			}
			state.Drafts = append(state.Drafts, draft)
			step = StepDecide
		case StepDecide:
			step = Decide(len(state.Drafts), in.DraftCount)
		case StepCritique:
			fb, err := r.agent.Critique(ctx, edited, state.Drafts[len(state.Drafts)-1], in.Audience, tone)
			if err != nil {
				return Output{}, err
			}
			state.Feedback = &fb
			step = StepWrite
		}
	}
	out.Trace = append(out.Trace, StepDone)

	out.State = state
	out.Posts = make([]PostDraft, len(state.Drafts))
	for i, d := range state.Drafts {
		out.Posts[i] = PostDraft{
			DraftNumber: i + 1,
			Content:     Wrap(d, r.Width),
			Tone:        tone,
			Sources:     sources,
		}
	}
	r.logger.Printf("[generator] tone=%s drafts=%d sources=%d", tone, len(out.Posts), len(sources))
	return out, nil
}

// resolveSources 话题输入不带来源；否则只保留第一个来源并尝试缩短。
func (r *Refiner) resolveSources(ctx context.Context, kind classify.Kind, found []string) []string {
	if kind == classify.TopicSource || len(found) == 0 {
		return []string{}
	}
	short, err := shorten.OrOriginal(ctx, r.shortener, found[0])
	if err != nil {
		r.logger.Printf("[generator] shorten %s failed, keeping original: %v", found[0], err)
	}
	return []string{short}
}
