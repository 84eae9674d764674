package generator

import "fmt"

// Step 是精修循环中的一个状态。
type Step int

const (
	StepEdit Step = iota
	StepWrite
	StepDecide
	StepCritique
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepEdit:
		return "edit"
	case StepWrite:
		return "write"
	case StepDecide:
		return "decide"
	case StepCritique:
		return "critique"
	case StepDone:
		return "done"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// DraftState 是一次运行内的累积器：稿件只追加，反馈整体替换。
type DraftState struct {
	Drafts []string `json:"drafts"`
	// Feedback 为 nil 表示尚未有评审意见。
	Feedback *string `json:"feedback,omitempty"`
}

// PostDraft 是最终对外输出的一篇稿件。
type PostDraft struct {
	DraftNumber int      `json:"draft_number"`
	Content     string   `json:"content"`
	Tone        string   `json:"tone"`
	Sources     []string `json:"sources"`
}

// StepError reports which step failed. The run is aborted; there is no retry.
type StepError struct {
	Step Step
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
