package classify

import (
	"regexp"
	"strings"
)

// Kind 表示内容来源类型，决定采集策略。
type Kind string

const (
	RepositorySource Kind = "github_repo"
	WebSource        Kind = "url"
	TopicSource      Kind = "topic"
)

// repositoryHost marks code-hosting URLs; checked before the generic URL branch.
const repositoryHost = "github.com"

var urlPattern = regexp.MustCompile(
	`^(https?://)?` +
		`(([a-zA-Z0-9\-_]+\.)+[a-zA-Z]{2,}|` +
		`localhost|` +
		`(\d{1,3}\.){3}\d{1,3})` +
		`(:\d+)?(/[^\s]*)?$`,
)

// ClassifiedInput 是一次运行的分类结果，生成后不再修改。
type ClassifiedInput struct {
	Kind         Kind   `json:"type"`
	Payload      string `json:"input"`
	Instructions string `json:"instruction"`
}

// Classify maps raw user text onto a content source kind. It never fails.
func Classify(instructions, rawInput string) ClassifiedInput {
	input := strings.TrimSpace(rawInput)
	kind := TopicSource
	if urlPattern.MatchString(input) {
		kind = WebSource
		if strings.Contains(input, repositoryHost) {
			kind = RepositorySource
		}
	}
	return ClassifiedInput{
		Kind:         kind,
		Payload:      input,
		Instructions: instructions,
	}
}

// HasURL reports whether the payload is a fetchable address.
func (c ClassifiedInput) HasURL() bool {
	return c.Kind == RepositorySource || c.Kind == WebSource
}

// ParseKind accepts the persisted form of a kind; unknown values map to TopicSource.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case RepositorySource:
		return RepositorySource
	case WebSource:
		return WebSource
	default:
		return TopicSource
	}
}
