package generator

import (
	"errors"
	"regexp"
	"strings"

	"github.com/mitchellh/go-wordwrap"
)

// WrapWidth is the column drafts are wrapped at.
const WrapWidth = 80

// 模型常见的开场白，例如 "Here is a rewritten LinkedIn post:"。
var preambleRe = regexp.MustCompile(`(?i)^(sure[,!.]?\s*)?here(?:'s| is| are)\b[^\n]*\b(post|draft|version|feedback|rewrite)[^\n]*:\s*$`)

// PostProcess 去掉模型开场白并校验输出非空。
func PostProcess(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if first, rest, ok := strings.Cut(text, "\n"); ok {
		if preambleRe.MatchString(strings.TrimSpace(first)) {
			text = strings.TrimSpace(rest)
		}
	} else if preambleRe.MatchString(text) {
		text = ""
	}
	if text == "" {
		return "", errors.New("model returned empty text")
	}
	return text, nil
}

// Wrap wraps each line at width columns. Existing line breaks are kept.
func Wrap(text string, width int) string {
	if width <= 0 {
		width = WrapWidth
	}
	return wordwrap.WrapString(text, uint(width))
}
