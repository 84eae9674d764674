package generator

import "devecho/store"

var toneOrder = []string{"professional", "casual", "educational", "persuasive"}

// TonePrompts maps a tone name to its style instructions.
var TonePrompts = map[string]string{
	"professional": `Write in a clear, authoritative tone. Use industry terminology appropriately.
Maintain a balanced perspective and back statements with evidence.
Be concise and direct while maintaining formality.`,

	"casual": `Write in a conversational, approachable tone.
Use simple language and occasional humor where appropriate.
Be friendly and relatable while still informative.`,

	"educational": `Write in an instructive, explanatory tone.
Break down complex concepts into digestible information.
Use examples and analogies to illustrate points.`,

	"persuasive": `Write in a compelling, convincing tone.
Emphasize benefits and opportunities.
Use strong calls-to-action and emphasize value propositions.`,
}

// Tones lists the supported tones in display order.
func Tones() []string {
	out := make([]string, len(toneOrder))
	copy(out, toneOrder)
	return out
}

func IsTone(name string) bool {
	_, ok := TonePrompts[name]
	return ok
}

// NormalizeTone maps unknown names to the default tone.
func NormalizeTone(name string) string {
	if IsTone(name) {
		return name
	}
	return store.DefaultTone
}
