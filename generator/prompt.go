package generator

import (
	"fmt"
	"strings"

	"devecho/llm"
)

const editorPrompt = `Rewrite for maximum social media engagement:

- Use attention-grabbing, concise language
- Inject personality and humor
- Optimize formatting (short paragraphs)
- Encourage interaction (questions, calls-to-action)
- Ensure perfect grammar and spelling
- Rewrite from first person perspective, when talking to an audience

%s

Use only the information provided in the text. Think carefully.`

const writerPrompt = `Write a compelling LinkedIn post from the given text. Structure it as follows:

1. Eye-catching headline (5-7 words)
2. Identify a key problem or challenge
3. Provide a bullet list of key benefits/features
4. Highlight a clear benefit or solution
5. Conclude with a thought-provoking question

Output only the post itself. Do not open with a line such as "Here is a rewritten LinkedIn post:".

%s

Maintain a professional, informative tone. Avoid emojis and hashtags.
Keep the post concise (150-300 words) and relevant to the industry.
Focus on providing valuable insights or actionable takeaways that will resonate
with professionals in the field.

Make sure to include sources at the end of the post in a professional format.`

const critiquePrompt = `Your role is to analyze LinkedIn posts and provide actionable feedback to make them more engaging.
Focus on the following aspects:

1. Hook: Evaluate the opening line's ability to grab attention.
2. Structure: Assess the post's flow and readability.
3. Content value: Determine if the post provides useful information or insights.
4. Call-to-action: Check if there's a clear next step for readers.
5. Language: Suggest improvements in tone, style, and word choice.
6. Visual elements: Recommend additions or changes to images, videos, or formatting.
7. Tone match: Verify if the post matches the requested tone.
8. Sources: Ensure sources are properly included and formatted, main Source link should be in one line.

For each aspect, provide:
- A brief assessment (1-2 sentences)
- A specific suggestion for improvement
- A concise example of the suggested change

Conclude with an overall recommendation for the most impactful change the author can make to increase engagement.`

// BuildEditorPrompt 把检索答案改写为更适合社交平台的版本。
func BuildEditorPrompt(answer, tone string) llm.Prompt {
	return llm.Prompt{
		System: fmt.Sprintf(editorPrompt, TonePrompts[tone]),
		User:   "text:" + strings.TrimSpace(answer),
	}
}

// WriteInput 是 Writer 每次调用需要的上下文。
type WriteInput struct {
	Edited   string
	Audience string
	Tone     string
	Feedback *string
	Sources  []string
	// HasDrafts 为 true 时反馈才会生效。
	HasDrafts bool
}

// BuildWriterPrompt 生成一篇新稿件的提示词。
func BuildWriterPrompt(in WriteInput) llm.Prompt {
	var sb strings.Builder
	sb.WriteString("text:")
	sb.WriteString(in.Edited)
	if in.Feedback != nil && *in.Feedback != "" && in.HasDrafts {
		sb.WriteString("\nUse the feedback to improve it:\n")
		sb.WriteString(*in.Feedback)
	}
	sb.WriteString("\nTarget audience: ")
	sb.WriteString(in.Audience)
	if len(in.Sources) > 0 {
		sb.WriteString("\n\nSources available to reference:\n")
		sb.WriteString(strings.Join(in.Sources, "\n"))
	}
	sb.WriteString("\nwrite only the text for the post")

	return llm.Prompt{
		System: fmt.Sprintf(writerPrompt, TonePrompts[in.Tone]),
		User:   sb.String(),
	}
}

// BuildCritiquePrompt 针对最新一稿给出修改意见。
func BuildCritiquePrompt(edited, draft, audience, tone string) llm.Prompt {
	user := fmt.Sprintf("Full post:```%s```\nSuggested LinkedIn post (critique this):```%s```\nTarget audience: %s\nRequested tone: %s",
		edited, draft, audience, tone)
	return llm.Prompt{System: critiquePrompt, User: user}
}
