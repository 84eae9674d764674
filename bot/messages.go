package bot

import (
	"errors"
	"fmt"
	"strings"

	"devecho/collector"
	"devecho/generator"
	"devecho/llm"
	"devecho/pipeline"
	"devecho/publisher"
	"devecho/store"
)

const helpText = `📱 Social Media Assistant Bot 📱

Commands:
/new - Start a new post generation
/tone - Change the tone of your posts
/tones - List the available tones
/upload - Upload an approved post to LinkedIn
/linkedin - Connect your LinkedIn account
/cancel - Abort the current request
/help - Show this help message

How to use:
1. Type /new to start
2. Enter your instructions (what you want posts about)
3. Provide your content (URL, GitHub repo, or topic)
4. Then, you'll be asked for the target audience and number of drafts
5. Wait for the bot to generate posts
6. Use /upload to post a draft to LinkedIn`

const fallbackText = `I'm not sure what you want to do. Try using one of these commands:
/new - Start a new post generation
/tone - Change the tone of your posts
/upload - Upload an approved post to LinkedIn
/help - Show this help message`

const (
	askInstructions = `Let's create a new post! 📝

Please enter your instructions. For example:
- Create an informative post about AI frameworks
- Write a technical overview of this GitHub project
- Generate content highlighting key features`

	askContent = `Great! Now please provide your content. This can be:
- A URL (e.g., https://example.com/article)
- A GitHub repository URL (e.g., https://github.com/username/repo)
- A topic (e.g., Artificial Intelligence)`

	askAudience   = "Please specify the target audience for your posts."
	askDraftCount = "How many drafts would you like to generate? (e.g., 3)"
	processing    = "Processing your request... This may take a minute. ⏳"
	busy          = "⏳ Your posts are still being generated. Please wait for this run to finish."
	askCredential = "You need to set up LinkedIn first. Please send your LinkedIn access token."
	askConnect    = `To post directly to LinkedIn, you need to connect your account.

Click the button below to authorize this app:`
	noPosts   = "No posts available. Please generate posts first using /new command."
	nextSteps = `What would you like to do next?
- Use /upload to publish a post
- Use /new to create different posts
- Use /tone to change the tone`
)

func greeting(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Hi %s! I'm your AI Social Media Assistant.\n\n"+
		"I can help you create engaging posts for LinkedIn based on various sources.\n\n"+
		"Use /help to see available commands.", name)
}

func invalidCount(limit int) string {
	return fmt.Sprintf("Please provide a valid number for drafts (a whole number from 1 to %d).", limit)
}

var stageLabels = map[pipeline.Stage]string{
	pipeline.StageCollecting: "Collecting data... 📊",
	pipeline.StageRetrieving: "Analyzing and retrieving information... 🔍",
	pipeline.StageGenerating: "Generating posts... ✍️",
}

func progressText(stage pipeline.Stage, index, total int) string {
	return fmt.Sprintf("Step %d/%d: %s", index, total, stageLabels[stage])
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func postText(p generator.PostDraft) string {
	return fmt.Sprintf("Post %d (Tone: %s)\n\n%s", p.DraftNumber, titleCase(p.Tone), p.Content)
}

// runFailure 把错误归类成一条给用户看的消息。
func runFailure(err error) string {
	var (
		acq *collector.AcquisitionError
		te  *llm.TransformError
		pe  *store.PersistenceError
	)
	switch {
	case errors.Is(err, generator.ErrInvalidDraftCount):
		return "❌ " + err.Error()
	case errors.As(err, &acq):
		return fmt.Sprintf("❌ Could not fetch your content (%s): %v", acq.Kind, acq.Err)
	case errors.As(err, &te):
		return fmt.Sprintf("❌ Error generating posts: the language model failed: %v", te.Err)
	case errors.As(err, &pe):
		return fmt.Sprintf("❌ Error generating posts: could not save results: %v", pe.Err)
	default:
		return fmt.Sprintf("❌ Error generating posts: %v", err)
	}
}

func publishFailure(err error) string {
	var pe *publisher.PublishError
	if errors.As(err, &pe) && pe.Status != 0 {
		return fmt.Sprintf("❌ Failed to post to LinkedIn (status %d): %v", pe.Status, pe.Err)
	}
	return fmt.Sprintf("❌ Failed to post to LinkedIn. Error: %v", err)
}
