package bot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"devecho/generator"
	"devecho/pipeline"
	"devecho/publisher"
)

// DefaultMaxDrafts caps the draft count a user may request.
const DefaultMaxDrafts = 10

// Pipeline runs generation requests and serves stored drafts.
type Pipeline interface {
	Run(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (pipeline.Result, error)
	LatestPosts(ctx context.Context, userID string) ([]generator.PostDraft, error)
}

// Publisher validates credentials and posts drafts.
type Publisher interface {
	FetchIdentity(ctx context.Context, token string) (publisher.Identity, error)
	PublishPost(ctx context.Context, token, authorID, text string) (publisher.PostResult, error)
}

// Linker runs LinkedIn's authorization-code sign-in.
type Linker interface {
	AuthorizeURL(state string) string
	Exchange(ctx context.Context, code string) (string, error)
}

// ErrUnknownLink is returned for a sign-in state that was never issued, was
// already used or has expired.
var ErrUnknownLink = errors.New("unknown or expired sign-in link")

// linkTTL bounds how long a sign-in link stays valid.
const linkTTL = 15 * time.Minute

type pendingLink struct {
	addr    Address
	expires time.Time
}

// ToneSetting is the process wide tone config.
type ToneSetting interface {
	Get() string
	Set(tone string) error
}

// Button is an inline choice; Data comes back as Event.Callback. A button
// with a URL opens the link instead.
type Button struct {
	Label string `json:"label"`
	Data  string `json:"data,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Reply is one outbound message.
type Reply struct {
	Text    string     `json:"text"`
	Buttons [][]Button `json:"buttons,omitempty"`
}

// Event is one inbound user message or button press.
type Event struct {
	Address   Address
	FirstName string
	Text      string
	// Callback is set for button presses.
	Callback string
	// CallbackID and MessageID refer back to the transport's own objects.
	CallbackID string
	MessageID  int
}

// Config wires a Machine.
type Config struct {
	Sessions    *SessionStore
	Pipeline    Pipeline
	Publisher   Publisher
	Linker      Linker
	Tones       ToneSetting
	Notifier    Notifier
	MaxDrafts   int
	Attribution string
	Logger      *log.Logger
}

// Machine 驱动每个用户的会话状态机。每个入站事件最多触发一次状态迁移和一条回复。
type Machine struct {
	sessions    *SessionStore
	pipeline    Pipeline
	publisher   Publisher
	linker      Linker
	tones       ToneSetting
	notifier    Notifier
	maxDrafts   int
	attribution string
	logger      *log.Logger
	now         func() time.Time

	linkMu sync.Mutex
	links  map[string]pendingLink

	runs sync.WaitGroup
}

func NewMachine(cfg Config) (*Machine, error) {
	if cfg.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if cfg.Tones == nil {
		return nil, errors.New("tone setting is required")
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionStore()
	}
	if cfg.MaxDrafts <= 0 {
		cfg.MaxDrafts = DefaultMaxDrafts
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Machine{
		sessions:    cfg.Sessions,
		pipeline:    cfg.Pipeline,
		publisher:   cfg.Publisher,
		linker:      cfg.Linker,
		tones:       cfg.Tones,
		notifier:    cfg.Notifier,
		maxDrafts:   cfg.MaxDrafts,
		attribution: cfg.Attribution,
		logger:      cfg.Logger,
		now:         time.Now,
		links:       make(map[string]pendingLink),
	}, nil
}

func (m *Machine) Sessions() *SessionStore { return m.sessions }

// Wait blocks until every background run has finished.
func (m *Machine) Wait() { m.runs.Wait() }

// Handle applies ev to the user's session and returns the reply to send.
// A run scheduled by ev starts right after the reply is computed.
func (m *Machine) Handle(ctx context.Context, ev Event) Reply {
	var out Reply
	m.Serve(ctx, ev, func(r Reply) { out = r })
	return out
}

// Serve applies ev, hands the reply to send, and only then starts any run the
// event scheduled, so progress messages never overtake the reply.
func (m *Machine) Serve(ctx context.Context, ev Event, send func(Reply)) {
	reply, pending := m.apply(ctx, ev)
	send(reply)
	if pending != nil {
		m.startRun(ev.Address, *pending)
	}
}

func (m *Machine) apply(ctx context.Context, ev Event) (Reply, *pipeline.Request) {
	s := m.sessions.acquire(ev.Address)
	defer s.mu.Unlock()
	m.sessions.touch(s)

	var reply Reply
	if ev.Callback != "" {
		reply = m.handleCallback(ctx, s, ev.Callback)
	} else if text := strings.TrimSpace(ev.Text); strings.HasPrefix(text, "/") {
		reply = m.handleCommand(ctx, s, text, ev.FirstName)
	} else {
		reply = m.handleText(ctx, s, text)
	}
	pending := s.pending
	s.pending = nil
	if pending != nil {
		m.runs.Add(1)
	}
	return reply, pending
}

// parseCommand turns "/new@devecho_bot args" into ("new", "args").
func parseCommand(text string) (string, string) {
	cmd, args, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	cmd, _, _ = strings.Cut(cmd, "@")
	return strings.ToLower(cmd), strings.TrimSpace(args)
}

func (m *Machine) handleCommand(ctx context.Context, s *Session, text, firstName string) Reply {
	cmd, _ := parseCommand(text)
	switch cmd {
	case "start":
		if s.State == Processing {
			return Reply{Text: busy}
		}
		s.State = Idle
		return Reply{Text: greeting(firstName)}
	case "help":
		return Reply{Text: helpText}
	case "new":
		if s.State == Processing {
			return Reply{Text: busy}
		}
		s.beginRequest()
		return Reply{Text: askInstructions}
	case "tone":
		return m.toneMenu()
	case "tones":
		return m.toneList()
	case "upload", "upload_linkedin":
		if s.State == Processing {
			return Reply{Text: busy}
		}
		return m.listDrafts(ctx, s)
	case "linkedin":
		return m.connectLink(s)
	case "cancel":
		if s.State == Processing {
			return Reply{Text: "A run cannot be cancelled once started. You'll get the result shortly."}
		}
		s.State = Idle
		return Reply{Text: "Cancelled. Use /new to start again."}
	default:
		return Reply{Text: fallbackText}
	}
}

func (m *Machine) handleText(ctx context.Context, s *Session, text string) Reply {
	switch s.State {
	case AwaitingInstructions:
		s.setInstructions(text)
		return Reply{Text: askContent}
	case AwaitingContent:
		s.setContent(text)
		return Reply{Text: askAudience}
	case AwaitingAudience:
		s.setAudience(text)
		return Reply{Text: askDraftCount}
	case AwaitingDraftCount:
		n, err := strconv.Atoi(text)
		if err != nil || n <= 0 || n > m.maxDrafts {
			return Reply{Text: invalidCount(m.maxDrafts)}
		}
		s.setDraftCount(n)
		s.pending = &pipeline.Request{
			UserID:       s.Address.Key(),
			Instructions: s.Instructions,
			Content:      s.ContentInput,
			Audience:     s.TargetAudience,
			DraftCount:   s.DraftCount,
		}
		return Reply{Text: processing}
	case Processing:
		return Reply{Text: busy}
	case AwaitingPublishCredential:
		return m.verifyCredential(ctx, s, text)
	case SelectingDraft:
		return Reply{Text: "Please pick a post using the buttons above, or /cancel."}
	default:
		return Reply{Text: fallbackText}
	}
}

func (m *Machine) toneMenu() Reply {
	current := m.tones.Get()
	var rows [][]Button
	for _, t := range generator.Tones() {
		label := titleCase(t)
		if t == current {
			label = "✅ " + label
		}
		rows = append(rows, []Button{{Label: label, Data: "tone:" + t}})
	}
	return Reply{Text: "Select a tone for your posts:", Buttons: rows}
}

func (m *Machine) toneList() Reply {
	current := m.tones.Get()
	var sb strings.Builder
	sb.WriteString("Available tones:\n")
	for _, t := range generator.Tones() {
		marker := "- "
		if t == current {
			marker = "✅ "
		}
		sb.WriteString(marker + titleCase(t) + "\n")
	}
	sb.WriteString("\nUse /tone to change it.")
	return Reply{Text: sb.String()}
}

func (m *Machine) listDrafts(ctx context.Context, s *Session) Reply {
	posts, err := m.pipeline.LatestPosts(ctx, s.Address.Key())
	if errors.Is(err, pipeline.ErrNoPosts) {
		return Reply{Text: noPosts}
	}
	if err != nil {
		m.logger.Printf("[bot] load posts for %s: %v", s.Address.Key(), err)
		return Reply{Text: fmt.Sprintf("Error: %v", err)}
	}
	var rows [][]Button
	for i := range posts {
		rows = append(rows, []Button{{Label: fmt.Sprintf("Post %d", i+1), Data: fmt.Sprintf("post:%d", i)}})
	}
	s.State = SelectingDraft
	return Reply{Text: "Select a post to upload to LinkedIn:", Buttons: rows}
}

func (m *Machine) handleCallback(ctx context.Context, s *Session, data string) Reply {
	kind, arg, _ := strings.Cut(data, ":")
	switch kind {
	case "tone":
		if !generator.IsTone(arg) {
			return Reply{Text: "Unknown tone."}
		}
		if err := m.tones.Set(arg); err != nil {
			m.logger.Printf("[bot] set tone: %v", err)
			return Reply{Text: fmt.Sprintf("❌ Could not save tone: %v", err)}
		}
		return Reply{Text: fmt.Sprintf("Tone set to: %s ✅", titleCase(arg))}
	case "post":
		return m.selectDraft(ctx, s, arg)
	case "confirm":
		return m.confirmPublish(ctx, s, arg)
	case "cancel":
		if s.State == SelectingDraft || s.State == AwaitingPublishCredential {
			s.State = Idle
		}
		return Reply{Text: "LinkedIn posting cancelled."}
	default:
		return Reply{Text: fallbackText}
	}
}

func (m *Machine) draftAt(ctx context.Context, s *Session, arg string) (generator.PostDraft, Reply, bool) {
	idx, err := strconv.Atoi(arg)
	if err != nil {
		return generator.PostDraft{}, Reply{Text: "Invalid post selection."}, false
	}
	posts, err := m.pipeline.LatestPosts(ctx, s.Address.Key())
	if errors.Is(err, pipeline.ErrNoPosts) {
		s.State = Idle
		return generator.PostDraft{}, Reply{Text: noPosts}, false
	}
	if err != nil {
		return generator.PostDraft{}, Reply{Text: fmt.Sprintf("Error selecting post: %v", err)}, false
	}
	if idx < 0 || idx >= len(posts) {
		return generator.PostDraft{}, Reply{Text: "Invalid post selection."}, false
	}
	s.SelectedDraft = idx
	return posts[idx], Reply{}, true
}

func (m *Machine) selectDraft(ctx context.Context, s *Session, arg string) Reply {
	if s.State != SelectingDraft {
		return Reply{Text: "This selection has expired. Use /upload again."}
	}
	post, fail, ok := m.draftAt(ctx, s, arg)
	if !ok {
		return fail
	}
	if s.PublishCredential == "" {
		s.State = AwaitingPublishCredential
		return Reply{Text: askCredential}
	}
	return confirmPrompt(post, s.SelectedDraft)
}

func confirmPrompt(post generator.PostDraft, idx int) Reply {
	return Reply{
		Text: fmt.Sprintf("You selected this post:\n\n%s\n\nConfirm posting to LinkedIn?", post.Content),
		Buttons: [][]Button{{
			{Label: "✅ Confirm", Data: fmt.Sprintf("confirm:%d", idx)},
			{Label: "❌ Cancel", Data: "cancel"},
		}},
	}
}

func (m *Machine) verifyCredential(ctx context.Context, s *Session, token string) Reply {
	if m.publisher == nil {
		s.State = Idle
		return Reply{Text: "Publishing is not configured."}
	}
	id, err := m.publisher.FetchIdentity(ctx, token)
	if errors.Is(err, publisher.ErrInvalidCredential) {
		return Reply{Text: "❌ Invalid LinkedIn access token. Please provide a valid token."}
	}
	if err != nil {
		return Reply{Text: fmt.Sprintf("❌ Error verifying token: %v", err)}
	}
	s.setCredential(token)
	m.logger.Printf("[bot] %s linked LinkedIn member %s", s.Address.Key(), id.ID)
	return Reply{Text: fmt.Sprintf("✅ LinkedIn access token verified for %s. You can now use /upload to post content.", id.Name)}
}

// connectLink issues a one-time sign-in link for the session's user.
func (m *Machine) connectLink(s *Session) Reply {
	if m.linker == nil {
		return Reply{Text: "LinkedIn sign-in is not configured. Use /upload and send an access token instead."}
	}
	state := uuid.NewString()
	now := m.now()
	m.linkMu.Lock()
	for k, l := range m.links {
		if now.After(l.expires) {
			delete(m.links, k)
		}
	}
	m.links[state] = pendingLink{addr: s.Address, expires: now.Add(linkTTL)}
	m.linkMu.Unlock()
	return Reply{
		Text:    askConnect,
		Buttons: [][]Button{{{Label: "Connect LinkedIn Account", URL: m.linker.AuthorizeURL(state)}}},
	}
}

// CompleteLink finishes a sign-in started with /linkedin: it exchanges code
// for a token, verifies it and stores it on the user's session. The user is
// told the outcome through the notifier.
func (m *Machine) CompleteLink(ctx context.Context, state, code string) (publisher.Identity, error) {
	if m.linker == nil {
		return publisher.Identity{}, errors.New("linkedin sign-in is not configured")
	}
	m.linkMu.Lock()
	l, ok := m.links[state]
	delete(m.links, state)
	m.linkMu.Unlock()
	if !ok || m.now().After(l.expires) {
		return publisher.Identity{}, ErrUnknownLink
	}

	token, err := m.linker.Exchange(ctx, code)
	if err != nil {
		m.logger.Printf("[bot] sign-in for %s: %v", l.addr.Key(), err)
		m.notify(ctx, l.addr, Reply{Text: "❌ Could not connect your LinkedIn account. Please try /linkedin again."})
		return publisher.Identity{}, err
	}
	var id publisher.Identity
	if m.publisher != nil {
		id, err = m.publisher.FetchIdentity(ctx, token)
		if err != nil {
			m.logger.Printf("[bot] verify linked token for %s: %v", l.addr.Key(), err)
			m.notify(ctx, l.addr, Reply{Text: fmt.Sprintf("❌ Error verifying token: %v", err)})
			return publisher.Identity{}, err
		}
	}

	s := m.sessions.acquire(l.addr)
	s.linkCredential(token)
	m.sessions.touch(s)
	s.mu.Unlock()

	m.logger.Printf("[bot] %s linked LinkedIn member %s via sign-in", l.addr.Key(), id.ID)
	m.notify(ctx, l.addr, Reply{Text: fmt.Sprintf("✅ LinkedIn account connected for %s. You can now use /upload to post content.", id.Name)})
	return id, nil
}

func (m *Machine) confirmPublish(ctx context.Context, s *Session, arg string) Reply {
	if s.State != SelectingDraft {
		return Reply{Text: "This selection has expired. Use /upload again."}
	}
	if s.PublishCredential == "" {
		s.State = AwaitingPublishCredential
		return Reply{Text: askCredential}
	}
	if m.publisher == nil {
		s.State = Idle
		return Reply{Text: "Publishing is not configured."}
	}
	post, fail, ok := m.draftAt(ctx, s, arg)
	if !ok {
		return fail
	}

	id, err := m.publisher.FetchIdentity(ctx, s.PublishCredential)
	if err == nil {
		var res publisher.PostResult
		res, err = m.publisher.PublishPost(ctx, s.PublishCredential, id.ID, publisher.Compose(post.Content, m.attribution))
		if err == nil {
			s.State = Idle
			m.logger.Printf("[bot] %s published draft %d as %s", s.Address.Key(), post.DraftNumber, res.ID)
			return Reply{Text: fmt.Sprintf("✅ Successfully posted to LinkedIn!\nPost ID: %s", res.ID)}
		}
	}
	if errors.Is(err, publisher.ErrInvalidCredential) {
		s.PublishCredential = ""
		s.State = AwaitingPublishCredential
		return Reply{Text: "❌ LinkedIn rejected your access token. Please send a new one."}
	}
	s.State = Idle
	return Reply{Text: publishFailure(err)}
}

// startRun 在后台执行流水线，不阻塞该用户的事件处理。runs 计数已在 apply 中加一。
func (m *Machine) startRun(addr Address, req pipeline.Request) {
	go func() {
		defer m.runs.Done()
		ctx := context.Background()
		res, err := m.pipeline.Run(ctx, req, func(stage pipeline.Stage, i, total int) {
			m.notify(ctx, addr, Reply{Text: progressText(stage, i, total)})
		})
		m.finishRun(ctx, addr, res, err)
	}()
}

// finishRun resets the session to Idle whatever the outcome, then reports.
func (m *Machine) finishRun(ctx context.Context, addr Address, res pipeline.Result, err error) {
	s := m.sessions.acquire(addr)
	s.State = Idle
	if err == nil {
		s.LastRunID = res.RunID
	}
	m.sessions.touch(s)
	s.mu.Unlock()

	if err != nil {
		m.logger.Printf("[bot] run for %s failed: %v", addr.Key(), err)
		m.notify(ctx, addr, Reply{Text: runFailure(err)})
		return
	}
	m.notify(ctx, addr, Reply{Text: "✅ Posts generated successfully!"})
	if res.Warning != nil {
		m.notify(ctx, addr, Reply{Text: fmt.Sprintf("⚠️ The source could not be ingested, posts are based on limited data: %v", res.Warning)})
	}
	for _, p := range res.Posts {
		m.notify(ctx, addr, Reply{Text: postText(p)})
	}
	m.notify(ctx, addr, Reply{Text: nextSteps})
}

func (m *Machine) notify(ctx context.Context, addr Address, r Reply) {
	if err := m.notifier.Notify(ctx, addr, r); err != nil {
		m.logger.Printf("[bot] notify %s: %v", addr.Key(), err)
	}
}
