// Package bot implements the per-user conversation that gathers a request,
// runs the generation pipeline in the background and publishes drafts.
package bot

import (
	"fmt"
	"sync"
	"time"

	"devecho/pipeline"
)

// State 会话状态，决定下一条输入写入哪个字段。
type State int

const (
	Idle State = iota
	AwaitingInstructions
	AwaitingContent
	AwaitingAudience
	AwaitingDraftCount
	Processing
	SelectingDraft
	AwaitingPublishCredential
)

var stateNames = [...]string{
	"idle",
	"awaiting_instructions",
	"awaiting_content",
	"awaiting_audience",
	"awaiting_draft_count",
	"processing",
	"selecting_draft",
	"awaiting_publish_credential",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Address identifies a user on one transport.
type Address struct {
	Transport string `json:"transport"`
	UserID    string `json:"user_id"`
	ChatID    int64  `json:"chat_id,omitempty"`
}

// Key is unique across transports and safe to use as a storage namespace.
func (a Address) Key() string {
	return a.Transport + "-" + a.UserID
}

// Session 每个用户一份。字段写入受 State 约束，越序写入会 panic。
type Session struct {
	mu sync.Mutex

	Address           Address
	State             State
	Instructions      string
	ContentInput      string
	TargetAudience    string
	DraftCount        int
	PublishCredential string
	SelectedDraft     int
	LastRunID         string
	LastActive        time.Time

	pending *pipeline.Request
}

// Snapshot is a copy of the session fields, safe to read without the lock.
type Snapshot struct {
	Address        Address `json:"address"`
	State          string  `json:"state"`
	Instructions   string  `json:"instructions,omitempty"`
	ContentInput   string  `json:"content_input,omitempty"`
	TargetAudience string  `json:"target_audience,omitempty"`
	DraftCount     int     `json:"draft_count,omitempty"`
	HasCredential  bool    `json:"has_credential"`
	LastRunID      string  `json:"last_run_id,omitempty"`
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		Address:        s.Address,
		State:          s.State.String(),
		Instructions:   s.Instructions,
		ContentInput:   s.ContentInput,
		TargetAudience: s.TargetAudience,
		DraftCount:     s.DraftCount,
		HasCredential:  s.PublishCredential != "",
		LastRunID:      s.LastRunID,
	}
}

func (s *Session) mustBe(want State, field string) {
	if s.State != want {
		panic(fmt.Sprintf("bot: %s written in state %s, want %s", field, s.State, want))
	}
}

func (s *Session) setInstructions(v string) {
	s.mustBe(AwaitingInstructions, "instructions")
	s.Instructions = v
	s.State = AwaitingContent
}

func (s *Session) setContent(v string) {
	s.mustBe(AwaitingContent, "content")
	s.ContentInput = v
	s.State = AwaitingAudience
}

func (s *Session) setAudience(v string) {
	s.mustBe(AwaitingAudience, "audience")
	s.TargetAudience = v
	s.State = AwaitingDraftCount
}

func (s *Session) setDraftCount(n int) {
	s.mustBe(AwaitingDraftCount, "draft count")
	s.DraftCount = n
	s.State = Processing
}

func (s *Session) setCredential(token string) {
	s.mustBe(AwaitingPublishCredential, "publish credential")
	s.PublishCredential = token
	s.State = Idle
}

// linkCredential stores a token obtained through the sign-in link. It may
// arrive in any state and answers a pending credential prompt.
func (s *Session) linkCredential(token string) {
	s.PublishCredential = token
	if s.State == AwaitingPublishCredential {
		s.State = Idle
	}
}

// beginRequest clears the previous request and waits for instructions.
func (s *Session) beginRequest() {
	s.Instructions = ""
	s.ContentInput = ""
	s.TargetAudience = ""
	s.DraftCount = 0
	s.State = AwaitingInstructions
}

// SessionStore 按用户保存会话：首次接触时创建，空闲超时或显式重置时移除。
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time

	// beforeLock runs between lookup and locking in acquire; tests only.
	beforeLock func()
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Get returns the session for addr, creating it in Idle on first contact.
func (st *SessionStore) Get(addr Address) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	key := addr.Key()
	s, ok := st.sessions[key]
	if !ok {
		s = &Session{Address: addr, State: Idle, LastActive: st.now()}
		st.sessions[key] = s
	}
	return s
}

// acquire returns the session for addr with its lock held. A session that was
// evicted or reset before the lock was taken is dropped and looked up again.
func (st *SessionStore) acquire(addr Address) *Session {
	key := addr.Key()
	for {
		s := st.Get(addr)
		if st.beforeLock != nil {
			st.beforeLock()
		}
		s.mu.Lock()
		st.mu.Lock()
		live := st.sessions[key] == s
		st.mu.Unlock()
		if live {
			return s
		}
		s.mu.Unlock()
	}
}

// Lookup returns an existing session without creating one.
func (st *SessionStore) Lookup(key string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[key]
	return s, ok
}

// Snapshot returns a copy of the session under key.
func (st *SessionStore) Snapshot(key string) (Snapshot, bool) {
	s, ok := st.Lookup(key)
	if !ok {
		return Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), true
}

// Reset drops the session under key unless a run is in flight.
func (st *SessionStore) Reset(key string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[key]
	if !ok {
		return false
	}
	if !s.mu.TryLock() {
		return false
	}
	defer s.mu.Unlock()
	if s.State == Processing {
		return false
	}
	delete(st.sessions, key)
	return true
}

// EvictIdle removes sessions untouched for longer than maxIdle. Sessions that
// are processing or currently handling an event are kept.
func (st *SessionStore) EvictIdle(maxIdle time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	cutoff := st.now().Add(-maxIdle)
	n := 0
	for key, s := range st.sessions {
		if !s.mu.TryLock() {
			continue
		}
		if s.State != Processing && s.LastActive.Before(cutoff) {
			delete(st.sessions, key)
			n++
		}
		s.mu.Unlock()
	}
	return n
}

func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

func (st *SessionStore) touch(s *Session) {
	s.LastActive = st.now()
}
