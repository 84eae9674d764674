// Package server exposes the conversation machine as a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"sync"
	"time"

	"devecho/bot"
	"devecho/pipeline"
)

// Transport is the address transport name used for HTTP users.
const Transport = "web"

var userIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Server 把 HTTP 请求转换为会话事件，回复直接写回响应，
// 后台进度消息放入 outbox，由客户端轮询 /events 取走。
type Server struct {
	machine  *bot.Machine
	pipeline bot.Pipeline
	outbox   *Outbox
	logger   *log.Logger
}

// Outbox buffers notifications per user until they are polled.
type Outbox struct {
	mu     sync.Mutex
	events map[string][]bot.Reply
}

func NewOutbox() *Outbox {
	return &Outbox{events: make(map[string][]bot.Reply)}
}

// Notify implements bot.Notifier.
func (o *Outbox) Notify(_ context.Context, addr bot.Address, r bot.Reply) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	key := addr.Key()
	o.events[key] = append(o.events[key], r)
	return nil
}

// Drain returns and forgets everything queued for key.
func (o *Outbox) Drain(key string) []bot.Reply {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.events[key]
	delete(o.events, key)
	if out == nil {
		out = []bot.Reply{}
	}
	return out
}

func New(m *bot.Machine, p bot.Pipeline, outbox *Outbox, logger *log.Logger) (*Server, error) {
	if m == nil {
		return nil, errors.New("machine required")
	}
	if p == nil {
		return nil, errors.New("pipeline required")
	}
	if outbox == nil {
		outbox = NewOutbox()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{machine: m, pipeline: p, outbox: outbox, logger: logger}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/sessions/{user}/messages", s.handleMessage)
	mux.HandleFunc("GET /api/sessions/{user}", s.handleSession)
	mux.HandleFunc("DELETE /api/sessions/{user}", s.handleReset)
	mux.HandleFunc("GET /api/sessions/{user}/posts", s.handlePosts)
	mux.HandleFunc("GET /api/sessions/{user}/events", s.handleEvents)
	mux.HandleFunc("GET /linkedin/callback", s.handleLinkCallback)
	return logMiddleware(s.logger, mux)
}

// --- Handlers ---

type messageReq struct {
	Name     string `json:"name"`
	Text     string `json:"text"`
	Callback string `json:"callback"`
}

type messageResp struct {
	Reply bot.Reply `json:"reply"`
	State string    `json:"state"`
}

type eventsResp struct {
	Events []bot.Reply `json:"events"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	addr, ok := address(w, r)
	if !ok {
		return
	}
	var req messageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Text == "" && req.Callback == "" {
		http.Error(w, "text or callback required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	var resp messageResp
	ev := bot.Event{Address: addr, FirstName: req.Name, Text: req.Text, Callback: req.Callback}
	s.machine.Serve(ctx, ev, func(rep bot.Reply) {
		// The state is read before a scheduled run starts.
		resp.Reply = rep
		if snap, ok := s.machine.Sessions().Snapshot(addr.Key()); ok {
			resp.State = snap.State
		}
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	addr, ok := address(w, r)
	if !ok {
		return
	}
	snap, ok := s.machine.Sessions().Snapshot(addr.Key())
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	addr, ok := address(w, r)
	if !ok {
		return
	}
	key := addr.Key()
	if _, ok := s.machine.Sessions().Lookup(key); !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	if !s.machine.Sessions().Reset(key) {
		http.Error(w, "session is busy", http.StatusConflict)
		return
	}
	s.outbox.Drain(key)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	addr, ok := address(w, r)
	if !ok {
		return
	}
	posts, err := s.pipeline.LatestPosts(r.Context(), addr.Key())
	if errors.Is(err, pipeline.ErrNoPosts) {
		http.Error(w, "no posts generated yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Printf("[server] posts for %s: %v", addr.Key(), err)
		http.Error(w, "failed to load posts", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	addr, ok := address(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, eventsResp{Events: s.outbox.Drain(addr.Key())})
}

// handleLinkCallback is the OAuth redirect target for /linkedin sign-ins.
func (s *Server) handleLinkCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		s.logger.Printf("[server] linkedin sign-in denied: %s %s", e, q.Get("error_description"))
		http.Error(w, "LinkedIn authorization was not granted. You can close this page.", http.StatusBadRequest)
		return
	}
	state, code := q.Get("state"), q.Get("code")
	if state == "" || code == "" {
		http.Error(w, "state and code required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	id, err := s.machine.CompleteLink(ctx, state, code)
	switch {
	case errors.Is(err, bot.ErrUnknownLink):
		http.Error(w, "This sign-in link has expired. Send /linkedin again.", http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Could not connect your LinkedIn account.", http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "LinkedIn account connected for %s. You can return to the chat.\n", id.Name)
}

// --- Helpers ---

func address(w http.ResponseWriter, r *http.Request) (bot.Address, bool) {
	user := r.PathValue("user")
	if !userIDPattern.MatchString(user) {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return bot.Address{}, false
	}
	return bot.Address{Transport: Transport, UserID: user}, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func logMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Printf("[server] %s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start).Round(time.Millisecond))
	})
}
