package bot

import (
	"context"
	"fmt"
	"sync"
)

// Notifier delivers messages that are not a direct reply, such as run progress.
type Notifier interface {
	Notify(ctx context.Context, addr Address, r Reply) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, addr Address, r Reply) error

func (f NotifierFunc) Notify(ctx context.Context, addr Address, r Reply) error {
	return f(ctx, addr, r)
}

// Router sends each notification to the notifier registered for its transport.
type Router struct {
	mu     sync.RWMutex
	routes map[string]Notifier
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]Notifier)}
}

func (r *Router) Register(transport string, n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes[transport] = n
}

func (r *Router) Notify(ctx context.Context, addr Address, reply Reply) error {
	r.mu.RLock()
	n, ok := r.routes[addr.Transport]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no notifier for transport %q", addr.Transport)
	}
	return n.Notify(ctx, addr, reply)
}
