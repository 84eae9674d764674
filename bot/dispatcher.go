package bot

import (
	"context"
	"log"
	"sync"
)

// ReplyFunc delivers the reply to ev back over its transport.
type ReplyFunc func(ev Event, r Reply)

type userQueue struct {
	events  []Event
	running bool
}

// Dispatcher 按用户串行处理事件：同一用户的事件按到达顺序逐个处理，
// 不同用户之间互不阻塞。
type Dispatcher struct {
	machine *Machine
	reply   ReplyFunc
	logger  *log.Logger

	mu     sync.Mutex
	queues map[string]*userQueue
	wg     sync.WaitGroup
}

func NewDispatcher(m *Machine, reply ReplyFunc, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{
		machine: m,
		reply:   reply,
		logger:  logger,
		queues:  make(map[string]*userQueue),
	}
}

// Submit queues ev for its user. It never blocks on handling.
func (d *Dispatcher) Submit(ctx context.Context, ev Event) {
	key := ev.Address.Key()
	d.mu.Lock()
	q, ok := d.queues[key]
	if !ok {
		q = &userQueue{}
		d.queues[key] = q
	}
	q.events = append(q.events, ev)
	start := !q.running
	q.running = true
	if start {
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if start {
		go d.drain(ctx, key, q)
	}
}

func (d *Dispatcher) drain(ctx context.Context, key string, q *userQueue) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		if len(q.events) == 0 {
			q.running = false
			delete(d.queues, key)
			d.mu.Unlock()
			return
		}
		ev := q.events[0]
		q.events = q.events[1:]
		d.mu.Unlock()

		d.machine.Serve(ctx, ev, func(r Reply) {
			if r.Text == "" {
				return
			}
			d.reply(ev, r)
		})
	}
}

// Wait blocks until all queued events have been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
