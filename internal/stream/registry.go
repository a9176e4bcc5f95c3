package stream

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Event is one progress update pushed to a user's stream. Snapshot carries
// the session state as of the update, so consumers never read the store.
type Event struct {
	Kind         string            `json:"kind"`
	CurrentStep  int               `json:"current_step"`
	CurrentStage string            `json:"current_stage,omitempty"`
	Note         string            `json:"note,omitempty"`
	IsProcessing bool              `json:"is_processing"`
	AgentOutputs map[string]string `json:"agent_outputs,omitempty"`
	FinalResult  string            `json:"final_result,omitempty"`
	Error        string            `json:"error,omitempty"`
	At           time.Time         `json:"at"`
}

const (
	KindProgress = "progress"
	KindComplete = "complete"
	KindError    = "error"
)

// Registry owns one ordered event queue per user. Queues are created when a
// session first appears and removed when the reaper evicts it; publishing to
// a removed queue is a logged no-op.
type Registry struct {
	mu     sync.RWMutex
	queues map[string]*queue
	logger *log.Logger
}

func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(log.Writer(), "[STREAM] ", log.LstdFlags)
	}
	return &Registry{queues: make(map[string]*queue), logger: logger}
}

// Register ensures a queue exists for the user.
func (r *Registry) Register(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[userID]; !ok {
		r.queues[userID] = newQueue()
	}
}

// Publish appends an event to the user's queue, preserving publish order.
// Events for evicted users are dropped.
func (r *Registry) Publish(userID string, ev Event) {
	r.mu.RLock()
	q, ok := r.queues[userID]
	r.mu.RUnlock()
	if !ok {
		r.logger.Printf("dropping %s event for evicted session %s", ev.Kind, userID)
		return
	}
	q.push(ev)
}

// Subscribe returns a consumer for the user's queue, creating the queue when
// absent. A subscription drains events already buffered before it attached.
func (r *Registry) Subscribe(userID string) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.queues[userID]
	if !ok {
		q = newQueue()
		r.queues[userID] = q
	}
	return &Subscription{queue: q}
}

// Remove drops the user's queue and any buffered events.
func (r *Registry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if q, ok := r.queues[userID]; ok {
		q.close()
		delete(r.queues, userID)
	}
}

// Len reports how many queues are live, for debug output.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.queues)
}

// queue is an unbounded FIFO with a single wakeup channel. A slice rather
// than a buffered channel, so publishers never block and never drop under a
// slow consumer.
type queue struct {
	mu     sync.Mutex
	events []Event
	notify chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (Event, bool, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return Event{}, false, q.closed
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true, q.closed
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.events = nil
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Subscription reads a user's events in publish order.
type Subscription struct {
	queue *queue
}

// ErrQueueClosed is returned once the reaper removed the user's queue.
var ErrQueueClosed = errors.New("event queue closed")

// Next returns the next buffered event, waiting up to wait when the queue is
// empty. ok=false with a nil error means the wait elapsed with nothing to
// send, which is the heartbeat case.
func (s *Subscription) Next(ctx context.Context, wait time.Duration) (Event, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		ev, ok, closed := s.queue.pop()
		if ok {
			return ev, true, nil
		}
		if closed {
			return Event{}, false, ErrQueueClosed
		}
		select {
		case <-ctx.Done():
			return Event{}, false, ctx.Err()
		case <-timer.C:
			return Event{}, false, nil
		case <-s.queue.notify:
		}
	}
}
