// Package events moves work from arbitrary goroutines and engine threads
// onto the plugin's single host loop.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/yllada/seaside-nm/common"
)

// fullPolicy decides what enqueue does when the queue is at capacity.
type fullPolicy int

const (
	// rejectWhenFull fails with common.ErrQueueFull once the handoff expires.
	rejectWhenFull fullPolicy = iota
	// overflowWhenFull appends past capacity once the handoff expires.
	overflowWhenFull
	// waitWhenFull waits for a slot until the caller's context ends.
	waitWhenFull
)

type entry struct {
	run func()
	// drop is called instead of run when the loop closes first. May be nil.
	drop func()
}

// Loop is a bounded single-consumer FIFO of tasks.
type Loop struct {
	size    int
	handoff time.Duration

	mu     sync.Mutex
	queue  []entry
	closed bool
	// space is closed and replaced whenever a slot frees up at capacity.
	space chan struct{}

	ready     chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewLoop creates a loop holding up to size pending tasks. handoff bounds
// how long a producer waits for a free slot when the queue is full.
func NewLoop(size int, handoff time.Duration) *Loop {
	if size <= 0 {
		size = common.DefaultQueueSize
	}
	return &Loop{
		size:    size,
		handoff: handoff,
		space:   make(chan struct{}),
		ready:   make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Post enqueues task and returns without waiting for it to run.
// It returns common.ErrQueueFull when no slot frees up within the handoff
// timeout and common.ErrLoopClosed after Close.
func (l *Loop) Post(task func()) error {
	return l.enqueue(context.Background(), entry{run: task}, rejectWhenFull)
}

// Submit enqueues task like Post but never loses it to a full queue: once
// the handoff expires the task is queued past capacity. If the loop closes
// before task runs, drop is called instead. Submit fails only with
// common.ErrLoopClosed, in which case neither function is called.
func (l *Loop) Submit(task, drop func()) error {
	return l.enqueue(context.Background(), entry{run: task, drop: drop}, overflowWhenFull)
}

// Do runs fn on the loop and waits for its result.
// It must not be called from inside a loop task.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if err := l.enqueue(ctx, entry{run: func() { result <- fn() }}, waitWhenFull); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return common.ErrLoopClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) enqueue(ctx context.Context, e entry, policy fullPolicy) error {
	var timeout <-chan time.Time
	expired := false
	if policy != waitWhenFull {
		if l.handoff > 0 {
			timer := time.NewTimer(l.handoff)
			defer timer.Stop()
			timeout = timer.C
		} else {
			expired = true
		}
	}

	for {
		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			return common.ErrLoopClosed
		}
		if len(l.queue) < l.size || (expired && policy == overflowWhenFull) {
			if len(l.queue) >= l.size {
				common.LogWarn("Events: queue full, holding %d tasks past capacity", len(l.queue)+1-l.size)
			}
			l.queue = append(l.queue, e)
			l.mu.Unlock()
			l.signal()
			return nil
		}
		if expired {
			l.mu.Unlock()
			return common.ErrQueueFull
		}
		space := l.space
		l.mu.Unlock()

		select {
		case <-space:
		case <-timeout:
			expired = true
		case <-l.done:
			return common.ErrLoopClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (l *Loop) signal() {
	select {
	case l.ready <- struct{}{}:
	default:
	}
}

func (l *Loop) pop() (entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || len(l.queue) == 0 {
		return entry{}, false
	}
	e := l.queue[0]
	l.queue[0] = entry{}
	l.queue = l.queue[1:]
	if len(l.queue) == l.size-1 {
		close(l.space)
		l.space = make(chan struct{})
	}
	return e, true
}

// Run drains the queue on the calling goroutine until ctx is cancelled or
// Close is called. Only one Run may be active.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		default:
		}

		if e, ok := l.pop(); ok {
			l.run(e)
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case <-l.ready:
		}
	}
}

// Drain runs every task queued at the time of the call, plus any they
// enqueue, and returns how many ran. It is meant for callers that own the
// loop goroutine themselves and must not overlap with Run.
func (l *Loop) Drain() int {
	n := 0
	for {
		e, ok := l.pop()
		if !ok {
			return n
		}
		l.run(e)
		n++
	}
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Close stops Run and rejects further work. Queued tasks do not run; their
// drop functions are called instead.
func (l *Loop) Close() {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		pending := l.queue
		l.queue = nil
		l.mu.Unlock()
		close(l.done)

		for _, e := range pending {
			if e.drop != nil {
				e.drop()
			}
		}
		if len(pending) > 0 {
			common.LogDebug("Events: discarded %d queued tasks on close", len(pending))
		}
	})
}

// Done is closed when the loop is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run(e entry) {
	defer func() {
		if r := recover(); r != nil {
			common.LogError("Events: task panicked: %v", r)
		}
	}()
	e.run()
}
