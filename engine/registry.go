// Package engine provides the binding to the seaside engine module.
package engine

import "sync"

// sinkRegistry maps callback context tokens handed to the engine back to
// the session's ErrorSink. Tokens are never zero and never reused, so a
// late callback for a finished session misses instead of hitting another.
type sinkRegistry struct {
	mu    sync.Mutex
	next  uintptr
	sinks map[uintptr]ErrorSink
}

var callbacks = newSinkRegistry()

func newSinkRegistry() *sinkRegistry {
	return &sinkRegistry{sinks: make(map[uintptr]ErrorSink)}
}

func (r *sinkRegistry) register(sink ErrorSink) uintptr {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.sinks[r.next] = sink
	return r.next
}

func (r *sinkRegistry) lookup(token uintptr) (ErrorSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sink, ok := r.sinks[token]
	return sink, ok
}

func (r *sinkRegistry) unregister(token uintptr) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sinks, token)
}

// dispatch delivers a report to the sink registered under token, or
// releases it when the session is gone.
func (r *sinkRegistry) dispatch(token uintptr, report *Report) {
	sink, ok := r.lookup(token)
	if !ok {
		report.Release()
		return
	}
	sink(report)
}
