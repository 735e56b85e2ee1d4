// Package events moves work from arbitrary goroutines and engine threads
// onto the plugin's single host loop.
package events

import (
	"github.com/yllada/seaside-nm/common"
	"github.com/yllada/seaside-nm/engine"
)

// Handler processes engine reports on the host loop.
type Handler interface {
	HandleEngineReport(session string, report *engine.Report)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(session string, report *engine.Report)

// HandleEngineReport calls f.
func (f HandlerFunc) HandleEngineReport(session string, report *engine.Report) {
	f(session, report)
}

// Bridge hands engine reports from engine threads to the host loop.
type Bridge struct {
	loop    *Loop
	handler Handler
}

// NewBridge creates a bridge delivering to handler on loop.
func NewBridge(loop *Loop, handler Handler) *Bridge {
	return &Bridge{loop: loop, handler: handler}
}

// ReportAsyncError enqueues report for session and returns after at most
// the loop's handoff timeout. Safe to call from any thread. A full queue
// never loses the report. It is released after the handler has run, or
// when the loop closes first.
func (b *Bridge) ReportAsyncError(session string, report *engine.Report) {
	err := b.loop.Submit(func() {
		defer report.Release()
		b.handler.HandleEngineReport(session, report)
	}, report.Release)
	if err != nil {
		common.LogError("Events: discarding engine report for session %s: %v", session, err)
		report.Release()
		return
	}
	common.LogDebug("Events: engine report queued for session %s", session)
}

// Sink returns an engine.ErrorSink bound to session.
func (b *Bridge) Sink(session string) engine.ErrorSink {
	return func(report *engine.Report) {
		b.ReportAsyncError(session, report)
	}
}
