// Package events moves work from arbitrary goroutines and engine threads
// onto the plugin's single host loop.
//
// Loop is a bounded FIFO of tasks drained by exactly one goroutine (Run).
// Every session state transition happens inside a Loop task, so the
// session controller needs no locking against itself.
//
// Bridge is the engine-facing side: ReportAsyncError never blocks an
// engine thread for longer than the loop's handoff timeout. Each enqueued
// report is handled exactly once, in enqueue order, and its buffer is
// released afterwards.
package events
