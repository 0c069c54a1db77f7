// Package events carries the emitter plumbing shared by native modules.
package events

// Event is a structured state change raised by a native module.
type Event interface {
	EventType() string
}

// Emitter delivers events to downstream consumers such as the streaming
// endpoint or external indexers.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event. Modules default to it so emission is
// always safe before wiring completes.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
