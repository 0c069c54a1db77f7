package events

import "sync"

// DefaultBacklog bounds how many recent events the bus retains for
// subscribers resuming from a cursor.
const DefaultBacklog = 256

// BusEvent pairs an event with a monotonically increasing sequence number so
// stream consumers can resume where they left off.
type BusEvent struct {
	Seq   uint64
	Event Event
}

// Bus is an in-process Emitter fanning events out to subscribers. A slow
// subscriber drops events instead of blocking the emitting module.
type Bus struct {
	mu      sync.Mutex
	seq     uint64
	backlog []BusEvent
	max     int
	subs    map[uint64]chan BusEvent
	nextSub uint64
}

// NewBus constructs a bus retaining up to backlog events; non-positive values
// fall back to DefaultBacklog.
func NewBus(backlog int) *Bus {
	if backlog <= 0 {
		backlog = DefaultBacklog
	}
	return &Bus{max: backlog, subs: make(map[uint64]chan BusEvent)}
}

// Emit implements the Emitter interface.
func (b *Bus) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.Lock()
	b.seq++
	entry := BusEvent{Seq: b.seq, Event: evt}
	b.backlog = append(b.backlog, entry)
	if len(b.backlog) > b.max {
		b.backlog = b.backlog[len(b.backlog)-b.max:]
	}
	for _, ch := range b.subs {
		select {
		case ch <- entry:
		default:
		}
	}
	b.mu.Unlock()
}

// Subscribe registers a consumer resuming after the given sequence cursor
// (zero replays the whole retained backlog). Callers must invoke the returned
// cancel function to release the subscription; the channel closes afterwards.
func (b *Bus) Subscribe(after uint64) (<-chan BusEvent, func(), []BusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var replay []BusEvent
	for _, entry := range b.backlog {
		if entry.Seq > after {
			replay = append(replay, entry)
		}
	}
	id := b.nextSub
	b.nextSub++
	ch := make(chan BusEvent, b.max)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
		b.mu.Unlock()
	}
	return ch, cancel, replay
}
