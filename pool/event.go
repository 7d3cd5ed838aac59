package pool

import (
	"sync"

	"github.com/mongodb/mongo-go-driver-core/address"
)

// EventType names the pool state changes a subscriber can observe.
type EventType int

// Event types published by a Pool, per SPEC_FULL.md §2's "Pool ...
// events published to subscribers" ambient component.
const (
	EventConnectionCheckedOut EventType = iota
	EventConnectionCheckedIn
	EventPoolInvalidated
)

func (t EventType) String() string {
	switch t {
	case EventConnectionCheckedOut:
		return "ConnectionCheckedOut"
	case EventConnectionCheckedIn:
		return "ConnectionCheckedIn"
	case EventPoolInvalidated:
		return "PoolInvalidated"
	default:
		return "Unknown"
	}
}

// Event is one published pool state change.
type Event struct {
	Type    EventType
	Address address.Address
}

// eventBufferSize bounds how many events a slow subscriber can fall
// behind before new events are dropped rather than blocking the pool.
const eventBufferSize = 16

// Subscribe registers a new subscriber for this pool's events,
// grounded on core/cluster_monitor.go's Subscribe/unsubscribe shape
// (adapted from that method's single-slot snapshot-replacement channel
// to a small buffered channel of discrete events, since a pool Event
// is a point-in-time occurrence rather than a replaceable state
// snapshot). The returned func unsubscribes; callers must call it.
func (p *Pool) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBufferSize)

	p.subMu.Lock()
	if p.subscribers == nil {
		p.subscribers = make(map[int]chan Event)
	}
	id := p.nextSubID
	p.nextSubID++
	p.subscribers[id] = ch
	p.subMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			p.subMu.Lock()
			delete(p.subscribers, id)
			p.subMu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// publish fans an event out to every current subscriber, dropping it
// for any subscriber whose buffer is full rather than blocking the
// caller (Checkout/Checkin/Invalidate must never stall on a slow
// reader).
func (p *Pool) publish(evt Event) {
	p.subMu.Lock()
	defer p.subMu.Unlock()
	for _, ch := range p.subscribers {
		select {
		case ch <- evt:
		default:
		}
	}
}
