// Package events is the engine's typed broadcast bus. Subscribers receive a
// closed set of event variants on buffered channels; a slow subscriber loses
// events rather than stalling the engine.
package events

import (
	"sync"

	"github.com/dmitrijs2005/gophguard/internal/client/models"
	"github.com/dmitrijs2005/gophguard/internal/client/policy"
)

// Event is one of the types below.
type Event interface {
	isEvent()
}

// BlockedChanged fires when the effective block state flips.
type BlockedChanged struct {
	Blocked bool
}

// Warning fires on a severity transition. RemainingSeconds is exact for
// urgent and critical and otherwise informational.
type Warning struct {
	Severity         policy.Severity
	RemainingSeconds int64
}

// Unpaired fires once when pairing ends, by revocation or explicit unpair.
type Unpaired struct {
	Revoked bool
}

// NeedChildSelection asks the UI to show the child picker.
type NeedChildSelection struct{}

// ChildChanged carries the newly selected identity, nil when cleared.
type ChildChanged struct {
	Child *models.Child
}

func (BlockedChanged) isEvent()     {}
func (Warning) isEvent()            {}
func (Unpaired) isEvent()           {}
func (NeedChildSelection) isEvent() {}
func (ChildChanged) isEvent()       {}

const defaultBuffer = 32

// Bus fans events out to subscribers.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a channel of events and a function that unsubscribes
// and closes it. Calling the function more than once is safe. The initial
// events are delivered to this subscriber first.
func (b *Bus) Subscribe(initial ...Event) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, max(defaultBuffer, len(initial)))
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	for _, e := range initial {
		ch <- e
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Publish delivers e to every subscriber without blocking. It returns how
// many subscribers dropped the event because their buffer was full.
func (b *Bus) Publish(e Event) (dropped int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			dropped++
		}
	}
	return dropped
}

// Close closes every subscriber channel. Later subscriptions get a closed
// channel.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
