package notify

import (
    "context"
    "sync"
)

// Broker is an in-process Sink that fans events out to live subscribers.
// It backs the admin SSE stream: each connected dashboard holds one
// subscription channel for the lifetime of its connection.
type Broker struct {
    mu   sync.RWMutex
    subs map[chan string]struct{}
}

// NewBroker returns an empty Broker ready for subscriptions.
func NewBroker() *Broker {
    return &Broker{subs: make(map[chan string]struct{})}
}

// Subscribe registers a new subscriber and returns its event channel.  The
// channel is buffered; see Publish for the slow-consumer policy.  Callers
// must call Unsubscribe when done or the subscription leaks.
func (b *Broker) Subscribe() chan string {
    ch := make(chan string, 8)
    b.mu.Lock()
    b.subs[ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

// Unsubscribe removes a subscriber and closes its channel.  Safe to call
// once per channel returned by Subscribe.
func (b *Broker) Unsubscribe(ch chan string) {
    b.mu.Lock()
    if _, ok := b.subs[ch]; ok {
        delete(b.subs, ch)
        close(ch)
    }
    b.mu.Unlock()
}

// SubscriberCount reports the number of live subscriptions.
func (b *Broker) SubscriberCount() int {
    b.mu.RLock()
    defer b.mu.RUnlock()
    return len(b.subs)
}

// Publish implements Sink.  Sends are non-blocking: a subscriber whose
// buffer is full simply misses the event, which is acceptable because every
// event carries the same meaning – clients re-fetch full state on the next
// one they do receive.
func (b *Broker) Publish(_ context.Context, event string) {
    b.mu.RLock()
    defer b.mu.RUnlock()
    for ch := range b.subs {
        select {
        case ch <- event:
        default:
        }
    }
}
