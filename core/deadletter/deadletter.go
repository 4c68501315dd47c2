// Package deadletter collects messages that could not be delivered and
// broadcasts them to subscribed listeners.
package deadletter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/codewandler/stage-go/core/address"
)

// Well-known reasons.
const (
	ReasonActorStopped    = "actor stopped"
	ReasonMailboxOverflow = "mailbox overflow"
)

// Letter records a single undeliverable message.
type Letter struct {
	Target  address.Address
	Message string // representation of the dropped message
	Reason  string
}

func (l Letter) String() string {
	return fmt.Sprintf("deadletter[target=%s reason=%q msg=%s]", l.Target, l.Reason, l.Message)
}

// Listener receives every published letter.
type Listener interface {
	Handle(letter Letter)
}

// Office is a process-wide dead-letter sink. Letters are broadcast to all
// current listeners synchronously, in subscription order.
type Office struct {
	log *slog.Logger

	mu        sync.Mutex
	listeners []Listener
	count     int
}

// NewOffice creates a dead-letter office. A nil logger uses slog.Default().
func NewOffice(log *slog.Logger) *Office {
	if log == nil {
		log = slog.Default()
	}
	return &Office{log: log}
}

// Publish broadcasts the letter to all current listeners.
func (o *Office) Publish(letter Letter) {
	o.mu.Lock()
	o.count++
	listeners := make([]Listener, len(o.listeners))
	copy(listeners, o.listeners)
	o.mu.Unlock()

	o.log.Debug("dead letter",
		slog.String("target", letter.Target.String()),
		slog.String("reason", letter.Reason),
		slog.String("msg", letter.Message),
	)

	for _, l := range listeners {
		l.Handle(letter)
	}
}

// Subscribe registers a listener for future letters.
func (o *Office) Subscribe(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, l)
}

// Unsubscribe removes a previously registered listener.
func (o *Office) Unsubscribe(l Listener) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, cur := range o.listeners {
		if cur == l {
			o.listeners = append(o.listeners[:i], o.listeners[i+1:]...)
			return
		}
	}
}

// Count returns the number of letters published so far.
func (o *Office) Count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.count
}

// Capturing is a listener that retains every letter in order.
// Useful in tests and diagnostics.
type Capturing struct {
	mu      sync.Mutex
	letters []Letter
}

// NewCapturing creates an empty capturing listener.
func NewCapturing() *Capturing { return &Capturing{} }

func (c *Capturing) Handle(letter Letter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.letters = append(c.letters, letter)
}

// Letters returns a copy of all captured letters in publication order.
func (c *Capturing) Letters() []Letter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Letter, len(c.letters))
	copy(out, c.letters)
	return out
}

// Len returns the number of captured letters.
func (c *Capturing) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.letters)
}

// FindContaining returns all letters whose message representation contains
// the given substring.
func (c *Capturing) FindContaining(substr string) []Letter {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Letter
	for _, l := range c.letters {
		if strings.Contains(l.Message, substr) {
			out = append(out, l)
		}
	}
	return out
}
