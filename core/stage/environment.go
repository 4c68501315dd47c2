package stage

import (
	"log/slog"
	"sync"

	"github.com/codewandler/stage-go/core/address"
	"github.com/codewandler/stage-go/core/ds"
	"github.com/codewandler/stage-go/core/mailbox"
)

const controlBuffer = 64

// Environment is the per-actor infrastructure bundle: address, definition,
// mailbox, supervisor link, parent, children and the owning stage. Exactly
// one actor owns each environment; restarts replace the actor instance but
// keep the environment.
type Environment struct {
	stage *Stage
	log   *slog.Logger

	address address.Address
	def     Definition

	mailbox *mailbox.Mailbox[*Message]
	control chan ctrlMsg
	notify  chan struct{}

	parent   *Environment
	children childSet

	proxy *Proxy
	life  lifeCycle

	// behavior is accessed only by the dispatcher goroutine.
	behavior Behavior

	// execCtx is the current-message execution context, reset before each
	// dispatch. Only the dispatcher goroutine writes it; the supervisor
	// receives a snapshot taken at failure time.
	execCtx map[string]any

	supervisorName string

	snapMu   sync.Mutex
	snapshot any
}

func (e *Environment) setSnapshot(v any) {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	e.snapshot = v
}

func (e *Environment) getSnapshot() any {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	return e.snapshot
}

func (e *Environment) resetExecCtx() {
	e.execCtx = make(map[string]any, 4)
}

func (e *Environment) execCtxSnapshot() map[string]any {
	out := make(map[string]any, len(e.execCtx))
	for k, v := range e.execCtx {
		out[k] = v
	}
	return out
}

// supervisorProxy resolves the supervisor link: named supervisor first,
// then the public root; the public root answers to the private root; the
// private root has no supervisor (nil), which callers treat as fatal.
func (e *Environment) supervisorProxy() *Proxy {
	if e.supervisorName != "" {
		if p, ok := e.stage.supervisorNamed(e.supervisorName); ok {
			return p
		}
		e.log.Warn("named supervisor not registered, falling back to public root",
			slog.String("supervisor", e.supervisorName))
	}
	switch e {
	case e.stage.privateRoot:
		return nil
	case e.stage.publicRoot:
		return e.stage.privateRoot.proxy
	default:
		return e.stage.publicRoot.proxy
	}
}

// sendControl delivers c to the dispatcher. When the actor is already
// stopped the message is answered synchronously instead.
func (e *Environment) sendControl(c ctrlMsg) {
	if e.life.current() == Stopped {
		e.answerWhileStopped(c)
		return
	}
	select {
	case e.control <- c:
	default:
		// Dispatcher gone or control saturated; answer in place rather
		// than block the caller forever.
		e.answerWhileStopped(c)
	}
}

func (e *Environment) answerWhileStopped(c ctrlMsg) {
	if c.result == nil {
		return
	}
	switch c.kind {
	case ctrlStop:
		// Stopping a stopped actor is a no-op that resolves immediately.
		c.result.Complete(nil, nil)
	default:
		c.result.Fail(ErrActorStopped)
	}
}

func (e *Environment) signalReady() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

func (e *Environment) childProxies() []*Proxy {
	return e.children.proxies()
}

// childSet tracks an actor's children with stable insertion order.
type childSet struct {
	mu    sync.Mutex
	keys  *ds.Set[string]
	byKey map[string]*Proxy
}

func (c *childSet) add(p *Proxy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byKey == nil {
		c.byKey = make(map[string]*Proxy)
		c.keys = ds.NewSet[string]()
	}
	key := p.Address().String()
	c.keys.Add(key)
	c.byKey[key] = p
}

func (c *childSet) remove(addr address.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byKey == nil {
		return
	}
	key := addr.String()
	c.keys.Remove(key)
	delete(c.byKey, key)
}

func (c *childSet) proxies() []*Proxy {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byKey == nil {
		return nil
	}
	out := make([]*Proxy, 0, len(c.byKey))
	c.keys.ForEach(func(key string) {
		out = append(out, c.byKey[key])
	})
	return out
}

func (c *childSet) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}
