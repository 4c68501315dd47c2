package stage

import (
	"log/slog"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/codewandler/stage-go/core/address"
	"github.com/codewandler/stage-go/core/deadletter"
	"github.com/codewandler/stage-go/core/directory"
	"github.com/codewandler/stage-go/core/mailbox"
	"github.com/codewandler/stage-go/core/timer"
)

// Root protocol names. The private root supervises the public root with a
// stopping policy; the public root supervises all user actors by default
// and restarts them forever.
const (
	PrivateRootName = "PrivateRoot"
	PublicRootName  = "PublicRoot"
)

// Options configures a stage. All fields are optional.
type Options struct {
	// Name labels the stage in logs. Defaults to a generated id.
	Name string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Directory sizing. Defaults to directory.Default.
	Directory directory.Config
	// Metrics defaults to NopStageMetrics().
	Metrics StageMetrics
	// CloseTimeout bounds each actor's stop during Close.
	// Defaults to 5 seconds.
	CloseTimeout time.Duration
}

// Stage is the runtime's entry point: it owns the directory, dead-letter
// office, scheduler, address factory and the root supervision pair, and it
// constructs actors and their proxies.
type Stage struct {
	name      string
	log       *slog.Logger
	directory *directory.Directory

	deadLetters *deadletter.Office
	scheduler   *timer.Scheduler
	addresses   *address.Factory
	metrics     StageMetrics

	closeTimeout time.Duration

	mu          sync.Mutex
	closed      bool
	failure     error
	supervisors map[string]*Proxy

	privateRoot *Environment
	publicRoot  *Environment
}

// New creates an independent stage with its own directory, dead letters,
// scheduler and root actors.
func New(opts Options) *Stage {
	if opts.Name == "" {
		opts.Name = "stage-" + gonanoid.MustGenerate("abcdefghijklmnopqrstuvwxyz0123456789", 6)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NopStageMetrics()
	}
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = 5 * time.Second
	}

	s := &Stage{
		name:         opts.Name,
		log:          opts.Logger.With(slog.String("stage", opts.Name)),
		directory:    directory.New(opts.Directory),
		addresses:    address.NewFactory(),
		metrics:      opts.Metrics,
		closeTimeout: opts.CloseTimeout,
		supervisors:  make(map[string]*Proxy),
	}
	s.deadLetters = deadletter.NewOffice(s.log)
	s.scheduler = timer.New(s.log)

	// Root supervision pair: a stopping private root above a
	// restart-forever public root.
	privateProto := NewProtocol(PrivateRootName, func(def Definition) (Behavior, error) {
		return &privateRootSupervisor{BaseSupervisor: NewBaseSupervisor(DefaultStrategy())}, nil
	})
	publicProto := NewProtocol(PublicRootName, func(def Definition) (Behavior, error) {
		return &publicRootSupervisor{BaseSupervisor: NewBaseSupervisor(RestartForeverStrategy())}, nil
	})

	privateProxy, err := s.actorFor(privateProto, spawnConfig{})
	if err != nil {
		// Root instantiators cannot fail.
		panic(err)
	}
	s.privateRoot = privateProxy.env

	publicProxy, err := s.actorFor(publicProto, spawnConfig{parent: s.privateRoot})
	if err != nil {
		panic(err)
	}
	s.publicRoot = publicProxy.env

	s.log.Debug("stage ready")
	return s
}

var (
	defaultMu    sync.Mutex
	defaultStage *Stage
)

// Default returns the process-wide stage, constructing it on first use.
// Tests that need isolation should construct their own stage with [New].
func Default() *Stage {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStage == nil || defaultStage.isClosed() {
		defaultStage = New(Options{Name: "default"})
	}
	return defaultStage
}

// Name returns the stage's label.
func (s *Stage) Name() string { return s.name }

// DeadLetters returns the stage's dead-letter office.
func (s *Stage) DeadLetters() *deadletter.Office { return s.deadLetters }

// Scheduler returns the stage's timed-task scheduler.
func (s *Stage) Scheduler() *timer.Scheduler { return s.scheduler }

// Logger returns the stage's logger.
func (s *Stage) Logger() *slog.Logger { return s.log }

// ---- spawning ----

type spawnConfig struct {
	parent          *Environment
	supervisorName  string
	params          []any
	mailboxCapacity int
	mailboxPolicy   mailbox.Policy
	addr            address.Address
}

// SpawnOption customizes ActorFor.
type SpawnOption func(*spawnConfig)

// WithParent parents the new actor under p instead of the public root.
func WithParent(p *Proxy) SpawnOption {
	return func(c *spawnConfig) { c.parent = p.env }
}

// WithSupervisorName routes the new actor's faults to the named supervisor
// (a previously created supervisor actor's protocol name) instead of the
// public root.
func WithSupervisorName(name string) SpawnOption {
	return func(c *spawnConfig) { c.supervisorName = name }
}

// WithParams supplies constructor parameters to the protocol instantiator.
func WithParams(params ...any) SpawnOption {
	return func(c *spawnConfig) { c.params = params }
}

// WithBoundedMailbox gives the actor a bounded mailbox with the given
// capacity and overflow policy.
func WithBoundedMailbox(capacity int, policy mailbox.Policy) SpawnOption {
	return func(c *spawnConfig) {
		c.mailboxCapacity = capacity
		c.mailboxPolicy = policy
	}
}

// WithAddress pins the new actor's address instead of minting one.
func WithAddress(addr address.Address) SpawnOption {
	return func(c *spawnConfig) { c.addr = addr }
}

// ActorFor mints an address, registers a definition, constructs the
// environment and the actor instance, starts it and returns its proxy.
// The actor enters the directory when it reaches Running.
func (s *Stage) ActorFor(protocol *Protocol, opts ...SpawnOption) (*Proxy, error) {
	cfg := spawnConfig{parent: s.publicRoot}
	for _, opt := range opts {
		opt(&cfg)
	}
	return s.actorFor(protocol, cfg)
}

func (s *Stage) actorFor(protocol *Protocol, cfg spawnConfig) (*Proxy, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStageClosed
	}
	s.mu.Unlock()

	addr := cfg.addr
	if addr.IsNone() {
		addr = s.addresses.Next()
	}
	def := Definition{Protocol: protocol, Address: addr, Params: cfg.params}

	env := &Environment{
		stage:   s,
		log:     s.log.With(slog.String("actor", protocol.Name), slog.String("address", addr.String())),
		address: addr,
		def:     def,
		control: make(chan ctrlMsg, controlBuffer),
		notify:  make(chan struct{}, 1),
		parent:  cfg.parent,

		supervisorName: cfg.supervisorName,
	}
	env.resetExecCtx()
	env.mailbox = mailbox.New(mailbox.Options[*Message]{
		Capacity: cfg.mailboxCapacity,
		Policy:   cfg.mailboxPolicy,
		Ready:    env.signalReady,
		Divert:   s.divertFor(cfg.mailboxPolicy, cfg.mailboxCapacity > 0),
	})
	env.proxy = &Proxy{env: env}

	behavior, err := protocol.Instantiate(def)
	if err != nil {
		return nil, err
	}
	behavior.bind(env)
	env.behavior = behavior

	if _, ok := behavior.(Supervisor); ok {
		s.registerSupervisor(protocol.Name, env.proxy)
	}

	go env.run()
	env.sendControl(ctrlMsg{kind: ctrlStart})
	return env.proxy, nil
}

// divertFor routes undeliverable messages to dead letters and fails their
// futures. Only the Reject policy records overflow dead letters; messages
// displaced by the drop policies are discarded with a failed future.
func (s *Stage) divertFor(policy mailbox.Policy, bounded bool) mailbox.Diverter[*Message] {
	return func(msg *Message, reason mailbox.DivertReason) {
		switch reason {
		case mailbox.DivertClosed:
			s.deadLetters.Publish(deadletter.Letter{
				Target:  msg.Target,
				Message: msg.String(),
				Reason:  deadletter.ReasonActorStopped,
			})
			s.metrics.DeadLetter(deadletter.ReasonActorStopped)
			msg.Result.Fail(ErrActorStopped)
		case mailbox.DivertOverflow:
			if bounded && policy == mailbox.Reject {
				s.deadLetters.Publish(deadletter.Letter{
					Target:  msg.Target,
					Message: msg.String(),
					Reason:  deadletter.ReasonMailboxOverflow,
				})
				s.metrics.DeadLetter(deadletter.ReasonMailboxOverflow)
				msg.Result.Fail(mailbox.ErrOverflow)
				return
			}
			msg.Result.Fail(ErrMessageDropped)
		}
	}
}

// ActorOf returns the live proxy registered for addr. Lookups for the
// same address return the same proxy instance. Stopping and stopped
// actors are not found.
func (s *Stage) ActorOf(addr address.Address) (*Proxy, bool) {
	v, ok := s.directory.Get(addr.String())
	if !ok {
		return nil, false
	}
	p := v.(*Proxy)
	if p.env.life.isTerminal() {
		return nil, false
	}
	return p, true
}

// PublicRoot returns the public root supervisor's proxy.
func (s *Stage) PublicRoot() *Proxy { return s.publicRoot.proxy }

// Stats describes the stage's current population.
type Stats struct {
	Actors       int
	Distribution []int
}

// Stats returns the live actor count and its distribution over the
// directory's buckets.
func (s *Stage) Stats() Stats {
	return Stats{
		Actors:       s.directory.Size(),
		Distribution: s.directory.Stats(),
	}
}

func (s *Stage) registerSupervisor(name string, p *Proxy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supervisors[name] = p
}

func (s *Stage) supervisorNamed(name string) (*Proxy, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.supervisors[name]
	return p, ok
}

// stopAllSupervisedBy stops every live actor whose resolved supervisor is
// sup, except the one already being handled.
func (s *Stage) stopAllSupervisedBy(sup *Proxy, except *Environment) {
	s.directory.ForEach(func(_ string, v any) {
		p := v.(*Proxy)
		if p.env == except || p.env == s.privateRoot || p.env == s.publicRoot {
			return
		}
		if p.env.supervisorProxy() == sup {
			p.Stop()
		}
	})
}

// fail records a fatal stage failure (private root fault) and closes the
// stage.
func (s *Stage) fail(err error) {
	s.mu.Lock()
	if s.failure == nil {
		s.failure = err
	}
	s.mu.Unlock()
	go func() { _ = s.Close() }()
}

// Failure returns the fatal error that brought the stage down, if any.
func (s *Stage) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Stage) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops all non-root actors (leaves inward via each actor's own
// shutdown sequence), then the public root, then the private root, and
// finally the scheduler. Idempotent.
func (s *Stage) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.log.Debug("stage closing")

	var g errgroup.Group
	for _, child := range s.publicRoot.childProxies() {
		g.Go(func() error {
			_, err := child.StopTimeout(s.closeTimeout).AwaitTimeout(s.closeTimeout + time.Second)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.log.Warn("stage close: some actors did not stop cleanly", slog.Any("error", err))
	}

	if _, err := s.publicRoot.proxy.StopTimeout(s.closeTimeout).AwaitTimeout(s.closeTimeout + time.Second); err != nil {
		s.log.Warn("stage close: public root stop failed", slog.Any("error", err))
	}
	if _, err := s.privateRoot.proxy.StopTimeout(s.closeTimeout).AwaitTimeout(s.closeTimeout + time.Second); err != nil {
		s.log.Warn("stage close: private root stop failed", slog.Any("error", err))
	}

	s.scheduler.Close()
	s.log.Debug("stage closed")
	return nil
}

// ---- root supervisors ----

// privateRootSupervisor stops what it supervises; a failure here is fatal
// to the stage.
type privateRootSupervisor struct {
	BaseSupervisor
}

func (r *privateRootSupervisor) Decide(err error, supervised *Supervised) Directive {
	return DirectiveStop
}

// publicRootSupervisor restarts user actors forever.
type publicRootSupervisor struct {
	BaseSupervisor
}
