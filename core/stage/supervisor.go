package stage

import (
	"fmt"
	"time"
)

// Directive is a supervisor's decision for a failed actor.
type Directive int

const (
	// DirectiveResume keeps the actor instance and state; the mailbox
	// resumes where it left off.
	DirectiveResume Directive = iota
	// DirectiveRestart replaces the actor instance, keeping the
	// environment, address and mailbox.
	DirectiveRestart
	// DirectiveStop stops the actor (and, under ScopeAll, its siblings
	// supervised by the same supervisor).
	DirectiveStop
	// DirectiveEscalate fails the supervisor itself with the error.
	DirectiveEscalate
)

func (d Directive) String() string {
	switch d {
	case DirectiveResume:
		return "Resume"
	case DirectiveRestart:
		return "Restart"
	case DirectiveStop:
		return "Stop"
	case DirectiveEscalate:
		return "Escalate"
	default:
		return "Unknown"
	}
}

// Scope bounds the blast radius of a Stop directive.
type Scope int

const (
	// ScopeOne affects only the failed actor.
	ScopeOne Scope = iota
	// ScopeAll affects the failed actor and its siblings under the same
	// supervisor.
	ScopeAll
)

func (s Scope) String() string {
	if s == ScopeAll {
		return "All"
	}
	return "One"
}

// Strategy bounds restarts: more than Intensity restarts within Period for
// the same supervised actor promotes the directive to Escalate.
// Intensity <= 0 means unlimited restarts.
type Strategy struct {
	Intensity int
	Period    time.Duration
	Scope     Scope
}

// DefaultStrategy restarts on unknown errors, escalating after 5 restarts
// within 5 seconds.
func DefaultStrategy() Strategy {
	return Strategy{Intensity: 5, Period: 5 * time.Second, Scope: ScopeOne}
}

// RestartForeverStrategy never exhausts its intensity window.
func RestartForeverStrategy() Strategy {
	return Strategy{Intensity: 0, Period: 0, Scope: ScopeOne}
}

// Supervised is the handle a supervisor receives for a failed actor. Its
// methods apply directives to the supervised actor; they may be called from
// the supervisor's Inform handler.
type Supervised struct {
	env     *Environment
	err     error
	execCtx map[string]any
}

// Actor returns the supervised actor's proxy.
func (s *Supervised) Actor() *Proxy { return s.env.proxy }

// Error returns the failure that engaged supervision.
func (s *Supervised) Error() error { return s.err }

// ExecutionContext returns the failed message's execution context as of the
// failure.
func (s *Supervised) ExecutionContext() map[string]any { return s.execCtx }

// Suspend suspends the supervised actor's mailbox.
func (s *Supervised) Suspend() { s.env.mailbox.Suspend() }

// Resume applies a Resume directive: BeforeResume runs, then the mailbox
// resumes. State is preserved.
func (s *Supervised) Resume() {
	s.env.sendControl(ctrlMsg{kind: ctrlDirective, directive: DirectiveResume, reason: s.err})
}

// Restart applies a Restart directive: the instance is replaced, the
// environment, address and mailbox are kept.
func (s *Supervised) Restart() {
	s.env.sendControl(ctrlMsg{kind: ctrlDirective, directive: DirectiveRestart, reason: s.err})
}

// Stop applies a Stop directive. ScopeAll also stops siblings supervised by
// the same supervisor.
func (s *Supervised) Stop(scope Scope) {
	if scope == ScopeAll {
		if sup := s.env.supervisorProxy(); sup != nil {
			s.env.stage.stopAllSupervisedBy(sup, s.env)
		}
	}
	s.env.sendControl(ctrlMsg{kind: ctrlDirective, directive: DirectiveStop, scope: scope, reason: s.err})
}

// Supervisor is implemented by actors that supervise others. Inform is
// delivered as an ordinary message on the supervisor's mailbox, so
// supervisor logic is serialized like any other handler. Returning an
// error escalates: the supervisor itself fails with it and is handled by
// its own supervisor.
type Supervisor interface {
	Inform(err error, supervised *Supervised) error
}

// BaseSupervisor is a ready-made supervisor behavior applying a [Strategy].
// Embed it and override Decide (or Inform) to customize. The restart
// intensity window is tracked per supervised actor; exhausting it promotes
// the directive to Escalate.
type BaseSupervisor struct {
	Base
	strategy Strategy

	// windows is touched only from Inform, which the mailbox serializes.
	windows map[string][]time.Time
}

// NewBaseSupervisor creates a supervisor behavior with the given strategy.
func NewBaseSupervisor(strategy Strategy) BaseSupervisor {
	return BaseSupervisor{strategy: strategy}
}

// Strategy returns the configured supervision strategy.
func (s *BaseSupervisor) Strategy() Strategy { return s.strategy }

// Decide maps a failure to a directive. The default returns Restart for
// every error.
func (s *BaseSupervisor) Decide(err error, supervised *Supervised) Directive {
	return DirectiveRestart
}

// Inform applies the strategy: consult Decide, enforce the intensity
// window, then apply the directive through the supervised handle.
func (s *BaseSupervisor) Inform(err error, supervised *Supervised) error {
	// Decide through the outer behavior when overridden.
	decider, _ := s.environment().behavior.(interface {
		Decide(error, *Supervised) Directive
	})
	directive := DirectiveRestart
	if decider != nil {
		directive = decider.Decide(err, supervised)
	}

	if directive == DirectiveRestart && s.windowExhausted(supervised) {
		directive = DirectiveEscalate
	}

	s.Logger().Debug("supervising failure",
		"supervised", supervised.Actor().String(),
		"directive", directive.String(),
		"error", err,
	)

	switch directive {
	case DirectiveResume:
		supervised.Resume()
	case DirectiveRestart:
		supervised.Restart()
	case DirectiveStop:
		supervised.Stop(s.strategy.Scope)
	case DirectiveEscalate:
		return fmt.Errorf("escalated failure of %s: %w", supervised.Actor().String(), err)
	}
	return nil
}

// windowExhausted records a restart for the supervised actor and reports
// whether the intensity window is now exceeded.
func (s *BaseSupervisor) windowExhausted(supervised *Supervised) bool {
	if s.strategy.Intensity <= 0 {
		return false
	}
	if s.windows == nil {
		s.windows = make(map[string][]time.Time)
	}
	key := supervised.Actor().Address().String()
	now := time.Now()
	cutoff := now.Add(-s.strategy.Period)

	valid := s.windows[key][:0]
	for _, t := range s.windows[key] {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	if len(valid) >= s.strategy.Intensity {
		s.windows[key] = valid
		return true
	}
	s.windows[key] = append(valid, now)
	return false
}
