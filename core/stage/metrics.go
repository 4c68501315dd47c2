package stage

import "github.com/codewandler/stage-go/core/metrics"

// StageMetrics defines the instrumentation surface of the runtime.
// All methods are thread-safe.
type StageMetrics interface {
	// Message dispatch
	MessageDuration(selector string) metrics.Timer
	MessageProcessed(selector string, success bool)

	// Mailboxes
	MailboxDepth(actorID string, depth int)

	// Dead letters
	DeadLetter(reason string)

	// Lifecycle
	ActorStarted()
	ActorStopped()
	ActorRestarted()
}

// nopStageMetrics is a no-op implementation of StageMetrics.
type nopStageMetrics struct{}

func (nopStageMetrics) MessageDuration(string) metrics.Timer { return metrics.NopTimer() }
func (nopStageMetrics) MessageProcessed(string, bool)        {}

func (nopStageMetrics) MailboxDepth(string, int) {}

func (nopStageMetrics) DeadLetter(string) {}

func (nopStageMetrics) ActorStarted()   {}
func (nopStageMetrics) ActorStopped()   {}
func (nopStageMetrics) ActorRestarted() {}

// NopStageMetrics returns a no-op StageMetrics implementation.
func NopStageMetrics() StageMetrics { return nopStageMetrics{} }
