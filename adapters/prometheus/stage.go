package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/stage-go/core/metrics"
	"github.com/codewandler/stage-go/core/stage"
)

// stageMetrics implements stage.StageMetrics using Prometheus.
type stageMetrics struct {
	messageDuration *prometheus.HistogramVec
	messagesTotal   *prometheus.CounterVec
	mailboxDepth    *prometheus.GaugeVec
	deadLetters     *prometheus.CounterVec
	actorsLive      prometheus.Gauge
	restartsTotal   prometheus.Counter
}

// NewStageMetrics creates a new Prometheus implementation of
// stage.StageMetrics registered on reg.
func NewStageMetrics(reg prometheus.Registerer) stage.StageMetrics {
	m := &stageMetrics{
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "stage_message_duration_seconds",
			Help:    "Message handling time in seconds",
			Buckets: defaultBuckets,
		}, []string{"selector"}),

		messagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stage_messages_total",
			Help: "Total number of messages dispatched",
		}, []string{"selector", "success"}),

		mailboxDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stage_mailbox_depth",
			Help: "Current mailbox queue depth",
		}, []string{"actor_id"}),

		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stage_dead_letters_total",
			Help: "Total number of dead letters recorded",
		}, []string{"reason"}),

		actorsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stage_actors_live",
			Help: "Number of currently running actors",
		}),

		restartsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stage_actor_restarts_total",
			Help: "Total number of actor restarts",
		}),
	}

	reg.MustRegister(
		m.messageDuration,
		m.messagesTotal,
		m.mailboxDepth,
		m.deadLetters,
		m.actorsLive,
		m.restartsTotal,
	)

	return m
}

func (m *stageMetrics) MessageDuration(selector string) metrics.Timer {
	return newTimer(m.messageDuration.WithLabelValues(selector))
}

func (m *stageMetrics) MessageProcessed(selector string, success bool) {
	m.messagesTotal.WithLabelValues(selector, boolToStr(success)).Inc()
}

func (m *stageMetrics) MailboxDepth(actorID string, depth int) {
	m.mailboxDepth.WithLabelValues(actorID).Set(float64(depth))
}

func (m *stageMetrics) DeadLetter(reason string) {
	m.deadLetters.WithLabelValues(reason).Inc()
}

func (m *stageMetrics) ActorStarted() { m.actorsLive.Inc() }

func (m *stageMetrics) ActorStopped() { m.actorsLive.Dec() }

func (m *stageMetrics) ActorRestarted() { m.restartsTotal.Inc() }

var _ stage.StageMetrics = (*stageMetrics)(nil)
