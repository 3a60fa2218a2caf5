// Package metrics exposes prometheus collectors for gateway sessions and the
// synchronization engine. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the gateway collectors.
type Metrics struct {
	SessionsActive prometheus.Gauge
	Polls          *prometheus.CounterVec
	MessagesSent   *prometheus.CounterVec
	Events         *prometheus.CounterVec
	Kicks          prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "chatgate_sessions_active",
			Help: "Number of connected IRC sessions",
		}),
		Polls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgate_polls_total",
			Help: "Periodic task runs by task and result",
		}, []string{"task", "result"}),
		MessagesSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgate_messages_sent_total",
			Help: "Messages sent to the backend by result",
		}, []string{"result"}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgate_events_total",
			Help: "Backend room events classified by kind",
		}, []string{"kind"}),
		Kicks: f.NewCounter(prometheus.CounterOpts{
			Name: "chatgate_kicks_total",
			Help: "Rooms whose membership was revoked by the backend",
		}),
	}
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
}

// Poll records one run of a periodic task.
func (m *Metrics) Poll(task string, err error) {
	if m == nil {
		return
	}
	m.Polls.WithLabelValues(task, result(err)).Inc()
}

func (m *Metrics) MessageSent(err error) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(result(err)).Inc()
}

// Event counts a classified room event; an empty kind is a chat message.
func (m *Metrics) Event(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "message"
	}
	m.Events.WithLabelValues(kind).Inc()
}

func (m *Metrics) Kick() {
	if m == nil {
		return
	}
	m.Kicks.Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
