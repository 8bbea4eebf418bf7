// Package metrics holds the Prometheus collectors of the bot, the API and the
// reminder job. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	reminders  *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	commands   *prometheus.CounterVec
}

func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)
	return &Metrics{
		reminders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberbot",
			Name:      "reminders_total",
			Help:      "Reminder dispatch attempts by bucket and result",
		}, []string{"bucket", "result"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberbot",
			Name:      "deliveries_total",
			Help:      "Outbound message attempts by channel and result",
		}, []string{"channel", "result"}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "memberbot",
			Name:      "commands_total",
			Help:      "Bot commands handled by command and outcome",
		}, []string{"command", "outcome"}),
	}
}

func result(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

func (m *Metrics) ObserveReminder(bucket string, err error) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(bucket, result(err)).Inc()
}

func (m *Metrics) ObserveDelivery(channel string, err error) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(channel, result(err)).Inc()
}

func (m *Metrics) ObserveCommand(command, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, outcome).Inc()
}
