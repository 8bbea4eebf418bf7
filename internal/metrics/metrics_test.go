package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveReminder("member", nil)
	m.ObserveReminder("member", errors.New("boom"))
	m.ObserveDelivery("chat", nil)
	m.ObserveCommand("activate", "ok")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminders.WithLabelValues("member", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reminders.WithLabelValues("member", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("chat", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.commands.WithLabelValues("activate", "ok")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveReminder("member", nil)
		m.ObserveDelivery("email", errors.New("boom"))
		m.ObserveCommand("status", "not_found")
	})
}
