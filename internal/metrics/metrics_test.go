package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRegisterIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["clinicbook_appointment_cancelled_total"])
}

func TestCounters(t *testing.T) {
	before := counterValue(t, bookingAttempts.WithLabelValues("success"))
	IncBooking("success")
	assert.Equal(t, before+1, counterValue(t, bookingAttempts.WithLabelValues("success")))

	before = counterValue(t, depositCredited.WithLabelValues("payment"))
	AddDepositCredited("payment", 5)
	assert.Equal(t, before+5, counterValue(t, depositCredited.WithLabelValues("payment")))

	before = counterValue(t, appointmentsCancelled)
	IncAppointmentCancelled()
	assert.Equal(t, before+1, counterValue(t, appointmentsCancelled))

	before = counterValue(t, manualDecision.WithLabelValues("completed"))
	IncManualDecision("completed")
	assert.Equal(t, before+1, counterValue(t, manualDecision.WithLabelValues("completed")))

	IncHTTPRequest("/api/doctors", "200")
	assert.Equal(t, 1.0, counterValue(t, httpRequests.WithLabelValues("/api/doctors", "200")))
}

func TestHistograms(t *testing.T) {
	var m dto.Metric
	require.NoError(t, resolveDuration.Write(&m))
	before := m.GetHistogram().GetSampleCount()

	ObserveResolve(3 * time.Millisecond)
	ObserveLockWait(time.Millisecond)

	m.Reset()
	require.NoError(t, resolveDuration.Write(&m))
	assert.Equal(t, before+1, m.GetHistogram().GetSampleCount())
}
