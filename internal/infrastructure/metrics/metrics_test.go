package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordLogin(t *testing.T) {
	m := GetDefaultMetrics()

	before := testutil.ToFloat64(m.Logins.WithLabelValues("code_sent"))
	m.RecordLogin("code_sent")
	assert.Equal(t, before+1, testutil.ToFloat64(m.Logins.WithLabelValues("code_sent")))

	beforeUnknown := testutil.ToFloat64(m.Logins.WithLabelValues("unknown"))
	m.RecordLogin("")
	assert.Equal(t, beforeUnknown+1, testutil.ToFloat64(m.Logins.WithLabelValues("unknown")))
}

func TestMetrics_Workers(t *testing.T) {
	m := GetDefaultMetrics()

	started := testutil.ToFloat64(m.WorkersStarted)
	stopped := testutil.ToFloat64(m.WorkersStopped)

	m.RecordWorkerStarted()
	m.RecordWorkerStopped()
	m.UpdateActiveWorkers(3)

	assert.Equal(t, started+1, testutil.ToFloat64(m.WorkersStarted))
	assert.Equal(t, stopped+1, testutil.ToFloat64(m.WorkersStopped))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ActiveWorkers))
}

func TestMetrics_Reactions(t *testing.T) {
	m := GetDefaultMetrics()

	sent := testutil.ToFloat64(m.ReactionsSent)
	m.RecordReaction(0.2)
	assert.Equal(t, sent+1, testutil.ToFloat64(m.ReactionsSent))

	flood := testutil.ToFloat64(m.ReactionErrors.WithLabelValues("flood_wait"))
	m.RecordReactionError("flood_wait")
	assert.Equal(t, flood+1, testutil.ToFloat64(m.ReactionErrors.WithLabelValues("flood_wait")))

	// These only have to not panic
	m.RecordReactionDropped()
	m.RecordRateLimit()
	m.RecordStoreWrite()
	m.RecordStoreError("save")
	m.RecordEvent()
	m.RecordEventError()
	m.RecordVerification("success")
	m.RecordQRLogin("success")
	m.RecordWorkerDisconnect()
}
