package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_BasicRegistration(t *testing.T) {
	if TicketsEnqueuedTotal == nil || MatchesStartedTotal == nil || QueueDepth == nil {
		t.Fatal("core collectors are nil")
	}
	if AllocationsTotal == nil || FormationDuration == nil || TokenVerificationsTotal == nil {
		t.Fatal("labelled collectors are nil")
	}
}

func TestMetrics_AllocationsTotal(t *testing.T) {
	tests := []struct {
		name  string
		label string
		incN  int
	}{
		{name: "success label", label: "success", incN: 1},
		{name: "retry label", label: "retry", incN: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(AllocationsTotal.WithLabelValues(tt.label))
			for i := 0; i < tt.incN; i++ {
				AllocationsTotal.WithLabelValues(tt.label).Inc()
			}
			after := testutil.ToFloat64(AllocationsTotal.WithLabelValues(tt.label))
			diff := after - before
			if diff != float64(tt.incN) {
				t.Fatalf("counter diff mismatch\nexpected: %#v\nactual: %#v", float64(tt.incN), diff)
			}
		})
	}
}

func TestMetrics_QueueDepth(t *testing.T) {
	QueueDepth.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(QueueDepth))
	QueueDepth.Set(0)
	assert.Equal(t, 0.0, testutil.ToFloat64(QueueDepth))
}

func TestMetrics_FormationDuration(t *testing.T) {
	tests := []struct {
		name    string
		observe float64
	}{
		{name: "fast fill", observe: 0.2},
		{name: "full grace window", observe: 5.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			FormationDuration.Observe(tt.observe)
			count := testutil.CollectAndCount(FormationDuration)
			assert.Greater(t, count, 0, "histogram not collected; count=%#v", count)
		})
	}
}
