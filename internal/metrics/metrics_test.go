package metrics

import (
	"errors"
	"testing"

	"github.com/harvestsmart/harvestsmart/pkg/report"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ report.Observer = (*Metrics)(nil)

func TestObserve(t *testing.T) {
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveMerge("2025-03-14", 6, nil)
	m.ObserveMerge("2025-03-14", 4, nil)
	m.ObserveMerge("2025-03-14", 9, errors.New("store down"))
	m.ObserveSubmit("2025-03-14", report.OutcomeFailed)
	m.ObserveSubmit("2025-03-14", report.OutcomeSent)
	m.ObserveSubmit("2025-03-14", report.OutcomeAlreadySent)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.MergesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MergesTotal.WithLabelValues("error")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.BunchesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SubmissionsTotal.WithLabelValues(report.OutcomeSent)))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
