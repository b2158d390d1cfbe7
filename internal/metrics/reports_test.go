package metrics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/harvestsmart/harvestsmart/pkg/report"
	"github.com/harvestsmart/harvestsmart/pkg/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okSubmitter struct{}

func (okSubmitter) Submit(context.Context, report.Submission) (*report.Ack, error) {
	return &report.Ack{Success: true}, nil
}

type nopRenderer struct{}

func (nopRenderer) Render(context.Context, *report.DailyReport) ([]byte, error) {
	return []byte("%PDF-"), nil
}

type failingDates struct{}

func (failingDates) Dates(context.Context) ([]string, error) { return nil, errors.New("disk gone") }
func (failingDates) LoadAll(context.Context, string) *report.Today { return nil }

func clockAt(day int) func() time.Time {
	return func() time.Time { return time.Date(2025, 3, day, 9, 0, 0, 0, time.UTC) }
}

func newController(t *testing.T, s store.Store, now func() time.Time) *report.Controller {
	t.Helper()
	c, err := report.NewController(report.ControllerConfig{
		Store: s, Renderer: nopRenderer{}, Submitter: okSubmitter{}, Location: time.UTC, Now: now,
	})
	require.NoError(t, err)
	return c
}

func TestReportCollectorReadsSharedStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()

	// Detections and the submission go through their own components, as in `detect` and `report submit`.
	for _, d := range []struct {
		day int
		res report.DetectionResult
	}{
		{13, report.DetectionResult{ImageURI: "a", TotalBunches: 4, RipeLevels: report.RipeLevels{Ripe: 4}}},
		{14, report.DetectionResult{ImageURI: "b", TotalBunches: 6, RipeLevels: report.RipeLevels{Ripe: 3, Underripe: 2, Abnormal: 1}}},
		{14, report.DetectionResult{ImageURI: "c", TotalBunches: 2, RipeLevels: report.RipeLevels{Overripe: 2}}},
	} {
		acc, err := report.NewAccumulator(report.AccumulatorConfig{Store: s, Location: time.UTC, Now: clockAt(d.day)})
		require.NoError(t, err)
		_, err = acc.Merge(ctx, d.res)
		require.NoError(t, err)
	}
	submitter := newController(t, s, clockAt(13))
	_, err := submitter.Submit(ctx, submitter.LoadToday(ctx).Report)
	require.NoError(t, err)

	// The scraping side only shares the store.
	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)
	require.NoError(t, m.WatchReports(newController(t, s, clockAt(14))))

	expected := `
# HELP harvestsmart_report_bunches Bunches counted in the daily report
# TYPE harvestsmart_report_bunches gauge
harvestsmart_report_bunches{date="2025-03-13"} 4
harvestsmart_report_bunches{date="2025-03-14"} 8
# HELP harvestsmart_report_days Stored daily reports by submission status
# TYPE harvestsmart_report_days gauge
harvestsmart_report_days{status="pending"} 1
harvestsmart_report_days{status="sent"} 1
# HELP harvestsmart_report_photos Detections stored in the daily report
# TYPE harvestsmart_report_photos gauge
harvestsmart_report_photos{date="2025-03-13"} 1
harvestsmart_report_photos{date="2025-03-14"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.registry, strings.NewReader(expected),
		"harvestsmart_report_bunches", "harvestsmart_report_days", "harvestsmart_report_photos"))

	ripeness := `
# HELP harvestsmart_report_ripeness_bunches Bunches in the daily report by ripeness level
# TYPE harvestsmart_report_ripeness_bunches gauge
harvestsmart_report_ripeness_bunches{date="2025-03-13",level="abnormal"} 0
harvestsmart_report_ripeness_bunches{date="2025-03-13",level="overripe"} 0
harvestsmart_report_ripeness_bunches{date="2025-03-13",level="ripe"} 4
harvestsmart_report_ripeness_bunches{date="2025-03-13",level="underripe"} 0
harvestsmart_report_ripeness_bunches{date="2025-03-14",level="abnormal"} 1
harvestsmart_report_ripeness_bunches{date="2025-03-14",level="overripe"} 2
harvestsmart_report_ripeness_bunches{date="2025-03-14",level="ripe"} 3
harvestsmart_report_ripeness_bunches{date="2025-03-14",level="underripe"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.registry, strings.NewReader(ripeness), "harvestsmart_report_ripeness_bunches"))
}

func TestReportCollectorStoreError(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewReportCollector(failingDates{})))
	_, err := reg.Gather()
	assert.ErrorContains(t, err, "disk gone")
}
