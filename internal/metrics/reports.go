package metrics

import (
	"context"
	"time"

	"github.com/harvestsmart/harvestsmart/pkg/report"
	"github.com/prometheus/client_golang/prometheus"
)

// ReportReader is the read side of report.Controller.
type ReportReader interface {
	Dates(ctx context.Context) ([]string, error)
	LoadAll(ctx context.Context, date string) *report.Today
}

// ReportCollector reads the stored reports on every scrape, so any process
// sharing the store sees merges and submissions made elsewhere.
type ReportCollector struct {
	reader  ReportReader
	timeout time.Duration

	photos   *prometheus.Desc
	bunches  *prometheus.Desc
	ripeness *prometheus.Desc
	days     *prometheus.Desc
}

func NewReportCollector(reader ReportReader) *ReportCollector {
	return &ReportCollector{
		reader:  reader,
		timeout: 10 * time.Second,
		photos: prometheus.NewDesc("harvestsmart_report_photos",
			"Detections stored in the daily report", []string{"date"}, nil),
		bunches: prometheus.NewDesc("harvestsmart_report_bunches",
			"Bunches counted in the daily report", []string{"date"}, nil),
		ripeness: prometheus.NewDesc("harvestsmart_report_ripeness_bunches",
			"Bunches in the daily report by ripeness level", []string{"date", "level"}, nil),
		days: prometheus.NewDesc("harvestsmart_report_days",
			"Stored daily reports by submission status", []string{"status"}, nil),
	}
}

func (c *ReportCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.photos
	ch <- c.bunches
	ch <- c.ripeness
	ch <- c.days
}

func (c *ReportCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	dates, err := c.reader.Dates(ctx)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.days, err)
		return
	}

	var sent, pending float64
	for _, date := range dates {
		t := c.reader.LoadAll(ctx, date)
		if t == nil {
			continue
		}
		if t.Sent {
			sent++
		} else {
			pending++
		}
		rep := t.Report
		ch <- prometheus.MustNewConstMetric(c.photos, prometheus.GaugeValue, float64(len(rep.Detections)), date)
		ch <- prometheus.MustNewConstMetric(c.bunches, prometheus.GaugeValue, float64(rep.TotalBunches), date)
		l := rep.TotalRipeLevels
		for level, n := range map[string]int{
			"ripe":      l.Ripe,
			"underripe": l.Underripe,
			"overripe":  l.Overripe,
			"abnormal":  l.Abnormal,
		} {
			ch <- prometheus.MustNewConstMetric(c.ripeness, prometheus.GaugeValue, float64(n), date, level)
		}
	}
	ch <- prometheus.MustNewConstMetric(c.days, prometheus.GaugeValue, sent, "sent")
	ch <- prometheus.MustNewConstMetric(c.days, prometheus.GaugeValue, pending, "pending")
}

// WatchReports adds store-derived report gauges to the registry.
func (m *Metrics) WatchReports(reader ReportReader) error {
	return m.registry.Register(NewReportCollector(reader))
}
