package report

import (
	"strings"
	"time"
)

const (
	dateLayout   = "2006-01-02"
	reportPrefix = "report_"
	sentSuffix   = "_sent"
	sentValue    = "true"

	// DefaultDisplayLimit caps how many detections readers keep for display.
	DefaultDisplayLimit = 100
)

// DateKey truncates t to a calendar day in loc. A nil loc means time.Local.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(dateLayout)
}

// ValidDate reports whether s is a YYYY-MM-DD date.
func ValidDate(s string) bool {
	_, err := time.Parse(dateLayout, s)
	return err == nil
}

// ReportKey is the store key holding the aggregate for date.
func ReportKey(date string) string { return reportPrefix + date }

// SentKey is the store key holding the sent-flag for date.
func SentKey(date string) string { return reportPrefix + date + sentSuffix }

// DatesFromKeys picks the report dates out of a store key listing.
func DatesFromKeys(keys []string) []string {
	var dates []string
	for _, k := range keys {
		if !strings.HasPrefix(k, reportPrefix) || strings.HasSuffix(k, sentSuffix) {
			continue
		}
		if d := strings.TrimPrefix(k, reportPrefix); ValidDate(d) {
			dates = append(dates, d)
		}
	}
	return dates
}
