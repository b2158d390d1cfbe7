package report

import (
	"fmt"
	"time"
)

// RipeLevels counts bunches per ripeness class.
type RipeLevels struct {
	Ripe      int `json:"ripe"`
	Underripe int `json:"underripe"`
	Overripe  int `json:"overripe"`
	Abnormal  int `json:"abnormal"`
}

// Add returns the element-wise sum of r and o.
func (r RipeLevels) Add(o RipeLevels) RipeLevels {
	return RipeLevels{
		Ripe:      r.Ripe + o.Ripe,
		Underripe: r.Underripe + o.Underripe,
		Overripe:  r.Overripe + o.Overripe,
		Abnormal:  r.Abnormal + o.Abnormal,
	}
}

func (r RipeLevels) validate() error {
	if r.Ripe < 0 || r.Underripe < 0 || r.Overripe < 0 || r.Abnormal < 0 {
		return fmt.Errorf("negative ripeness count %+v", r)
	}
	return nil
}

// DetectionResult is the outcome of one detection run on one image.
type DetectionResult struct {
	ImageURI     string     `json:"imageUri"`
	TotalBunches int        `json:"totalBunches"`
	RipeLevels   RipeLevels `json:"ripeLevels"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Validate rejects results that cannot be merged.
func (d DetectionResult) Validate() error {
	if d.ImageURI == "" {
		return fmt.Errorf("%w: missing image reference", ErrInvalidDetection)
	}
	if d.TotalBunches < 0 {
		return fmt.Errorf("%w: negative bunch count %d", ErrInvalidDetection, d.TotalBunches)
	}
	if err := d.RipeLevels.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDetection, err)
	}
	return nil
}

// DailyReport aggregates every detection merged on one calendar day.
// TotalBunches and TotalRipeLevels always cover all merges, even when
// Detections has been cut down for display by Tail.
type DailyReport struct {
	Date            string            `json:"date"`
	Detections      []DetectionResult `json:"detections"`
	TotalBunches    int               `json:"totalBunches"`
	TotalRipeLevels RipeLevels        `json:"totalRipeLevels"`
}

func newDailyReport(date string, first DetectionResult) *DailyReport {
	return &DailyReport{
		Date:            date,
		Detections:      []DetectionResult{first},
		TotalBunches:    first.TotalBunches,
		TotalRipeLevels: first.RipeLevels,
	}
}

func (r *DailyReport) append(d DetectionResult) {
	r.Detections = append(r.Detections, d)
	r.TotalBunches += d.TotalBunches
	r.TotalRipeLevels = r.TotalRipeLevels.Add(d.RipeLevels)
}

// Empty reports whether r holds no detections.
func (r *DailyReport) Empty() bool {
	return r == nil || len(r.Detections) == 0
}

// Consistent reports whether the running totals match the detection list.
// Only meaningful for a report that has not been cut by Tail.
func (r *DailyReport) Consistent() bool {
	var bunches int
	var levels RipeLevels
	for _, d := range r.Detections {
		bunches += d.TotalBunches
		levels = levels.Add(d.RipeLevels)
	}
	return bunches == r.TotalBunches && levels == r.TotalRipeLevels
}

// Clone returns a deep copy of r.
func (r *DailyReport) Clone() *DailyReport {
	if r == nil {
		return nil
	}
	out := *r
	out.Detections = append([]DetectionResult(nil), r.Detections...)
	return &out
}

// Tail returns a copy of r keeping only the last n detections. Totals are untouched.
// n <= 0 keeps everything.
func (r *DailyReport) Tail(n int) *DailyReport {
	out := r.Clone()
	if out == nil || n <= 0 || len(out.Detections) <= n {
		return out
	}
	out.Detections = out.Detections[len(out.Detections)-n:]
	return out
}
