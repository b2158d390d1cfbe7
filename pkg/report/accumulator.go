package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/harvestsmart/harvestsmart/pkg/store"
)

// AccumulatorConfig holds the collaborators of an Accumulator.
type AccumulatorConfig struct {
	Store    store.Store    // required
	Location *time.Location // day boundary; nil = time.Local
	Now      func() time.Time
	Log      Logger   // optional
	Observer Observer // optional
}

// Accumulator merges detection results into the store's daily aggregates.
type Accumulator struct {
	store store.Store
	loc   *time.Location
	now   func() time.Time
	log   Logger
	obs   Observer
	locks *dateLocks
}

func NewAccumulator(cfg AccumulatorConfig) (*Accumulator, error) {
	if cfg.Store == nil {
		return nil, errors.New("accumulator: nil store")
	}
	a := &Accumulator{
		store: cfg.Store,
		loc:   cfg.Location,
		now:   cfg.Now,
		log:   cfg.Log,
		obs:   cfg.Observer,
		locks: newDateLocks(),
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.log == nil {
		a.log = nopLogger{}
	}
	if a.obs == nil {
		a.obs = nopObserver{}
	}
	return a, nil
}

// Merge stamps result with the current time and folds it into today's report.
// On error the stored report is left exactly as it was.
func (a *Accumulator) Merge(ctx context.Context, result DetectionResult) (*DailyReport, error) {
	if err := result.Validate(); err != nil {
		return nil, err
	}
	now := a.now()
	date := DateKey(now, a.loc)
	result.Timestamp = now.UTC()

	unlock := a.locks.lock(date)
	defer unlock()

	rep, err := a.mergeLocked(ctx, date, result)
	a.obs.ObserveMerge(date, result.TotalBunches, err)
	if err != nil {
		a.log.Errorf("Merge into report %s failed: %v", date, err)
		return nil, err
	}
	a.log.Debugf("Merged %d bunches from %s into report %s (%d detections)", result.TotalBunches, result.ImageURI, date, len(rep.Detections))
	return rep.Clone(), nil
}

func (a *Accumulator) mergeLocked(ctx context.Context, date string, result DetectionResult) (*DailyReport, error) {
	key := ReportKey(date)
	raw, ok, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrPersistence, key, err)
	}

	var rep *DailyReport
	if ok {
		rep, err = decodeReport(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrPersistence, key, err)
		}
		rep.append(result)
	} else {
		rep = newDailyReport(date, result)
	}

	data, err := json.Marshal(rep)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %s: %v", ErrPersistence, key, err)
	}
	if err := a.store.Set(ctx, key, string(data)); err != nil {
		return nil, fmt.Errorf("%w: write %s: %v", ErrPersistence, key, err)
	}
	return rep, nil
}

func decodeReport(raw string) (*DailyReport, error) {
	var rep DailyReport
	if err := json.Unmarshal([]byte(raw), &rep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptReport, err)
	}
	if rep.Date == "" {
		return nil, fmt.Errorf("%w: missing date", ErrCorruptReport)
	}
	return &rep, nil
}
