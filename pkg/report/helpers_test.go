package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/harvestsmart/harvestsmart/pkg/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	day1 = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	day2 = day1.Add(24 * time.Hour)
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func det(uri string, bunches, ripe, under, over, abnormal int) DetectionResult {
	return DetectionResult{
		ImageURI:     uri,
		TotalBunches: bunches,
		RipeLevels:   RipeLevels{Ripe: ripe, Underripe: under, Overripe: over, Abnormal: abnormal},
	}
}

// faultStore wraps a memory store and fails on demand.
type faultStore struct {
	*store.Memory
	mu      sync.Mutex
	failGet bool
	failSet bool
	sets    int
}

var errStoreDown = errors.New("disk on fire")

func newFaultStore() *faultStore { return &faultStore{Memory: store.NewMemory()} }

func (f *faultStore) fail(get, set bool) {
	f.mu.Lock()
	f.failGet, f.failSet = get, set
	f.mu.Unlock()
}

func (f *faultStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	fail := f.failGet
	f.mu.Unlock()
	if fail {
		return "", false, errStoreDown
	}
	return f.Memory.Get(ctx, key)
}

func (f *faultStore) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	fail := f.failSet
	if !fail {
		f.sets++
	}
	f.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return f.Memory.Set(ctx, key, value)
}

func (f *faultStore) raw(t *testing.T, key string) (string, bool) {
	t.Helper()
	v, ok, err := f.Memory.Get(context.Background(), key)
	require.NoError(t, err)
	return v, ok
}

type fakeRenderer struct {
	err   error
	calls int
}

func (r *fakeRenderer) Render(_ context.Context, rep *DailyReport) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-1.3 " + rep.Date), nil
}

type fakeSubmitter struct {
	mu    sync.Mutex
	ack   *Ack
	err   error
	subs  []Submission
	enter chan struct{} // closed-over signal that Submit was entered
	hold  chan struct{} // Submit waits on this when non-nil
}

func (s *fakeSubmitter) Submit(ctx context.Context, sub Submission) (*Ack, error) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	enter, hold, ack, err := s.enter, s.hold, s.ack, s.err
	s.mu.Unlock()

	if enter != nil {
		enter <- struct{}{}
	}
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return ack, err
}

func (s *fakeSubmitter) set(ack *Ack, err error) {
	s.mu.Lock()
	s.ack, s.err = ack, err
	s.mu.Unlock()
}

func (s *fakeSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

type staticIdentity string

func (s staticIdentity) FarmerID(context.Context) (string, error) { return string(s), nil }

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) CaptureError(_ context.Context, err error, _ string) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

type countingObserver struct {
	mu       sync.Mutex
	merges   int
	failed   int
	outcomes []string
}

func (o *countingObserver) ObserveMerge(_ string, _ int, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
		return
	}
	o.merges++
}

func (o *countingObserver) ObserveSubmit(_ string, outcome string) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, outcome)
	o.mu.Unlock()
}
