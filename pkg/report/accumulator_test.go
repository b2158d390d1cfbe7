package report

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/harvestsmart/harvestsmart/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAccumulator(t *testing.T, s store.Store) *Accumulator {
	t.Helper()
	a, err := NewAccumulator(AccumulatorConfig{Store: s, Location: time.UTC, Now: fixedClock(day1)})
	require.NoError(t, err)
	return a
}

func storedReport(t *testing.T, s store.Store, date string) *DailyReport {
	t.Helper()
	raw, ok, err := s.Get(context.Background(), ReportKey(date))
	require.NoError(t, err)
	require.True(t, ok, "report %s not stored", date)
	var rep DailyReport
	require.NoError(t, json.Unmarshal([]byte(raw), &rep))
	return &rep
}

func TestMergeExample(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	a := newTestAccumulator(t, s)

	_, err := a.Merge(ctx, det("file:///1.jpg", 6, 3, 2, 0, 1))
	require.NoError(t, err)
	rep, err := a.Merge(ctx, det("file:///2.jpg", 4, 1, 1, 1, 1))
	require.NoError(t, err)

	assert.Equal(t, "2025-03-14", rep.Date)
	assert.Equal(t, 10, rep.TotalBunches)
	assert.Equal(t, RipeLevels{Ripe: 4, Underripe: 3, Overripe: 1, Abnormal: 2}, rep.TotalRipeLevels)
	assert.Len(t, rep.Detections, 2)
	assert.Equal(t, "file:///1.jpg", rep.Detections[0].ImageURI)
	assert.Equal(t, day1, rep.Detections[1].Timestamp)

	assert.Equal(t, rep, storedReport(t, s, "2025-03-14"))
}

func TestMergeFirstDetectionCreatesReport(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	_ = newTestAccumulator(t, s)

	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys, "no merge, no report")

	a := newTestAccumulator(t, s)
	rep, err := a.Merge(ctx, det("file:///1.jpg", 6, 3, 2, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, 6, rep.TotalBunches)
	assert.Equal(t, RipeLevels{Ripe: 3, Underripe: 2, Abnormal: 1}, rep.TotalRipeLevels)
	assert.Len(t, rep.Detections, 1)

	keys, err = s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"report_2025-03-14"}, keys)
}

func TestMergeInvariantHoldsForRandomSequences(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 20; run++ {
		s := store.NewMemory()
		a := newTestAccumulator(t, s)
		var want int
		var wantLevels RipeLevels

		n := 1 + rng.Intn(40)
		for i := 0; i < n; i++ {
			d := det("img", rng.Intn(30), rng.Intn(10), rng.Intn(10), rng.Intn(10), rng.Intn(10))
			want += d.TotalBunches
			wantLevels = wantLevels.Add(d.RipeLevels)

			rep, err := a.Merge(ctx, d)
			require.NoError(t, err)
			require.True(t, rep.Consistent(), "run %d merge %d", run, i)
			require.Len(t, rep.Detections, i+1)
		}
		rep := storedReport(t, s, "2025-03-14")
		assert.Equal(t, want, rep.TotalBunches)
		assert.Equal(t, wantLevels, rep.TotalRipeLevels)
		assert.True(t, rep.Consistent())
	}
}

func TestMergeSplitsByDay(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	now := day1
	a, err := NewAccumulator(AccumulatorConfig{Store: s, Location: time.UTC, Now: func() time.Time { return now }})
	require.NoError(t, err)

	_, err = a.Merge(ctx, det("a", 1, 1, 0, 0, 0))
	require.NoError(t, err)
	now = day2
	_, err = a.Merge(ctx, det("b", 2, 0, 2, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, 1, storedReport(t, s, "2025-03-14").TotalBunches)
	assert.Equal(t, 2, storedReport(t, s, "2025-03-15").TotalBunches)
}

func TestMergeConcurrentNoLostUpdate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	obs := &countingObserver{}
	a, err := NewAccumulator(AccumulatorConfig{Store: s, Location: time.UTC, Now: fixedClock(day1), Observer: obs})
	require.NoError(t, err)

	const workers = 64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Merge(ctx, det("img", 3, 1, 1, 1, 0))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rep := storedReport(t, s, "2025-03-14")
	assert.Len(t, rep.Detections, workers)
	assert.Equal(t, 3*workers, rep.TotalBunches)
	assert.Equal(t, RipeLevels{Ripe: workers, Underripe: workers, Overripe: workers}, rep.TotalRipeLevels)
	assert.Equal(t, workers, obs.merges)
	assert.Zero(t, a.locks.size(), "idle date locks must be released")
}

func TestMergeRejectsInvalidBeforeStore(t *testing.T) {
	s := newFaultStore()
	a := newTestAccumulator(t, s)

	_, err := a.Merge(context.Background(), det("", 1, 1, 0, 0, 0))
	assert.ErrorIs(t, err, ErrInvalidDetection)
	assert.Zero(t, s.sets)
}

func TestMergeStoreFailuresLeaveReportUntouched(t *testing.T) {
	ctx := context.Background()
	s := newFaultStore()
	a := newTestAccumulator(t, s)

	_, err := a.Merge(ctx, det("a", 6, 3, 2, 0, 1))
	require.NoError(t, err)
	before, _ := s.raw(t, ReportKey("2025-03-14"))

	s.fail(true, false)
	_, err = a.Merge(ctx, det("b", 4, 1, 1, 1, 1))
	assert.ErrorIs(t, err, ErrPersistence)

	s.fail(false, true)
	_, err = a.Merge(ctx, det("b", 4, 1, 1, 1, 1))
	assert.ErrorIs(t, err, ErrPersistence)

	after, _ := s.raw(t, ReportKey("2025-03-14"))
	assert.Equal(t, before, after)
}

func TestMergeCorruptPayload(t *testing.T) {
	ctx := context.Background()
	s := newFaultStore()
	require.NoError(t, s.Memory.Set(ctx, ReportKey("2025-03-14"), "{not json"))
	a := newTestAccumulator(t, s)

	_, err := a.Merge(ctx, det("a", 1, 1, 0, 0, 0))
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, ErrCorruptReport)
	assert.Zero(t, s.sets)

	raw, _ := s.raw(t, ReportKey("2025-03-14"))
	assert.Equal(t, "{not json", raw)
}

func TestMergeReadsRecordsWrittenByOriginalClient(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	legacy := `{"date":"2025-03-14","detections":[{"imageUri":"content://media/1","totalBunches":6,"ripeLevels":{"ripe":3,"underripe":2,"overripe":0,"abnormal":1},"timestamp":"2025-03-14T02:11:09.123Z"}],"totalBunches":6,"totalRipeLevels":{"ripe":3,"underripe":2,"overripe":0,"abnormal":1}}`
	require.NoError(t, s.Set(ctx, ReportKey("2025-03-14"), legacy))

	rep, err := newTestAccumulator(t, s).Merge(ctx, det("b", 4, 1, 1, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, 10, rep.TotalBunches)
	assert.True(t, rep.Consistent())
}

func TestNewAccumulatorRequiresStore(t *testing.T) {
	_, err := NewAccumulator(AccumulatorConfig{})
	assert.Error(t, err)
}
