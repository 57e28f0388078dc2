package steps

import (
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadopc/stride/internal/store"
)

var (
	day1 = time.Date(2024, time.January, 5, 9, 30, 0, 0, time.Local)
	day2 = time.Date(2024, time.January, 6, 0, 0, 5, 0, time.Local)
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestReconciler(t *testing.T, s *store.Store, opts ...Option) (*Reconciler, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts = append([]Option{WithHistory(s), WithLogger(logger)}, opts...)
	r := New(s, opts...)
	require.NoError(t, r.Load(day1))
	return r, hook
}

func storedSteps(t *testing.T, s *store.Store) (int64, string) {
	t.Helper()
	n, err := s.GetInt(store.KeyDailySteps)
	require.NoError(t, err)
	d, err := s.GetString(store.KeyStepsDate)
	require.NoError(t, err)
	return n, d
}

// ============================================================
// Cold start and accumulation
// ============================================================

func TestColdStartBaselinesAtFirstReading(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	assert.Equal(t, PhaseUninitialized, r.State().Phase)

	res, err := r.Observe(5000, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Steps)
	assert.Equal(t, PhaseBaselined, res.Phase)
	assert.False(t, res.Rollover)

	n, d := storedSteps(t, s)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, "2024-01-05", d)

	baseline, err := s.GetInt(store.KeyServiceSteps)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), baseline)

	device, err := s.GetInt(store.KeyDeviceSteps)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), device, "device baseline should be published for later writers")
}

func TestAccumulatesFromBaseline(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)

	_, err := r.Observe(5000, day1)
	require.NoError(t, err)
	res, err := r.Observe(5042, day1.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, int64(42), res.Steps)
	assert.True(t, res.Persisted)
	assert.Equal(t, PhaseAccumulating, res.Phase)
	n, _ := storedSteps(t, s)
	assert.Equal(t, int64(42), n)
}

func TestPersistThreshold(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)

	r.Observe(1000, day1)
	res, err := r.Observe(1009, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(9), res.Steps)
	assert.False(t, res.Persisted, "9 steps is below the write threshold")

	n, _ := storedSteps(t, s)
	assert.Equal(t, int64(0), n)

	res, err = r.Observe(1010, day1)
	require.NoError(t, err)
	assert.True(t, res.Persisted)
	n, _ = storedSteps(t, s)
	assert.Equal(t, int64(10), n)
}

func TestPersistThresholdOption(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s, WithPersistThreshold(0))

	r.Observe(1000, day1)
	res, err := r.Observe(1001, day1)
	require.NoError(t, err)
	assert.True(t, res.Persisted)
}

func TestPersistedValueReadBack(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Apply(
		store.IntEdit(store.KeyDailySteps, 342),
		store.StringEdit(store.KeyStepsDate, "2024-01-05"),
	))
	r, _ := newTestReconciler(t, s)

	for i := 0; i < 3; i++ {
		v, err := r.Current(day1.Add(time.Duration(i) * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(342), v)
	}
}

func TestNonDecreasingWithinDay(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)

	readings := []int64{2000, 2050, 2051, 2120, 2300, 2301, 2400}
	var last int64
	for i, raw := range readings {
		res, err := r.Observe(raw, day1.Add(time.Duration(i)*time.Minute))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Steps, last)
		last = res.Steps

		if i == 3 {
			// A co-writer lowers the stored value; it must not pull us down.
			require.NoError(t, s.PutInt(store.KeyDailySteps, 5))
		}
	}

	n, _ := storedSteps(t, s)
	assert.Equal(t, int64(400), n)
}

// ============================================================
// Multi-writer merge
// ============================================================

func TestMaxMergeWithAppBaseline(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Apply(
		store.IntEdit(store.KeyServiceSteps, 1000),
		store.StringEdit(store.KeyServiceDate, "2024-01-05"),
		store.IntEdit(store.KeyDeviceSteps, 970),
		store.StringEdit(store.KeyStepsDate, "2024-01-05"),
		store.IntEdit(store.KeyDailySteps, 100),
	))
	r, _ := newTestReconciler(t, s)

	// service = 1120-1000 = 120, app = 1120-970 = 150, stored = 100
	res, err := r.Observe(1120, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(150), res.Steps)

	n, _ := storedSteps(t, s)
	assert.Equal(t, int64(150), n)
}

func TestMaxMergeStoredWins(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Apply(
		store.IntEdit(store.KeyServiceSteps, 1000),
		store.StringEdit(store.KeyServiceDate, "2024-01-05"),
		store.IntEdit(store.KeyDeviceSteps, 1050),
		store.StringEdit(store.KeyStepsDate, "2024-01-05"),
		store.IntEdit(store.KeyDailySteps, 800),
	))
	r, _ := newTestReconciler(t, s)

	res, err := r.Observe(1100, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(800), res.Steps)
}

func TestMaxMerge(t *testing.T) {
	tests := []struct {
		service, app, stored, want int64
	}{
		{120, 150, 100, 150},
		{200, 150, 100, 200},
		{0, 0, 7, 7},
		{0, 0, 0, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxMerge(tt.service, tt.app, tt.stored))
	}
}

func TestCustomMergePolicy(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Apply(
		store.IntEdit(store.KeyServiceSteps, 1000),
		store.StringEdit(store.KeyServiceDate, "2024-01-05"),
		store.IntEdit(store.KeyDeviceSteps, 900),
		store.StringEdit(store.KeyStepsDate, "2024-01-05"),
	))
	serviceOnly := func(service, _, _ int64) int64 { return service }
	r, _ := newTestReconciler(t, s, WithMerge(serviceOnly))

	res, err := r.Observe(1020, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), res.Steps)
}

func TestCustomMergeNeverLowersStored(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Apply(
		store.IntEdit(store.KeyServiceSteps, 1000),
		store.StringEdit(store.KeyServiceDate, "2024-01-05"),
		store.IntEdit(store.KeyDeviceSteps, 900),
		store.StringEdit(store.KeyStepsDate, "2024-01-05"),
	))
	serviceOnly := func(service, _, _ int64) int64 { return service }
	r, _ := newTestReconciler(t, s, WithMerge(serviceOnly))

	// Another writer has counted further than this process.
	require.NoError(t, s.PutInt(store.KeyDailySteps, 5000))

	res, err := r.Observe(1700, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), res.Steps)

	n, _ := storedSteps(t, s)
	assert.Equal(t, int64(5000), n, "a merge policy must not lower the stored count")
}

// ============================================================
// Restart and counter reset
// ============================================================

func TestRestartResumesBaseline(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(3000, day1)
	r.Observe(3250, day1)
	require.NoError(t, r.Flush())

	// New process, same store.
	r2, _ := newTestReconciler(t, s)
	st := r2.State()
	assert.True(t, st.Baselined)
	assert.Equal(t, int64(3000), st.Baseline)
	assert.Equal(t, int64(250), st.Current)

	res, err := r2.Observe(3300, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Steps)
}

func TestRestartResumesZeroBaseline(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(0, day1)
	r.Observe(500, day1)
	require.NoError(t, r.Flush())

	baseline, err := s.GetInt(store.KeyServiceSteps)
	require.NoError(t, err)
	assert.Equal(t, int64(0), baseline)

	restarted, _ := newTestReconciler(t, s)
	st := restarted.State()
	assert.True(t, st.Baselined, "a counter that started at zero is still a baseline")
	assert.Equal(t, int64(0), st.Baseline)

	res, err := restarted.Observe(600, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(600), res.Steps)
}

func TestRolloverClearsBaselineKeys(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(0, day1)
	r.Observe(300, day1)

	ok, err := r.MaybeRolloverDay(day2, TriggerAlarm)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.GetInt(store.KeyServiceSteps)
	assert.ErrorIs(t, err, store.ErrAbsent, "pending baseline is stored as absent, not zero")
	_, err = s.GetInt(store.KeyDeviceSteps)
	assert.ErrorIs(t, err, store.ErrAbsent)
	d, err := s.GetString(store.KeyServiceDate)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-06", d)

	// A restart before the first reading of the new day baselines afresh.
	restarted := New(s, WithHistory(s))
	require.NoError(t, restarted.Load(day2))
	assert.False(t, restarted.State().Baselined)

	res, err := restarted.Observe(450, day2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Steps)
	assert.Equal(t, int64(450), restarted.State().Baseline)
}

func TestCounterResetCarriesSteps(t *testing.T) {
	s := newTestStore(t)
	r, hook := newTestReconciler(t, s)
	r.Observe(8000, day1)
	r.Observe(8400, day1)

	// Device rebooted: the cumulative counter starts over.
	res, err := r.Observe(30, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(400), res.Steps)

	res, err = r.Observe(130, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.Steps)

	offset, err := s.GetInt(store.KeyServiceOffset)
	require.NoError(t, err)
	assert.Equal(t, int64(400), offset)

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "counter reset should be logged")
}

func TestNegativeReading(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	_, err := r.Observe(-1, day1)
	assert.ErrorIs(t, err, ErrNegativeReading)
	_, err = r.ObserveDaily(-1, day1)
	assert.ErrorIs(t, err, ErrNegativeReading)
}

// ============================================================
// Day rollover
// ============================================================

func TestRolloverOnReading(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(1000, day1)
	r.Observe(1600, day1)

	res, err := r.Observe(1700, day2)
	require.NoError(t, err)
	assert.True(t, res.Rollover)
	assert.Equal(t, int64(0), res.Steps)

	n, d := storedSteps(t, s)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, "2024-01-06", d)

	st := r.State()
	assert.Equal(t, "2024-01-06", st.Day)
	assert.Equal(t, int64(1700), st.Baseline)

	prev, err := s.GetDay("2024-01-05")
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, int64(600), prev.Steps)

	res, err = r.Observe(1725, day2)
	require.NoError(t, err)
	assert.Equal(t, int64(25), res.Steps)
}

func TestRolloverIdempotentAcrossTriggers(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(1000, day1)
	r.Observe(1600, day1)

	triggers := []Trigger{TriggerAlarm, TriggerPoll, TriggerForeground, TriggerAlarm}
	rolled := 0
	for _, tr := range triggers {
		ok, err := r.MaybeRolloverDay(day2, tr)
		require.NoError(t, err)
		if ok {
			rolled++
		}
	}
	assert.Equal(t, 1, rolled)

	n, d := storedSteps(t, s)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, "2024-01-06", d)
	assert.Equal(t, PhaseUninitialized, r.State().Phase)

	// Next reading baselines and does not report a second rollover.
	res, err := r.Observe(1800, day2)
	require.NoError(t, err)
	assert.False(t, res.Rollover)
	assert.Equal(t, int64(0), res.Steps)
	assert.Equal(t, int64(1800), r.State().Baseline)
}

func TestRolloverSameDayNoop(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(1000, day1)
	r.Observe(1500, day1)

	ok, err := r.MaybeRolloverDay(day1.Add(time.Hour), TriggerPoll)
	require.NoError(t, err)
	assert.False(t, ok)

	n, _ := storedSteps(t, s)
	assert.Equal(t, int64(500), n)
}

func TestRolloverAfterCoWriter(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(1000, day1)

	// The application layer rolled over first and has already counted.
	require.NoError(t, s.Apply(
		store.IntEdit(store.KeyDailySteps, 40),
		store.StringEdit(store.KeyStepsDate, "2024-01-06"),
		store.IntEdit(store.KeyDeviceSteps, 2000),
	))

	ok, err := r.MaybeRolloverDay(day2, TriggerForeground)
	require.NoError(t, err)
	assert.True(t, ok, "our own baseline still needs resetting")

	n, _ := storedSteps(t, s)
	assert.Equal(t, int64(40), n, "co-writer's count must survive")

	res, err := r.Observe(2050, day2)
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Steps)
}

func TestRepublishesMissingDateKey(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(1000, day1)
	r.Observe(1200, day1)
	require.NoError(t, s.Remove(store.KeyStepsDate))

	ok, err := r.MaybeRolloverDay(day1, TriggerPoll)
	require.NoError(t, err)
	assert.False(t, ok)

	n, d := storedSteps(t, s)
	assert.Equal(t, int64(200), n)
	assert.Equal(t, "2024-01-05", d)
}

// ============================================================
// Since-midnight sources
// ============================================================

func TestObserveDaily(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)

	res, err := r.ObserveDaily(120, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(120), res.Steps)
	assert.True(t, res.Persisted)

	// A lower report (e.g. query lag) never lowers the day.
	res, err = r.ObserveDaily(90, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(120), res.Steps)

	res, err = r.ObserveDaily(40, day2)
	require.NoError(t, err)
	assert.True(t, res.Rollover)
	assert.Equal(t, int64(40), res.Steps)

	n, d := storedSteps(t, s)
	assert.Equal(t, int64(40), n)
	assert.Equal(t, "2024-01-06", d)

	prev, err := s.GetDay("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, int64(120), prev.Steps)
}

// ============================================================
// Corruption
// ============================================================

func TestCorruptedKeysReadAsDefault(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Apply(
		store.StringEdit(store.KeyDailySteps, "lots"),
		store.StringEdit(store.KeyDailyGoal, "ten thousand"),
		store.IntEdit(store.KeyStepsDate, 20240105),
	))
	r, hook := newTestReconciler(t, s)

	_, err := s.GetInt(store.KeyDailySteps)
	assert.ErrorIs(t, err, store.ErrAbsent, "Load should remove the corrupted key")

	goal, err := r.Goal()
	require.NoError(t, err)
	assert.Equal(t, int64(store.DefaultGoal), goal)

	assert.NotEmpty(t, hook.AllEntries())

	// Next write leaves a valid value behind.
	_, err = r.Observe(100, day1)
	require.NoError(t, err)
	n, d := storedSteps(t, s)
	assert.Equal(t, int64(0), n)
	assert.Equal(t, "2024-01-05", d)
}

func TestCorruptionDuringReading(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(100, day1)

	require.NoError(t, s.PutString(store.KeyDeviceSteps, "bad"))
	res, err := r.Observe(150, day1)
	require.NoError(t, err)
	assert.Equal(t, int64(50), res.Steps)

	device, err := s.GetInt(store.KeyDeviceSteps)
	require.NoError(t, err)
	assert.Equal(t, int64(100), device)
}

func TestGoal(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)

	goal, err := r.Goal()
	require.NoError(t, err)
	assert.Equal(t, int64(10000), goal)

	s.PutInt(store.KeyDailyGoal, 6000)
	goal, _ = r.Goal()
	assert.Equal(t, int64(6000), goal)

	s.PutInt(store.KeyDailyGoal, 0)
	goal, _ = r.Goal()
	assert.Equal(t, int64(10000), goal)
}

// ============================================================
// Flush and store failures
// ============================================================

func TestFlushWritesPending(t *testing.T) {
	s := newTestStore(t)
	r, _ := newTestReconciler(t, s)
	r.Observe(1000, day1)
	r.Observe(1015, day1)
	r.Observe(1020, day1) // 5 more, below threshold

	n, _ := storedSteps(t, s)
	assert.Equal(t, int64(15), n)

	require.NoError(t, r.Flush())
	n, _ = storedSteps(t, s)
	assert.Equal(t, int64(20), n)

	d, err := s.GetDay("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, int64(20), d.Steps)
}

type brokenPrefs struct{}

var errDiskGone = errors.New("disk gone")

func (brokenPrefs) GetInt(string) (int64, error)     { return 0, errDiskGone }
func (brokenPrefs) GetString(string) (string, error) { return "", errDiskGone }
func (brokenPrefs) Apply(...store.Edit) error        { return errDiskGone }

func TestStoreFailurePropagates(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	r := New(brokenPrefs{}, WithLogger(logger))

	assert.ErrorIs(t, r.Load(day1), errDiskGone)
	_, err := r.Observe(10, day1)
	assert.ErrorIs(t, err, errDiskGone)
	_, err = r.MaybeRolloverDay(day2, TriggerAlarm)
	assert.ErrorIs(t, err, errDiskGone)
}

func TestDayOfAndPhase(t *testing.T) {
	assert.Equal(t, "2024-01-05", DayOf(day1))
	assert.Equal(t, "2024-01-06", DayOf(day2))
	assert.Equal(t, "accumulating", PhaseAccumulating.String())
	assert.Equal(t, "unknown", Phase(42).String())
}
