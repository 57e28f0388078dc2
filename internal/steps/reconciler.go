package steps

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/stride/internal/observability"
	"github.com/sadopc/stride/internal/store"
)

// DefaultPersistThreshold is the minimum growth, in steps, between two
// writes of daily_steps.
const DefaultPersistThreshold = 10

// ErrNegativeReading is returned for a source reading below zero.
var ErrNegativeReading = errors.New("negative step reading")

// Prefs is the typed key-value contract the reconciler needs from the
// shared store.
type Prefs interface {
	GetInt(key string) (int64, error)
	GetString(key string) (string, error)
	Apply(edits ...store.Edit) error
}

// History receives per-day totals.
type History interface {
	RecordDay(day string, steps, goal int64) error
}

// State is the in-process view of the current day.
type State struct {
	Day           string
	Baseline      int64 // raw cumulative count at the start of tracking for Day
	Offset        int64 // steps carried across a sensor counter reset
	Baselined     bool
	Current       int64
	LastPersisted int64
	LastRaw       int64
	Phase         Phase
}

// Result describes the outcome of one observed reading.
type Result struct {
	Day       string
	Steps     int64
	Persisted bool
	Rollover  bool
	Phase     Phase
}

type Option func(*Reconciler)

func WithHistory(h History) Option {
	return func(r *Reconciler) { r.history = h }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Reconciler) { r.log = l.WithField("component", "reconciler") }
}

// WithPersistThreshold sets the step growth needed before daily_steps is
// rewritten. Values below 1 mean every change is written.
func WithPersistThreshold(n int64) Option {
	return func(r *Reconciler) {
		if n < 1 {
			n = 1
		}
		r.threshold = n
	}
}

func WithMerge(m MergeFunc) Option {
	return func(r *Reconciler) { r.merge = m }
}

// Reconciler converts raw readings into a non-decreasing daily count.
// It is safe for concurrent use; callers are expected to drive it from
// one sampler plus occasional lifecycle triggers.
type Reconciler struct {
	mu        sync.Mutex
	prefs     Prefs
	history   History
	log       logrus.FieldLogger
	threshold int64
	merge     MergeFunc
	st        State
}

func New(prefs Prefs, opts ...Option) *Reconciler {
	r := &Reconciler{
		prefs:     prefs,
		log:       logrus.StandardLogger().WithField("component", "reconciler"),
		threshold: DefaultPersistThreshold,
		merge:     MaxMerge,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns a copy of the current in-process state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.st
}

// Load removes corrupted keys and restores the service baseline written by
// a previous run, so a restart in the middle of a day keeps counting from
// the same baseline.
func (r *Reconciler) Load(now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.sweepCorrupted(); err != nil {
		return err
	}

	today := DayOf(now)
	baseline, haveBaseline, err := r.lookupInt(store.KeyServiceSteps)
	if err != nil {
		return err
	}
	day, haveDay, err := r.lookupString(store.KeyServiceDate)
	if err != nil {
		return err
	}
	if !haveDay {
		day = today
	}
	offset, err := r.readInt(store.KeyServiceOffset, 0)
	if err != nil {
		return err
	}

	// A zero counter is a valid baseline; only a missing key means none.
	r.st = State{Day: day}
	if haveBaseline && haveDay {
		r.st.Baseline = baseline
		r.st.Offset = offset
		r.st.Baselined = true
		r.st.Phase = PhaseBaselined
	}

	storedDate, err := r.readString(store.KeyStepsDate, "")
	if err != nil {
		return err
	}
	if day == today && storedDate == today {
		stored, err := r.readInt(store.KeyDailySteps, 0)
		if err != nil {
			return err
		}
		r.st.Current = stored
		r.st.LastPersisted = stored
	}

	r.log.WithFields(logrus.Fields{
		"day":      r.st.Day,
		"baseline": r.st.Baseline,
		"current":  r.st.Current,
	}).Debug("loaded service data")
	return nil
}

// Observe reconciles a raw cumulative reading, one that is not reset at
// midnight, taken at now.
func (r *Reconciler) Observe(raw int64, now time.Time) (Result, error) {
	if raw < 0 {
		return Result{}, fmt.Errorf("observe %d: %w", raw, ErrNegativeReading)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	observability.RecordReading("cumulative")
	today := DayOf(now)
	r.st.LastRaw = raw

	rolled := false
	if r.st.Day != today {
		ok, err := r.rollover(today, TriggerReading)
		if err != nil {
			return Result{}, err
		}
		rolled = ok
	}

	justBaselined := false
	if !r.st.Baselined {
		if !rolled {
			r.log.WithField("raw", raw).Info("no baseline for today, starting from current reading")
		}
		if err := r.baselineAt(raw); err != nil {
			return Result{}, err
		}
		justBaselined = true
	}

	if raw < r.st.Baseline {
		r.log.WithFields(logrus.Fields{
			"raw":      raw,
			"baseline": r.st.Baseline,
			"carried":  r.st.Current,
		}).Warn("step counter went backwards, re-baselining")
		r.st.Baseline = raw
		r.st.Offset = r.st.Current
		if err := r.prefs.Apply(r.serviceEdits()...); err != nil {
			return Result{}, fmt.Errorf("save service baseline: %w", err)
		}
	}

	service := raw - r.st.Baseline + r.st.Offset

	stored, err := r.readInt(store.KeyDailySteps, 0)
	if err != nil {
		return Result{}, err
	}
	storedDate, err := r.readString(store.KeyStepsDate, "")
	if err != nil {
		return Result{}, err
	}
	device, haveDevice, err := r.lookupInt(store.KeyDeviceSteps)
	if err != nil {
		return Result{}, err
	}

	var final int64
	var edits []store.Edit
	force := false
	if storedDate == today && haveDevice {
		// Another writer has a baseline for today.
		app := max(raw-device, 0)
		final = max(r.merge(service, app, stored), stored)
	} else {
		final = service
		if storedDate == today {
			final = max(final, stored)
		} else {
			force = true
		}
		published := max(raw-service, 0)
		if force || !haveDevice || device != published {
			edits = append(edits,
				store.IntEdit(store.KeyDeviceSteps, published),
				store.StringEdit(store.KeyStepsDate, today),
			)
		}
	}
	final = max(final, r.st.Current)
	r.st.Current = final

	persisted := false
	if force || final-r.st.LastPersisted >= r.threshold {
		edits = append(edits, store.IntEdit(store.KeyDailySteps, final))
		edits = append(edits, r.serviceEdits()...)
		persisted = true
	}
	if err := r.prefs.Apply(edits...); err != nil {
		return Result{}, fmt.Errorf("persist steps: %w", err)
	}
	if persisted {
		r.st.LastPersisted = final
		observability.RecordPersist(final)
		r.recordHistory(today, final)
	}
	if !justBaselined {
		r.st.Phase = PhaseAccumulating
	}

	r.log.WithFields(logrus.Fields{
		"raw":     raw,
		"service": service,
		"daily":   final,
	}).Debug("reading reconciled")

	return Result{Day: today, Steps: final, Persisted: persisted, Rollover: rolled, Phase: r.st.Phase}, nil
}

// ObserveDaily reconciles a reading that already counts steps since local
// midnight, as pedometer query APIs report them. No baseline is involved.
func (r *Reconciler) ObserveDaily(steps int64, now time.Time) (Result, error) {
	if steps < 0 {
		return Result{}, fmt.Errorf("observe daily %d: %w", steps, ErrNegativeReading)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	observability.RecordReading("since_midnight")
	today := DayOf(now)
	rolled := false
	if r.st.Day != today {
		ok, err := r.rollover(today, TriggerReading)
		if err != nil {
			return Result{}, err
		}
		rolled = ok
	}

	stored, err := r.readInt(store.KeyDailySteps, 0)
	if err != nil {
		return Result{}, err
	}
	storedDate, err := r.readString(store.KeyStepsDate, "")
	if err != nil {
		return Result{}, err
	}

	final := steps
	if storedDate == today {
		final = max(final, stored)
	}
	final = max(final, r.st.Current)
	r.st.Current = final
	r.st.Phase = PhaseAccumulating

	persisted := false
	if storedDate != today || final-r.st.LastPersisted >= r.threshold {
		err := r.prefs.Apply(
			store.IntEdit(store.KeyDailySteps, final),
			store.StringEdit(store.KeyStepsDate, today),
		)
		if err != nil {
			return Result{}, fmt.Errorf("persist steps: %w", err)
		}
		r.st.LastPersisted = final
		persisted = true
		observability.RecordPersist(final)
		r.recordHistory(today, final)
	}
	return Result{Day: today, Steps: final, Persisted: persisted, Rollover: rolled, Phase: r.st.Phase}, nil
}

// MaybeRolloverDay resets the day if now falls on a different calendar day
// than the one being tracked. Every trigger calls this same function;
// repeated calls for the same day are no-ops and report false.
func (r *Reconciler) MaybeRolloverDay(now time.Time, trigger Trigger) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rollover(DayOf(now), trigger)
}

func (r *Reconciler) rollover(today string, trigger Trigger) (bool, error) {
	storedDate, err := r.readString(store.KeyStepsDate, "")
	if err != nil {
		return false, err
	}

	if r.st.Day == today {
		if storedDate == today {
			return false, nil
		}
		// Same day for us, but the date key is missing or stale: publish
		// what we have rather than zeroing it.
		err := r.prefs.Apply(
			store.IntEdit(store.KeyDailySteps, r.st.Current),
			store.StringEdit(store.KeyStepsDate, today),
		)
		if err != nil {
			return false, fmt.Errorf("republish steps: %w", err)
		}
		r.st.LastPersisted = r.st.Current
		return false, nil
	}

	prev := r.st
	if prev.Day != "" && storedDate == prev.Day {
		if stored, err := r.readInt(store.KeyDailySteps, 0); err == nil {
			prev.Current = max(prev.Current, stored)
		}
	}
	if prev.Day != "" && prev.Current > 0 {
		r.recordHistory(prev.Day, prev.Current)
	}

	var edits []store.Edit
	if storedDate != today {
		edits = append(edits,
			store.IntEdit(store.KeyDailySteps, 0),
			store.StringEdit(store.KeyStepsDate, today),
			store.RemoveEdit(store.KeyDeviceSteps),
		)
	}
	r.st = State{Day: today, Phase: PhaseUninitialized}
	edits = append(edits, r.serviceEdits()...)
	if err := r.prefs.Apply(edits...); err != nil {
		return false, fmt.Errorf("reset day: %w", err)
	}

	observability.RecordRollover(string(trigger))
	r.log.WithFields(logrus.Fields{
		"day":     today,
		"was":     prev.Day,
		"trigger": trigger,
	}).Info("new day detected")
	return true, nil
}

// Flush writes any count and baseline not yet persisted. It is called when
// tracking stops.
func (r *Reconciler) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.st.Day == "" {
		return nil
	}
	edits := r.serviceEdits()
	storedDate, err := r.readString(store.KeyStepsDate, "")
	if err != nil {
		return err
	}
	dirty := storedDate == r.st.Day && r.st.Current > r.st.LastPersisted
	if dirty {
		edits = append(edits, store.IntEdit(store.KeyDailySteps, r.st.Current))
	}
	if err := r.prefs.Apply(edits...); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if dirty {
		r.st.LastPersisted = r.st.Current
		observability.RecordPersist(r.st.Current)
		r.recordHistory(r.st.Day, r.st.Current)
	}
	return nil
}

// Current returns the best known count for now's day: the larger of the
// stored value and this process's value.
func (r *Reconciler) Current(now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	today := DayOf(now)
	var v int64
	storedDate, err := r.readString(store.KeyStepsDate, "")
	if err != nil {
		return 0, err
	}
	if storedDate == today {
		if v, err = r.readInt(store.KeyDailySteps, 0); err != nil {
			return 0, err
		}
	}
	if r.st.Day == today {
		v = max(v, r.st.Current)
	}
	return v, nil
}

// Goal returns the daily goal set by the application layer.
func (r *Reconciler) Goal() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.goal()
}

func (r *Reconciler) goal() (int64, error) {
	g, err := r.readInt(store.KeyDailyGoal, store.DefaultGoal)
	if err != nil {
		return store.DefaultGoal, err
	}
	if g <= 0 {
		return store.DefaultGoal, nil
	}
	return g, nil
}

func (r *Reconciler) baselineAt(raw int64) error {
	r.st.Baseline = raw
	r.st.Offset = 0
	r.st.Baselined = true
	r.st.Phase = PhaseBaselined
	if err := r.prefs.Apply(r.serviceEdits()...); err != nil {
		return fmt.Errorf("save service baseline: %w", err)
	}
	return nil
}

// serviceEdits writes the baseline, or removes it while it is pending.
func (r *Reconciler) serviceEdits() []store.Edit {
	if !r.st.Baselined {
		return []store.Edit{
			store.RemoveEdit(store.KeyServiceSteps),
			store.StringEdit(store.KeyServiceDate, r.st.Day),
			store.RemoveEdit(store.KeyServiceOffset),
		}
	}
	return []store.Edit{
		store.IntEdit(store.KeyServiceSteps, r.st.Baseline),
		store.StringEdit(store.KeyServiceDate, r.st.Day),
		store.IntEdit(store.KeyServiceOffset, r.st.Offset),
	}
}

func (r *Reconciler) recordHistory(day string, steps int64) {
	if r.history == nil {
		return
	}
	goal, _ := r.goal()
	if err := r.history.RecordDay(day, steps, goal); err != nil {
		r.log.WithError(err).WithField("day", day).Warn("failed to record history")
	}
}

var intKeys = []string{
	store.KeyDailySteps,
	store.KeyDeviceSteps,
	store.KeyServiceSteps,
	store.KeyServiceOffset,
	store.KeyDailyGoal,
}

var stringKeys = []string{
	store.KeyStepsDate,
	store.KeyServiceDate,
}

func (r *Reconciler) sweepCorrupted() error {
	for _, k := range intKeys {
		if _, err := r.readInt(k, 0); err != nil {
			return err
		}
	}
	for _, k := range stringKeys {
		if _, err := r.readString(k, ""); err != nil {
			return err
		}
	}
	return nil
}

// lookupInt reports whether key holds a valid int. Wrong-typed keys are
// removed and reported as absent. Only store failures are returned.
func (r *Reconciler) lookupInt(key string) (int64, bool, error) {
	v, err := r.prefs.GetInt(key)
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, store.ErrAbsent):
		return 0, false, nil
	case errors.Is(err, store.ErrTypeMismatch):
		return 0, false, r.dropCorrupted(key, err)
	default:
		return 0, false, err
	}
}

func (r *Reconciler) lookupString(key string) (string, bool, error) {
	v, err := r.prefs.GetString(key)
	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, store.ErrAbsent):
		return "", false, nil
	case errors.Is(err, store.ErrTypeMismatch):
		return "", false, r.dropCorrupted(key, err)
	default:
		return "", false, err
	}
}

// readInt returns def for absent or wrong-typed keys.
func (r *Reconciler) readInt(key string, def int64) (int64, error) {
	v, ok, err := r.lookupInt(key)
	if !ok {
		return def, err
	}
	return v, nil
}

func (r *Reconciler) readString(key, def string) (string, error) {
	v, ok, err := r.lookupString(key)
	if !ok {
		return def, err
	}
	return v, nil
}

func (r *Reconciler) dropCorrupted(key string, cause error) error {
	r.log.WithError(cause).WithField("key", key).Warn("cleaning corrupted key")
	observability.RecordCorruption(key)
	if err := r.prefs.Apply(store.RemoveEdit(key)); err != nil {
		return fmt.Errorf("remove corrupted %q: %w", key, err)
	}
	return nil
}
