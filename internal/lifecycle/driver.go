// Package lifecycle drives the reconciler from a step source: it samples on
// an interval and checks for a new day from three redundant triggers (a
// midnight alarm, a periodic poll and the foreground hook).
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sadopc/stride/internal/notify"
	"github.com/sadopc/stride/internal/source"
	"github.com/sadopc/stride/internal/steps"
	"github.com/sadopc/stride/internal/store"
)

// Flags persists the tracking switch so a restarted daemon can resume.
type Flags interface {
	GetBool(key string) (bool, error)
	PutBool(key string, v bool) error
}

// Config holds the driver's timing.
type Config struct {
	SampleInterval   time.Duration
	DayCheckDelay    time.Duration
	DayCheckInterval time.Duration
	NotifyEverySteps int64
	NotifyInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleInterval:   10 * time.Second,
		DayCheckDelay:    time.Minute,
		DayCheckInterval: 5 * time.Minute,
		NotifyEverySteps: 100,
		NotifyInterval:   5 * time.Minute,
	}
}

type Option func(*Driver)

func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = l.WithField("component", "lifecycle") }
}

func WithPresenter(p notify.Presenter) Option {
	return func(d *Driver) { d.pres = p }
}

func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// Driver owns the tracking session: one source, one reconciler and the
// notification presenter.
type Driver struct {
	rec   *steps.Reconciler
	src   source.Source
	flags Flags
	pres  notify.Presenter
	log   logrus.FieldLogger
	cfg   Config
	now   func() time.Time

	mu             sync.Mutex
	tracking       bool
	cancel         context.CancelFunc
	throttle       notify.Throttle
	presentPending bool
	wg             sync.WaitGroup
}

func New(rec *steps.Reconciler, src source.Source, flags Flags, cfg Config, opts ...Option) *Driver {
	d := &Driver{
		rec:   rec,
		src:   src,
		flags: flags,
		pres:  notify.Nop{},
		log:   logrus.StandardLogger().WithField("component", "lifecycle"),
		cfg:   cfg,
		now:   time.Now,
		throttle: notify.Throttle{
			EverySteps: cfg.NotifyEverySteps,
			Interval:   cfg.NotifyInterval,
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StartTracking opens the source and starts the sampler, the periodic day
// check and the midnight alarm. It is a no-op while already tracking. When
// the source is unavailable the error is returned and nothing starts.
func (d *Driver) StartTracking(ctx context.Context) error {
	d.mu.Lock()
	if d.tracking {
		d.mu.Unlock()
		return nil
	}
	if err := d.src.Open(ctx); err != nil {
		d.mu.Unlock()
		if errors.Is(err, source.ErrUnavailable) {
			d.log.WithError(err).Warn("step sensor not available, tracking not started")
		}
		return fmt.Errorf("start tracking: %w", err)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	// Add before publishing tracking, so a concurrent stop waits for the loops.
	d.wg.Add(3)
	d.tracking = true
	d.cancel = cancel
	d.throttle.Reset()
	d.mu.Unlock()

	if err := d.flags.PutBool(store.KeyTracking, true); err != nil {
		d.log.WithError(err).Warn("failed to save tracking flag")
	}
	d.log.WithField("source", d.src.Kind()).Info("tracking started")

	if err := d.DayMayHaveChanged(runCtx, steps.TriggerForeground); err != nil {
		d.log.WithError(err).Warn("initial sample failed")
	}

	go d.sampleLoop(runCtx)
	go d.pollLoop(runCtx)
	go d.alarmLoop(runCtx)
	return nil
}

// StopTracking stops every loop, flushes the reconciler and clears the
// tracking flag. Stored counts are left as they are.
func (d *Driver) StopTracking() error {
	stopped, err := d.halt()
	if !stopped {
		return nil
	}
	if ferr := d.flags.PutBool(store.KeyTracking, false); ferr != nil {
		err = errors.Join(err, fmt.Errorf("save tracking flag: %w", ferr))
	}
	d.log.Info("tracking stopped")
	return err
}

// Suspend stops tracking for process shutdown. Unlike StopTracking the
// tracking flag stays set, so Restore resumes on the next start.
func (d *Driver) Suspend() error {
	stopped, err := d.halt()
	if stopped {
		d.log.Info("tracking suspended")
	}
	return err
}

func (d *Driver) halt() (bool, error) {
	d.mu.Lock()
	if !d.tracking {
		d.mu.Unlock()
		return false, nil
	}
	cancel := d.cancel
	d.tracking = false
	d.cancel = nil
	d.mu.Unlock()

	cancel()
	d.wg.Wait()

	var errs []error
	if err := d.src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close source: %w", err))
	}
	if err := d.rec.Flush(); err != nil {
		errs = append(errs, err)
	}
	return true, errors.Join(errs...)
}

// Restore restarts tracking if it was enabled when the previous process
// exited.
func (d *Driver) Restore(ctx context.Context) error {
	on, err := d.flags.GetBool(store.KeyTracking)
	if errors.Is(err, store.ErrAbsent) || errors.Is(err, store.ErrTypeMismatch) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read tracking flag: %w", err)
	}
	if !on {
		return nil
	}
	d.log.Info("resuming tracking from previous run")
	return d.StartTracking(ctx)
}

func (d *Driver) Tracking() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracking
}

// Tick takes one reading and reconciles it.
func (d *Driver) Tick(ctx context.Context) error {
	raw, err := d.src.Read(ctx)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	now := d.now()

	var res steps.Result
	if d.src.Kind() == source.SinceMidnight {
		res, err = d.rec.ObserveDaily(raw, now)
	} else {
		res, err = d.rec.Observe(raw, now)
	}
	if err != nil {
		return err
	}
	d.present(res.Steps, now, res.Rollover)
	return nil
}

// DayMayHaveChanged runs the day check for trigger and, while tracking,
// samples straight away so a new baseline is taken promptly.
func (d *Driver) DayMayHaveChanged(ctx context.Context, trigger steps.Trigger) error {
	rolled, err := d.rec.MaybeRolloverDay(d.now(), trigger)
	if err != nil {
		return fmt.Errorf("day check (%s): %w", trigger, err)
	}
	if rolled {
		d.mu.Lock()
		d.throttle.Reset()
		d.mu.Unlock()
	}
	if !d.Tracking() {
		return nil
	}
	return d.Tick(ctx)
}

// Foreground is called when a user-facing surface comes up.
func (d *Driver) Foreground(ctx context.Context) error {
	return d.DayMayHaveChanged(ctx, steps.TriggerForeground)
}

func (d *Driver) CurrentSteps() (int64, error) {
	return d.rec.Current(d.now())
}

func (d *Driver) Goal() (int64, error) {
	return d.rec.Goal()
}

func (d *Driver) present(n int64, now time.Time, force bool) {
	d.mu.Lock()
	if force || d.presentPending {
		d.throttle.Reset()
	}
	allow := d.throttle.Allow(n, now)
	d.mu.Unlock()
	if !allow {
		return
	}

	goal, err := d.rec.Goal()
	if err != nil {
		d.log.WithError(err).Warn("failed to read goal")
	}
	err = d.pres.Present(notify.Render(n, goal))

	d.mu.Lock()
	d.presentPending = err != nil
	d.mu.Unlock()
	if err != nil {
		d.log.WithError(err).Warn("failed to present notification, will retry")
	}
}

func (d *Driver) sampleLoop(ctx context.Context) {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.log.WithError(err).Warn("sample failed")
			}
		}
	}
}

func (d *Driver) pollLoop(ctx context.Context) {
	defer d.wg.Done()
	timer := time.NewTimer(d.cfg.DayCheckDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.check(ctx, steps.TriggerPoll)
			timer.Reset(d.cfg.DayCheckInterval)
		}
	}
}

func (d *Driver) alarmLoop(ctx context.Context) {
	defer d.wg.Done()
	now := d.now()
	timer := time.NewTimer(NextMidnight(now).Sub(now))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			d.check(ctx, steps.TriggerAlarm)
			now = d.now()
			timer.Reset(NextMidnight(now).Sub(now))
		}
	}
}

func (d *Driver) check(ctx context.Context, trigger steps.Trigger) {
	if err := d.DayMayHaveChanged(ctx, trigger); err != nil && !errors.Is(err, context.Canceled) {
		d.log.WithError(err).WithField("trigger", trigger).Warn("day check failed")
	}
}

// NextMidnight returns the first local midnight strictly after t.
func NextMidnight(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day+1, 0, 0, 0, 0, t.Location())
}
