// Package runner drives one monitored target through
// fetch, diff, persist, notify and sleep, and coordinates all targets of
// the process.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"profmon/internal/diff"
	"profmon/internal/fetch"
	"profmon/internal/models"
	"profmon/internal/notify"
	"profmon/internal/providers"
	"profmon/internal/schedule"
	"profmon/internal/store"
)

const commandBuffer = 8

type Dispatcher interface {
	Dispatch(ctx context.Context, events []models.ChangeEvent) notify.Report
	Initial(ctx context.Context, snap *models.Snapshot)
}

// LivenessObserver receives periodic beats from every live runner.
type LivenessObserver interface {
	Beat(target string, beats int64, at time.Time)
}

type Options struct {
	Interval             time.Duration
	IntervalStep         time.Duration
	MinInterval          time.Duration
	MaxConsecutiveErrors int
	DetailedStories      bool
	StartOffset          time.Duration
}

type Deps struct {
	Fetcher    fetch.Fetcher
	Store      store.StateStore
	Dispatcher Dispatcher
	Scheduler  *schedule.Scheduler
	Observers  []LivenessObserver
	Logger     providers.Logger
	Metrics    providers.MetricsProviderInterface
	Now        func() time.Time
}

type Runner struct {
	username string
	opts     Options
	deps     Deps
	commands chan Command
	done     chan struct{}

	// loop-owned
	baseline    *models.Snapshot
	rateLimited int

	mu    sync.RWMutex
	state models.TargetState
}

func New(username string, opts Options, deps Deps) *Runner {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.MinInterval <= 0 {
		opts.MinInterval = time.Minute
	}
	opts.MinInterval = min(opts.MinInterval, opts.Interval)
	return &Runner{
		username: username,
		opts:     opts,
		deps:     deps,
		commands: make(chan Command, commandBuffer),
		done:     make(chan struct{}),
		state: models.TargetState{
			Username: username,
			State:    models.StateIdle,
			Interval: opts.Interval,
		},
	}
}

func (r *Runner) Username() string {
	return r.username
}

// Done is closed once the runner reached a terminal state.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Send queues a control command for the sleeping state. It reports false
// when the runner is terminal or the queue is full.
func (r *Runner) Send(cmd Command) bool {
	select {
	case <-r.done:
		return false
	default:
	}
	select {
	case r.commands <- cmd:
		return true
	default:
		return false
	}
}

// View returns a copy of the dashboard state.
func (r *Runner) View() models.TargetState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	view := r.state
	view.Baseline = r.state.Baseline.Clone()
	return view
}

// Beat records one liveness signal and forwards it to observers. Terminal
// runners stay silent.
func (r *Runner) Beat(now time.Time) {
	r.mu.Lock()
	if r.state.State.Terminal() {
		r.mu.Unlock()
		return
	}
	r.state.LivenessBeats++
	r.state.LastBeat = now
	beats := r.state.LivenessBeats
	r.mu.Unlock()

	r.deps.Metrics.SetLastHeartbeat(r.username, now)
	for _, o := range r.deps.Observers {
		o.Beat(r.username, beats, now)
	}
}

func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	r.restore(ctx)
	next := r.deps.Scheduler.First(r.deps.Now(), r.opts.StartOffset)
	for {
		if !r.sleepUntil(ctx, next) {
			return
		}
		var terminal bool
		next, terminal = r.poll(ctx)
		if terminal {
			return
		}
	}
}

func (r *Runner) restore(ctx context.Context) {
	rec, err := r.deps.Store.Load(ctx, r.username)
	switch {
	case err != nil && store.IsKind(err, store.CorruptRecord):
		r.deps.Logger.Warnf(providers.TypeRunner, "Baseline for %s is corrupt, starting empty: %s", r.username, err)
		return
	case err != nil:
		r.deps.Logger.Errorf(providers.TypeRunner, "Failed to load baseline for %s, starting empty: %s", r.username, err)
		return
	case rec == nil || rec.Snapshot == nil:
		r.deps.Logger.Infof(providers.TypeRunner, "No baseline for %s yet", r.username)
		return
	}

	r.baseline = rec.Snapshot
	r.update(func(s *models.TargetState) {
		s.Baseline = rec.Snapshot.Clone()
		s.Checks = rec.Checks
		s.LastCheck = rec.SavedAt
	})
	r.deps.Logger.Infof(providers.TypeRunner, "Restored baseline for %s from %s", r.username, rec.SavedAt.Format(time.RFC3339))
}

// sleepUntil waits for t, a recheck, stop or ctx. It reports whether a
// poll should follow.
func (r *Runner) sleepUntil(ctx context.Context, t time.Time) bool {
	r.update(func(s *models.TargetState) {
		s.State = models.StateSleeping
		s.NextCheck = t
	})
	r.deps.Metrics.SetNextCheck(r.username, t)

	timer := time.NewTimer(max(t.Sub(r.deps.Now()), 0))
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			return true
		case <-ctx.Done():
			r.terminate(models.StateStopped, "")
			return false
		case cmd := <-r.commands:
			switch cmd {
			case CmdRecheck:
				r.deps.Logger.Infof(providers.TypeRunner, "Manual recheck of %s", r.username)
				return true
			case CmdStop:
				r.deps.Logger.Infof(providers.TypeRunner, "Stop requested for %s", r.username)
				r.terminate(models.StateStopped, "")
				return false
			case CmdIncreaseInterval, CmdDecreaseInterval:
				r.adjustInterval(cmd)
			}
		}
	}
}

func (r *Runner) adjustInterval(cmd Command) {
	r.update(func(s *models.TargetState) {
		if cmd == CmdIncreaseInterval {
			s.Interval += r.opts.IntervalStep
		} else {
			s.Interval = max(s.Interval-r.opts.IntervalStep, r.opts.MinInterval)
		}
	})
	r.deps.Logger.Infof(providers.TypeRunner, "Interval of %s is now %s", r.username, r.interval())
}

func (r *Runner) checks() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Checks
}

func (r *Runner) interval() time.Duration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Interval
}

// poll runs one cycle and returns the next poll time, or terminal.
func (r *Runner) poll(ctx context.Context) (time.Time, bool) {
	r.setState(models.StateFetching)
	start := r.deps.Now()
	snap, err := r.deps.Fetcher.Fetch(ctx, r.username)
	r.deps.Metrics.ObserveFetchDuration(r.username, r.deps.Now().Sub(start))

	degraded := false
	if err != nil {
		kind := fetch.KindOf(err)
		if kind == fetch.AuthRequired && snap != nil {
			degraded = true
			r.deps.Logger.Warnf(providers.TypeRunner, "Degraded fetch for %s: %s", r.username, err)
		} else {
			return r.handleFailure(ctx, err, kind)
		}
	}

	// The snapshot is complete; finish the cycle even if shutdown started.
	cycleCtx := context.WithoutCancel(ctx)
	now := r.deps.Now()

	r.setState(models.StateDiffing)
	events, derr := diff.Diff(r.baseline, snap, now, diff.Options{DetailedStories: r.opts.DetailedStories})
	if derr != nil {
		r.deps.Logger.Errorf(providers.TypeRunner, "Diff for %s failed, replacing baseline: %s", r.username, derr)
		events = []models.ChangeEvent{models.NewErrorEvent(r.username, derr, now)}
	}

	// Fields this poll could not see keep their last known value, so a
	// partial fetch never erases the baseline. A different target replaces it.
	commit := snap
	if derr == nil {
		commit = snap.Merge(r.baseline)
	}
	first := r.baseline == nil

	r.setState(models.StatePersisting)
	checks := r.checks() + 1
	if serr := r.persist(cycleCtx, commit, checks, now); serr != nil {
		events = append(events, models.NewErrorEvent(r.username, serr, now))
	}
	r.baseline = commit

	r.setState(models.StateNotifying)
	if first {
		r.deps.Dispatcher.Initial(cycleCtx, commit)
	}
	if len(events) > 0 {
		report := r.deps.Dispatcher.Dispatch(cycleCtx, events)
		r.deps.Logger.Infof(providers.TypeRunner, "%s: %d change(s), %d sink failure(s)", r.username, len(events), len(report.Failures))
	}

	outcome := "ok"
	if degraded {
		outcome = "degraded"
	}
	r.deps.Metrics.IncPolls(r.username, outcome)

	r.rateLimited = 0
	next := r.deps.Scheduler.Next(r.deps.Now(), r.interval())
	r.update(func(s *models.TargetState) {
		s.Baseline = commit.Clone()
		s.Checks = checks
		s.Failures = 0
		s.LastCheck = now
		s.LastError = ""
	})
	return next, false
}

// handleFailure handles a failed fetch: NotFound is fatal, everything else
// backs off until MaxConsecutiveErrors is reached.
func (r *Runner) handleFailure(ctx context.Context, err error, kind fetch.ErrorKind) (time.Time, bool) {
	r.deps.Metrics.IncPolls(r.username, kind.String())
	if kind == fetch.NotFound {
		r.fatal(ctx, err)
		return time.Time{}, true
	}

	var failures int
	r.update(func(s *models.TargetState) {
		s.State = models.StateErrorRecovering
		s.Failures++
		s.LastError = err.Error()
		failures = s.Failures
	})
	r.deps.Logger.Warnf(providers.TypeRunner, "Fetch for %s failed (%d in a row): %s", r.username, failures, err)

	if r.opts.MaxConsecutiveErrors > 0 && failures >= r.opts.MaxConsecutiveErrors {
		r.fatal(ctx, fmt.Errorf("giving up after %d consecutive failures: %w", failures, err))
		return time.Time{}, true
	}

	now := r.deps.Now()
	if kind == fetch.RateLimited {
		r.rateLimited++
		return r.deps.Scheduler.Backoff(now, r.interval(), r.rateLimited, fetch.RetryAfter(err)), false
	}
	return r.deps.Scheduler.Next(now, r.interval()), false
}

// persist saves the record, retrying once on failure.
func (r *Runner) persist(ctx context.Context, snap *models.Snapshot, checks int64, now time.Time) error {
	rec := &store.Record{
		Version:  store.RecordVersion,
		Username: r.username,
		Snapshot: snap,
		Checks:   checks,
		SavedAt:  now,
	}
	start := time.Now()
	defer func() { r.deps.Metrics.ObservePersistenceDuration(time.Since(start)) }()

	err := r.deps.Store.Save(ctx, rec)
	if err == nil {
		return nil
	}
	r.deps.Logger.Warnf(providers.TypeStore, "Saving %s failed, retrying: %s", r.username, err)
	if err = r.deps.Store.Save(ctx, rec); err != nil {
		r.deps.Logger.Errorf(providers.TypeStore, "Saving %s failed again, keeping in-memory baseline: %s", r.username, err)
		return err
	}
	return nil
}

// fatal emits the single terminal error event.
func (r *Runner) fatal(ctx context.Context, err error) {
	r.deps.Logger.Errorf(providers.TypeRunner, "Target %s stopped: %s", r.username, err)
	ev := models.NewErrorEvent(r.username, err, r.deps.Now())
	r.deps.Dispatcher.Dispatch(context.WithoutCancel(ctx), []models.ChangeEvent{ev})
	r.terminate(models.StateFatal, err.Error())
}

func (r *Runner) terminate(state models.RunnerState, reason string) {
	r.update(func(s *models.TargetState) {
		s.State = state
		s.NextCheck = time.Time{}
		if reason != "" {
			s.LastError = reason
		}
	})
}

func (r *Runner) setState(state models.RunnerState) {
	r.update(func(s *models.TargetState) { s.State = state })
}

func (r *Runner) update(fn func(s *models.TargetState)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state)
}
