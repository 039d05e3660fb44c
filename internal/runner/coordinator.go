package runner

import (
	"context"
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"profmon/internal/fetch"
	"profmon/internal/models"
	"profmon/internal/providers"
	"profmon/internal/schedule"
	"profmon/internal/store"
	"profmon/internal/structures"
)

// Coordinator is the shared context of all runners: it owns the store,
// the decorated fetcher, the dispatcher and the scheduler, and replaces any
// process-wide state.
type Coordinator struct {
	runners []*Runner
	byName  map[string]*Runner

	scheduler *schedule.Scheduler
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface

	livenessInterval time.Duration
	cron             *gron.Cron
	wg               sync.WaitGroup
	done             chan struct{}
	startOnce        sync.Once
}

func NewCoordinator(
	conf *structures.Config,
	fetcher fetch.Fetcher,
	st store.StateStore,
	dispatcher Dispatcher,
	scheduler *schedule.Scheduler,
	observers []LivenessObserver,
	logger providers.Logger,
	metrics providers.MetricsProviderInterface,
) *Coordinator {
	c := &Coordinator{
		byName:           make(map[string]*Runner, len(conf.Targets)),
		scheduler:        scheduler,
		logger:           logger,
		metrics:          metrics,
		livenessInterval: conf.Schedule.LivenessInterval,
		done:             make(chan struct{}),
	}

	deps := Deps{
		Fetcher:    fetcher,
		Store:      st,
		Dispatcher: dispatcher,
		Scheduler:  scheduler,
		Observers:  observers,
		Logger:     logger,
		Metrics:    metrics,
	}
	n := len(conf.Targets)
	for i, t := range conf.Targets {
		interval := conf.Schedule.Interval
		if t.Interval > 0 {
			interval = t.Interval
		}
		offset := t.Stagger
		if offset <= 0 {
			offset = scheduler.Stagger(i, n, conf.Schedule.Interval, conf.Schedule.Stagger)
		}
		r := New(t.Username, Options{
			Interval:             interval,
			IntervalStep:         conf.Schedule.IntervalStep,
			MinInterval:          conf.Schedule.MinInterval,
			MaxConsecutiveErrors: conf.Schedule.MaxConsecutiveErrors,
			DetailedStories:      conf.Fetch.DetailedStories,
			StartOffset:          offset,
		}, deps)
		c.runners = append(c.runners, r)
		c.byName[t.Username] = r
	}
	return c
}

// Start launches one goroutine per target and the liveness job.
func (c *Coordinator) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.metrics.SetActiveTargets(len(c.runners))
		for _, r := range c.runners {
			c.wg.Add(1)
			go func(r *Runner) {
				defer c.wg.Done()
				r.Run(ctx)
				c.logger.Infof(providers.TypeRunner, "Runner %s exited in state %s", r.Username(), r.View().State)
				c.metrics.SetActiveTargets(c.active())
			}(r)
		}

		if c.livenessInterval > 0 {
			c.cron = gron.New()
			c.cron.AddFunc(gron.Every(c.livenessInterval), c.Beat)
			c.cron.Start()
		}

		go func() {
			c.wg.Wait()
			if c.cron != nil {
				c.cron.Stop()
			}
			close(c.done)
		}()
	})
}

// Beat sends one liveness signal from every runner.
func (c *Coordinator) Beat() {
	now := time.Now()
	for _, r := range c.runners {
		r.Beat(now)
	}
}

// Done is closed when every runner is terminal.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Trigger delivers cmd to one target. It reports whether the target
// exists and accepted the command.
func (c *Coordinator) Trigger(username string, cmd Command) (found, accepted bool) {
	r, ok := c.byName[username]
	if !ok {
		return false, false
	}
	return true, r.Send(cmd)
}

// Broadcast delivers cmd to every live target and returns how many
// accepted it.
func (c *Coordinator) Broadcast(cmd Command) int {
	n := 0
	for _, r := range c.runners {
		if r.Send(cmd) {
			n++
		}
	}
	c.logger.Infof(providers.TypeApp, "Broadcast %s to %d target(s)", cmd, n)
	return n
}

// Views returns dashboard copies of every target in configuration order.
func (c *Coordinator) Views() []models.TargetState {
	views := make([]models.TargetState, 0, len(c.runners))
	for _, r := range c.runners {
		views = append(views, r.View())
	}
	return views
}

func (c *Coordinator) View(username string) (models.TargetState, bool) {
	r, ok := c.byName[username]
	if !ok {
		return models.TargetState{}, false
	}
	return r.View(), true
}

func (c *Coordinator) active() int {
	n := 0
	for _, r := range c.runners {
		if !r.View().State.Terminal() {
			n++
		}
	}
	return n
}
