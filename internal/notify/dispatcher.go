package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/atomic"

	"profmon/internal/models"
	"profmon/internal/providers"
	"profmon/internal/structures"
)

// Report summarizes one Dispatch call. Failures never reach the caller's
// control flow; they are only reported.
type Report struct {
	Delivered    int
	Failures     []*SinkError
	ChangeLogErr error
}

func (r Report) Failed() bool {
	return len(r.Failures) > 0 || r.ChangeLogErr != nil
}

type Dispatcher struct {
	sinks       []Sink
	changeLog   *ChangeLog
	sendTimeout time.Duration
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface

	delivered atomic.Int64
	failed    atomic.Int64
}

// NewDispatcher bounds every single delivery by sendTimeout; zero
// disables the bound.
func NewDispatcher(sinks []Sink, changeLog *ChangeLog, sendTimeout time.Duration, logger providers.Logger, metrics providers.MetricsProviderInterface) *Dispatcher {
	return &Dispatcher{
		sinks:       sinks,
		changeLog:   changeLog,
		sendTimeout: sendTimeout,
		logger:      logger,
		metrics:     metrics,
	}
}

// Dispatch delivers events to every sink concurrently. Each sink gets the
// events in order. The change log is written after all sinks return,
// whatever their outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, events []models.ChangeEvent) Report {
	var report Report
	if len(events) == 0 {
		return report
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, sink := range d.sinks {
		wg.Add(1)
		go func(s Sink) {
			defer wg.Done()
			delivered, failures := d.deliver(ctx, s, events)
			mu.Lock()
			report.Delivered += delivered
			report.Failures = append(report.Failures, failures...)
			mu.Unlock()
		}(sink)
	}
	wg.Wait()

	for _, ev := range events {
		d.metrics.IncChanges(ev.Target, string(ev.Kind))
	}

	if d.changeLog != nil {
		if err := d.changeLog.Append(events); err != nil {
			report.ChangeLogErr = err
			d.logger.Errorf(providers.TypeNotify, "Change log write failed: %s", err)
		}
	}
	return report
}

func (d *Dispatcher) deliver(ctx context.Context, s Sink, events []models.ChangeEvent) (delivered int, failures []*SinkError) {
	var stalled error
	for _, ev := range events {
		if !accepts(s, ev.Kind) {
			continue
		}
		err := stalled
		if err == nil {
			err = d.send(ctx, s, ev)
			if errors.Is(err, errSendTimeout) {
				// the sink is still busy with this event; skip the rest of the batch
				stalled = err
			}
		}
		if err != nil {
			sinkErr := &SinkError{Sink: s.Name(), Event: ev, Err: err}
			failures = append(failures, sinkErr)
			d.failed.Inc()
			d.metrics.IncSinkFailures(s.Name())
			d.logger.Errorf(providers.TypeNotify, "%s", sinkErr)
			continue
		}
		delivered++
		d.delivered.Inc()
	}
	return delivered, failures
}

var errSendTimeout = errors.New("delivery timed out")

// send runs one delivery under the send deadline. A sink that ignores its
// context is abandoned once the deadline passes.
func (d *Dispatcher) send(ctx context.Context, s Sink, ev models.ChangeEvent) error {
	if d.sendTimeout <= 0 {
		return safeSend(ctx, s, ev)
	}
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- safeSend(ctx, s, ev)
	}()
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w after %s: %w", errSendTimeout, d.sendTimeout, ctx.Err())
	}
}

func safeSend(ctx context.Context, s Sink, ev models.ChangeEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Send(ctx, ev)
}

// Initial forwards a first baseline to the sinks that display it.
func (d *Dispatcher) Initial(ctx context.Context, snap *models.Snapshot) {
	for _, s := range d.sinks {
		if o, ok := s.(BaselineObserver); ok {
			o.Initial(ctx, snap)
		}
	}
}

func (d *Dispatcher) SinkNames() []string {
	names := make([]string, 0, len(d.sinks))
	for _, s := range d.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Stats returns delivered and failed deliveries since start.
func (d *Dispatcher) Stats() (delivered, failed int64) {
	return d.delivered.Load(), d.failed.Load()
}

// NewNotifier wires the change log and the configured sinks into a
// Dispatcher. The cleanup releases sink resources.
func NewNotifier(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, client *http.Client, hub *Hub) (*Dispatcher, func(), error) {
	changeLog, err := NewChangeLog(conf.Notify.ChangeLog)
	if err != nil {
		return nil, nil, err
	}
	sinks, cleanup, err := NewSinks(context.Background(), conf, logger, client, hub)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return NewDispatcher(sinks, changeLog, conf.Notify.SendTimeout, logger, metrics), cleanup, nil
}
