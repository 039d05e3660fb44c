package notify

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profmon/internal/models"
	"profmon/internal/testutil"
)

var at = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func events() []models.ChangeEvent {
	return []models.ChangeEvent{
		models.NewChangeEvent("alice", models.KindBioChanged, "old", "new", at),
		models.NewChangeEvent("alice", models.KindFollowerRemoved, "b", "", at),
		models.NewChangeEvent("alice", models.KindFollowerAdded, "", "d", at),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func newTestDispatcher(t *testing.T, sinks ...Sink) (*Dispatcher, string, *testutil.MockMetrics) {
	t.Helper()
	return newTimedDispatcher(t, time.Second, sinks...)
}

func newTimedDispatcher(t *testing.T, sendTimeout time.Duration, sinks ...Sink) (*Dispatcher, string, *testutil.MockMetrics) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "log", "changes.csv")
	cl, err := NewChangeLog(path)
	require.NoError(t, err)
	metrics := &testutil.MockMetrics{}
	return NewDispatcher(sinks, cl, sendTimeout, &testutil.MockLogger{}, metrics), path, metrics
}

func TestDispatch_FailingSinkDoesNotAffectOthers(t *testing.T) {
	failing := &testutil.MockSink{SinkName: "smtp", Err: errors.New("connection refused")}
	healthy := &testutil.MockSink{SinkName: "ok"}
	d, path, metrics := newTestDispatcher(t, failing, healthy)

	evs := events()
	report := d.Dispatch(context.Background(), evs)

	assert.Len(t, healthy.Received(), 3)
	assert.Len(t, report.Failures, 3)
	assert.Equal(t, 3, report.Delivered)
	assert.NoError(t, report.ChangeLogErr)
	assert.True(t, report.Failed())
	assert.Equal(t, 3, metrics.Count("sinkFailures", "smtp"))

	for _, f := range report.Failures {
		assert.Equal(t, "smtp", f.Sink)
		assert.ErrorIs(t, f, ErrDeliveryFailed)
	}

	rows := readCSV(t, path)
	require.Len(t, rows, 4)
	assert.Equal(t, changeLogHeader, rows[0])
	assert.Equal(t, []string{"2024-03-01T12:00:00Z", "alice", "bio-changed", "old", "new"}, rows[1])
	assert.Equal(t, "follower-removed", rows[2][2])
	assert.Equal(t, "follower-added", rows[3][2])
}

// stalledSink never returns until released, whatever its context says.
type stalledSink struct {
	release chan struct{}
	calls   chan struct{}
}

func (s *stalledSink) Name() string { return "stalled" }

func (s *stalledSink) Send(context.Context, models.ChangeEvent) error {
	s.calls <- struct{}{}
	<-s.release
	return nil
}

func TestDispatch_StalledSinkTimesOutAndChangeLogIsWritten(t *testing.T) {
	stalled := &stalledSink{release: make(chan struct{}), calls: make(chan struct{}, 3)}
	t.Cleanup(func() { close(stalled.release) })
	healthy := &testutil.MockSink{SinkName: "ok"}
	d, path, metrics := newTimedDispatcher(t, 50*time.Millisecond, stalled, healthy)

	done := make(chan Report, 1)
	go func() { done <- d.Dispatch(context.Background(), events()) }()

	var report Report
	select {
	case report = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch blocked on a stalled sink")
	}

	assert.Len(t, stalled.calls, 1)
	assert.Len(t, healthy.Received(), 3)
	require.Len(t, report.Failures, 3)
	for _, f := range report.Failures {
		assert.Equal(t, "stalled", f.Sink)
		assert.ErrorIs(t, f, errSendTimeout)
	}
	assert.Equal(t, 3, metrics.Count("sinkFailures", "stalled"))
	assert.Len(t, readCSV(t, path), 4)
}

func TestDispatch_PreservesOrderPerSink(t *testing.T) {
	sink := &testutil.MockSink{}
	d, _, _ := newTestDispatcher(t, sink)

	evs := events()
	d.Dispatch(context.Background(), evs)

	got := sink.Received()
	require.Len(t, got, len(evs))
	for i := range evs {
		assert.Equal(t, evs[i].ID, got[i].ID)
	}
}

func TestDispatch_FilterIsPerEvent(t *testing.T) {
	followersOnly, err := ParseFilter([]string{"followers"})
	require.NoError(t, err)
	followers := &testutil.MockSink{SinkName: "followers"}
	all := &testutil.MockSink{SinkName: "all"}
	d, path, _ := newTestDispatcher(t, Filtered(followers, followersOnly), all)

	d.Dispatch(context.Background(), events())

	assert.Equal(t, []models.ChangeKind{models.KindFollowerRemoved, models.KindFollowerAdded}, followers.Kinds())
	assert.Len(t, all.Received(), 3)
	assert.Len(t, readCSV(t, path), 4)
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panicky" }
func (panickingSink) Send(context.Context, models.ChangeEvent) error {
	panic("nil map")
}

func TestDispatch_RecoversSinkPanic(t *testing.T) {
	healthy := &testutil.MockSink{}
	d, path, _ := newTestDispatcher(t, panickingSink{}, healthy)

	report := d.Dispatch(context.Background(), events()[:1])

	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Error(), "panic")
	assert.Len(t, healthy.Received(), 1)
	assert.Len(t, readCSV(t, path), 2)
}

func TestDispatch_NoEventsWritesNothing(t *testing.T) {
	sink := &testutil.MockSink{}
	d, path, _ := newTestDispatcher(t, sink)

	report := d.Dispatch(context.Background(), nil)
	assert.False(t, report.Failed())
	assert.Empty(t, sink.Received())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDispatch_ChangeLogAppendsAcrossBatches(t *testing.T) {
	d, path, metrics := newTestDispatcher(t)

	d.Dispatch(context.Background(), events()[:1])
	d.Dispatch(context.Background(), events()[1:])

	rows := readCSV(t, path)
	assert.Len(t, rows, 4)
	assert.Equal(t, 1, metrics.Count("changes", "alice/bio-changed"))
}

func TestDispatch_Stats(t *testing.T) {
	d, _, _ := newTestDispatcher(t, &testutil.MockSink{SinkName: "a"}, &testutil.MockSink{SinkName: "b", Err: errors.New("x")})
	d.Dispatch(context.Background(), events())

	delivered, failed := d.Stats()
	assert.Equal(t, int64(3), delivered)
	assert.Equal(t, int64(3), failed)
	assert.ElementsMatch(t, []string{"a", "b"}, d.SinkNames())
}

type baselineSink struct {
	testutil.MockSink
	initial []string
}

func (b *baselineSink) Initial(_ context.Context, snap *models.Snapshot) {
	b.initial = append(b.initial, snap.Username)
}

func TestDispatcher_InitialReachesObservers(t *testing.T) {
	observer := &baselineSink{}
	filter, err := ParseFilter([]string{"errors"})
	require.NoError(t, err)
	d, _, _ := newTestDispatcher(t, Filtered(observer, filter), &testutil.MockSink{})

	d.Initial(context.Background(), &models.Snapshot{Username: "alice"})
	assert.Equal(t, []string{"alice"}, observer.initial)
}
