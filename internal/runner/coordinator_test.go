package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profmon/internal/models"
	"profmon/internal/structures"
	"profmon/internal/testutil"
)

func coordinatorConfig() *structures.Config {
	return &structures.Config{
		Schedule: structures.ScheduleConfig{
			Interval:     time.Hour,
			IntervalStep: 5 * time.Minute,
			MinInterval:  10 * time.Minute,
		},
		Targets: []structures.TargetConfig{
			{Username: "alice"},
			{Username: "bob", Interval: 2 * time.Hour, Stagger: time.Millisecond},
		},
	}
}

func newTestCoordinator(t *testing.T, conf *structures.Config, f *testutil.MockFetcher, observers ...LivenessObserver) (*Coordinator, *recordingDispatcher) {
	t.Helper()
	d := &recordingDispatcher{}
	c := NewCoordinator(conf, f, &memStore{}, d, testScheduler(), observers, &testutil.MockLogger{}, &testutil.MockMetrics{})
	return c, d
}

func waitCoordinator(t *testing.T, c *Coordinator) {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("coordinator did not finish")
	}
}

func TestCoordinator_ViewsFollowConfigOrder(t *testing.T) {
	c, _ := newTestCoordinator(t, coordinatorConfig(), &testutil.MockFetcher{})

	views := c.Views()
	require.Len(t, views, 2)
	assert.Equal(t, "alice", views[0].Username)
	assert.Equal(t, time.Hour, views[0].Interval)
	assert.Equal(t, "bob", views[1].Username)
	assert.Equal(t, 2*time.Hour, views[1].Interval)
	assert.Equal(t, models.StateIdle, views[1].State)

	_, ok := c.View("carol")
	assert.False(t, ok)
	v, ok := c.View("bob")
	assert.True(t, ok)
	assert.Equal(t, "bob", v.Username)
}

func TestCoordinator_RunsAllTargetsAndStopsOnBroadcast(t *testing.T) {
	f := &testutil.MockFetcher{Default: testutil.FetchResult{Snapshot: &models.Snapshot{UserID: "1"}}}
	c, _ := newTestCoordinator(t, coordinatorConfig(), f)

	c.Start(context.Background())
	require.Eventually(t, func() bool { return f.Calls() == 2 }, 2*time.Second, time.Millisecond)
	require.Eventually(t, func() bool {
		for _, v := range c.Views() {
			if v.State != models.StateSleeping {
				return false
			}
		}
		return true
	}, time.Second, time.Millisecond)

	assert.Equal(t, 2, c.Broadcast(CmdStop))
	waitCoordinator(t, c)
	for _, v := range c.Views() {
		assert.Equal(t, models.StateStopped, v.State)
	}
	assert.Equal(t, 0, c.Broadcast(CmdRecheck))
}

func TestCoordinator_TriggerOneTarget(t *testing.T) {
	f := &testutil.MockFetcher{Default: testutil.FetchResult{Snapshot: &models.Snapshot{UserID: "1"}}}
	c, _ := newTestCoordinator(t, coordinatorConfig(), f)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		waitCoordinator(t, c)
	}()

	c.Start(ctx)
	require.Eventually(t, func() bool { return f.Calls() == 2 }, 2*time.Second, time.Millisecond)

	found, accepted := c.Trigger("alice", CmdRecheck)
	assert.True(t, found)
	assert.True(t, accepted)
	require.Eventually(t, func() bool { return f.Calls() == 3 }, time.Second, time.Millisecond)

	found, _ = c.Trigger("carol", CmdRecheck)
	assert.False(t, found)
}

func TestCoordinator_DoneWhenAllTargetsFatal(t *testing.T) {
	f := &testutil.MockFetcher{Default: testutil.FetchResult{Err: notFound()}}
	c, d := newTestCoordinator(t, coordinatorConfig(), f)

	c.Start(context.Background())
	waitCoordinator(t, c)

	assert.Equal(t, 2, f.Calls())
	assert.Equal(t, []models.ChangeKind{models.KindError, models.KindError}, d.kinds())
}

func TestCoordinator_LivenessJob(t *testing.T) {
	conf := coordinatorConfig()
	conf.Schedule.LivenessInterval = time.Second
	obs := &beatRecorder{}
	f := &testutil.MockFetcher{Default: testutil.FetchResult{Snapshot: &models.Snapshot{UserID: "1"}}}
	c, _ := newTestCoordinator(t, conf, f, obs)
	ctx, cancel := context.WithCancel(context.Background())

	c.Start(ctx)
	c.Beat()
	views := c.Views()
	assert.Equal(t, int64(1), views[0].LivenessBeats)
	assert.Equal(t, int64(1), views[1].LivenessBeats)

	cancel()
	waitCoordinator(t, c)
	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.GreaterOrEqual(t, len(obs.beats), 2)
}
