package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profmon/internal/models"
	"profmon/internal/testutil"
)

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(nil)
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, f.Allows(models.KindBioChanged))

	f, err = ParseFilter([]string{"errors", "bio-changed"})
	require.NoError(t, err)
	assert.True(t, f.Allows(models.KindError))
	assert.True(t, f.Allows(models.KindBioChanged))
	assert.False(t, f.Allows(models.KindNewPost))

	_, err = ParseFilter([]string{"everything"})
	assert.Error(t, err)
}

func TestFiltered(t *testing.T) {
	sink := &testutil.MockSink{}
	assert.Same(t, sink, Filtered(sink, nil))

	f, err := ParseFilter([]string{"posts"})
	require.NoError(t, err)
	wrapped := Filtered(sink, f)
	assert.Equal(t, sink.Name(), wrapped.Name())
	assert.True(t, accepts(wrapped, models.KindNewStory))
	assert.False(t, accepts(wrapped, models.KindFollowerAdded))
	assert.True(t, accepts(sink, models.KindFollowerAdded))
}

func TestRender(t *testing.T) {
	tests := []struct {
		ev   models.ChangeEvent
		want string
	}{
		{models.NewChangeEvent("alice", models.KindBioChanged, "a", "b", at), `alice changed bio: "a" -> "b"`},
		{models.NewChangeEvent("alice", models.KindFollowerAdded, "", "bob", at), "alice has a new follower: bob"},
		{models.NewChangeEvent("alice", models.KindFollowingRemoved, "bob", "", at), "alice stopped following bob"},
		{models.NewChangeEvent("alice", models.KindFollowerCountChanged, "100", "103", at), "alice follower count changed: 100 -> 103"},
		{models.NewChangeEvent("alice", models.KindVisibilityChanged, "public", "private", at), "alice is now private (was public)"},
		{models.NewChangeEvent("alice", models.KindError, "", "gone", at), "alice: monitoring error: gone"},
	}
	for _, tt := range tests {
		t.Run(string(tt.ev.Kind), func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.ev))
		})
	}
}

func TestRender_NewPostUsesItemURL(t *testing.T) {
	ev := models.NewChangeEvent("alice", models.KindNewPost, "", "p1", at)
	ev.Item = &models.Item{ID: "p1", Kind: models.ItemReel, URL: "https://x/p1"}
	assert.Equal(t, "alice published a new reel: https://x/p1", Render(ev))
}

func TestSummary(t *testing.T) {
	snap := &models.Snapshot{Username: "alice", Visibility: models.VisibilityPublic, FollowerCount: models.Ptr(int64(10))}
	assert.Equal(t, "alice: initial state captured (public, 10 followers)", Summary(snap))
}
