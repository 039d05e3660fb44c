package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profmon/internal/models"
	"profmon/internal/testutil"
)

type fakeProvider struct {
	mu           sync.Mutex
	profile      *ProviderProfile
	err          error
	pictures     map[string][]byte
	pictureErr   error
	pictureCalls int
}

func (f *fakeProvider) Profile(_ context.Context, _ string) (*ProviderProfile, error) {
	return f.profile, f.err
}

func (f *fakeProvider) Picture(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pictureCalls++
	if f.pictureErr != nil {
		return nil, f.pictureErr
	}
	return f.pictures[url], nil
}

func sha(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

func TestAdapter_FullProfile(t *testing.T) {
	private := true
	p := &fakeProvider{
		profile: &ProviderProfile{
			UserID:        "42",
			IsPrivate:     &private,
			Biography:     models.Ptr("hello"),
			ProfilePicURL: "https://cdn/pic.jpg",
			FollowerCount: models.Ptr(int64(3)),
			Posts:         &[]ProviderItem{{ID: "p1"}},
			Followers:     &[]string{"a", "b"},
		},
		pictures: map[string][]byte{"https://cdn/pic.jpg": []byte("img")},
	}
	a := NewAdapter(p, &testutil.MockCache{}, &testutil.MockLogger{}, "")

	snap, err := a.Fetch(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "42", snap.UserID)
	assert.Equal(t, "alice", snap.Username)
	assert.Equal(t, models.VisibilityPrivate, snap.Visibility)
	assert.Equal(t, "hello", *snap.Bio)
	assert.Equal(t, sha("img"), snap.ProfilePicHash)
	assert.True(t, snap.Posts.Fetched)
	assert.Equal(t, models.ItemPost, snap.Posts.List[0].Kind)
	assert.False(t, snap.Reels.Fetched)
	assert.True(t, snap.Followers.Fetched)
	assert.False(t, snap.Followings.Fetched)
	assert.Nil(t, snap.FollowingCount)
	assert.False(t, snap.TakenAt.IsZero())
}

func TestAdapter_PictureHashCachedByURL(t *testing.T) {
	p := &fakeProvider{
		profile:  &ProviderProfile{ProfilePicURL: "u1"},
		pictures: map[string][]byte{"u1": []byte("img")},
	}
	cache := &testutil.MockCache{}
	a := NewAdapter(p, cache, &testutil.MockLogger{}, "")

	for i := 0; i < 3; i++ {
		snap, err := a.Fetch(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, sha("img"), snap.ProfilePicHash)
	}
	assert.Equal(t, 1, p.pictureCalls)
}

func TestAdapter_PictureFailureLeavesHashUnknown(t *testing.T) {
	p := &fakeProvider{
		profile:    &ProviderProfile{ProfilePicURL: "u1"},
		pictureErr: errors.New("cdn down"),
	}
	logger := &testutil.MockLogger{}
	a := NewAdapter(p, &testutil.MockCache{}, logger, "")

	snap, err := a.Fetch(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, snap.ProfilePicHash)
	assert.Equal(t, 1, logger.Count("warn"))
}

func TestAdapter_SavesNewPicture(t *testing.T) {
	dir := t.TempDir()
	p := &fakeProvider{
		profile:  &ProviderProfile{ProfilePicURL: "u1"},
		pictures: map[string][]byte{"u1": []byte("img")},
	}
	a := NewAdapter(p, &testutil.MockCache{}, &testutil.MockLogger{}, dir)

	_, err := a.Fetch(context.Background(), "../alice")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "alice", sha("img")+".jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)
}

func TestAdapter_AuthRequiredReturnsDegradedSnapshot(t *testing.T) {
	p := &fakeProvider{
		profile: &ProviderProfile{UserID: "42", FollowerCount: models.Ptr(int64(9))},
		err:     newError(AuthRequired, "login required"),
	}
	a := NewAdapter(p, &testutil.MockCache{}, &testutil.MockLogger{}, "")

	snap, err := a.Fetch(context.Background(), "alice")
	assert.Equal(t, AuthRequired, KindOf(err))
	require.NotNil(t, snap)
	assert.Equal(t, int64(9), *snap.FollowerCount)
	assert.Nil(t, snap.Bio)
	assert.Equal(t, models.VisibilityUnknown, snap.Visibility)
	assert.False(t, snap.Followers.Fetched)
}

func TestAdapter_AuthRequiredWithoutPayload(t *testing.T) {
	p := &fakeProvider{err: newError(AuthRequired, "login required")}
	a := NewAdapter(p, &testutil.MockCache{}, &testutil.MockLogger{}, "")

	snap, err := a.Fetch(context.Background(), "alice")
	assert.Equal(t, AuthRequired, KindOf(err))
	require.NotNil(t, snap)
	assert.Equal(t, "alice", snap.Username)
	assert.Nil(t, snap.FollowerCount)
}

func TestAdapter_OtherErrorsReturnNoSnapshot(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind ErrorKind
	}{
		{"not found", newError(NotFound, "gone"), NotFound},
		{"rate limited", &FetchError{Kind: RateLimited}, RateLimited},
		{"plain error", errors.New("boom"), Transient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAdapter(&fakeProvider{err: tt.err}, &testutil.MockCache{}, &testutil.MockLogger{}, "")
			snap, err := a.Fetch(context.Background(), "alice")
			assert.Nil(t, snap)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}
