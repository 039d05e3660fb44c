package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"profmon/internal/models"
	"profmon/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRecord(username string) *Record {
	return &Record{
		Username: username,
		Checks:   3,
		SavedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Snapshot: &models.Snapshot{
			Username:      username,
			Bio:           models.Ptr("bio"),
			FollowerCount: models.Ptr(int64(7)),
			Followers:     models.FetchedMembers("a", "b"),
		},
	}
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NoError(t, err)

	require.NoError(t, fs.Save(context.Background(), testRecord("alice")))

	rec, err := fs.Load(context.Background(), "alice")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, RecordVersion, rec.Version)
	assert.Equal(t, int64(3), rec.Checks)
	assert.Equal(t, "bio", *rec.Snapshot.Bio)
	assert.Equal(t, []string{"a", "b"}, rec.Snapshot.Followers.Names)
	assert.True(t, rec.Snapshot.Followers.Fetched)
	assert.False(t, rec.Snapshot.Posts.Fetched)
}

func TestFileStore_ZstdRoundTrip(t *testing.T) {
	comp, cleanup, err := NewZstdCompressor()
	require.NoError(t, err)
	defer cleanup()
	fs, err := NewFileStore(t.TempDir(), comp, &testutil.MockLogger{})
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Save(context.Background(), testRecord("bob")))
	rec, err := fs.Load(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(7), *rec.Snapshot.FollowerCount)
}

func TestFileStore_LoadMissing(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NoError(t, err)

	rec, err := fs.Load(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFileStore_AtomicWriteLeavesNoTmp(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir, &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NoError(t, err)

	require.NoError(t, fs.Save(context.Background(), testRecord("alice")))
	require.NoError(t, fs.Save(context.Background(), testRecord("alice")))

	_, err = os.Stat(filepath.Join(dir, "alice.state.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_FailedWriteKeepsPreviousRecord(t *testing.T) {
	dir := t.TempDir()
	comp := &testutil.MockCompressor{}
	fs, err := NewFileStore(dir, comp, &testutil.MockLogger{})
	require.NoError(t, err)
	require.NoError(t, fs.Save(context.Background(), testRecord("alice")))

	comp.CompressFn = func([]byte) ([]byte, error) { return nil, errors.New("disk full") }
	next := testRecord("alice")
	next.Checks = 99
	err = fs.Save(context.Background(), next)
	require.Error(t, err)
	assert.True(t, IsKind(err, WriteFailed))

	comp.CompressFn = nil
	rec, err := fs.Load(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec.Checks)
}

func TestFileStore_CorruptRecord(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.state"), []byte("not json"), 0o644))
	fs, err := NewFileStore(dir, &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NoError(t, err)

	_, err = fs.Load(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, IsKind(err, CorruptRecord))
}

func TestFileStore_RecordWithoutSnapshotIsCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.state"), []byte(`{"version":1}`), 0o644))
	fs, err := NewFileStore(dir, &testutil.MockCompressor{}, &testutil.MockLogger{})
	require.NoError(t, err)

	_, err = fs.Load(context.Background(), "alice")
	assert.True(t, IsKind(err, CorruptRecord))
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "john.doe_1", safeName("john.doe_1"))
	assert.Equal(t, ".._etc", safeName("../etc"))
	assert.Equal(t, "_..", safeName(".."))
	assert.Equal(t, "_", safeName(""))
}
