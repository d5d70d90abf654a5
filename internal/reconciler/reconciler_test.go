package reconciler

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelahtinen/blobarchive/internal/blobver"
	"github.com/joelahtinen/blobarchive/internal/localindex"
	"github.com/joelahtinen/blobarchive/internal/remoteindex"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingStore is a minimal in-memory blobstore.Store double that records
// every write so tests can assert on what the reconciler did without a real
// object store.
type recordingStore struct {
	putEmpty []string
	deleted  []string
}

func (s *recordingStore) ListBlobs(context.Context, func(string, error) bool) error { return nil }

func (s *recordingStore) PutEmptyBlob(_ context.Context, name string, _ []byte) error {
	s.putEmpty = append(s.putEmpty, name)

	return nil
}

func (s *recordingStore) StageBlock(context.Context, string, string, []byte) error { return nil }

func (s *recordingStore) CommitBlockList(context.Context, string, []string) error { return nil }

func (s *recordingStore) DeleteBlob(_ context.Context, name string) error {
	s.deleted = append(s.deleted, name)

	return nil
}

func freshLocal(paths map[string]blobver.Version) *localindex.Index {
	return &localindex.Index{Paths: paths}
}

func freshRemote(paths map[string][]blobver.Version) *remoteindex.Index {
	return &remoteindex.Index{Paths: paths}
}

func TestUploadPhase_NewLocalPath_IsUploaded(t *testing.T) {
	store := &recordingStore{}
	local := freshLocal(map[string]blobver.Version{
		"/a.txt": {UploadTime: 100, Type: blobver.Folder},
	})
	remote := freshRemote(map[string][]blobver.Version{})

	err := uploadPhase(context.Background(), "/root", local, remote, store, 3600, noopLogger())
	require.NoError(t, err)

	assert.Len(t, store.putEmpty, 1)
	assert.Len(t, remote.Paths["/a.txt"], 1)
}

func TestUploadPhase_IdenticalVersion_IsSuppressed(t *testing.T) {
	store := &recordingStore{}
	v := blobver.Version{ModTime: 5, UploadTime: 100, Type: blobver.Folder}
	local := freshLocal(map[string]blobver.Version{"/a.txt": v})
	remote := freshRemote(map[string][]blobver.Version{"/a.txt": {v}})

	err := uploadPhase(context.Background(), "/root", local, remote, store, 3600, noopLogger())
	require.NoError(t, err)

	assert.Empty(t, store.putEmpty)
	assert.Len(t, remote.Paths["/a.txt"], 1)
}

func TestUploadPhase_RecentDifferentVersion_IsSuppressedWithinWindow(t *testing.T) {
	store := &recordingStore{}
	remoteVersion := blobver.Version{ModTime: 5, UploadTime: 100, Type: blobver.Folder}
	localVersion := blobver.Version{ModTime: 6, UploadTime: 150, Type: blobver.Folder}
	local := freshLocal(map[string]blobver.Version{"/a.txt": localVersion})
	remote := freshRemote(map[string][]blobver.Version{"/a.txt": {remoteVersion}})

	err := uploadPhase(context.Background(), "/root", local, remote, store, 3600, noopLogger())
	require.NoError(t, err)

	assert.Empty(t, store.putEmpty)
}

func TestUploadPhase_ChangeOutsideWindow_IsUploaded(t *testing.T) {
	store := &recordingStore{}
	remoteVersion := blobver.Version{ModTime: 5, UploadTime: 100, Type: blobver.Folder}
	localVersion := blobver.Version{ModTime: 6, UploadTime: 100 + 3601, Type: blobver.Folder}
	local := freshLocal(map[string]blobver.Version{"/a.txt": localVersion})
	remote := freshRemote(map[string][]blobver.Version{"/a.txt": {remoteVersion}})

	err := uploadPhase(context.Background(), "/root", local, remote, store, 3600, noopLogger())
	require.NoError(t, err)

	assert.Len(t, store.putEmpty, 1)
	assert.Len(t, remote.Paths["/a.txt"], 2)
}

func TestTombstonePhase_DeletedLocallyAndOldEnough_IsTombstoned(t *testing.T) {
	store := &recordingStore{}
	local := freshLocal(map[string]blobver.Version{})
	remote := freshRemote(map[string][]blobver.Version{
		"/gone.txt": {{ModTime: 5, UploadTime: 100, Type: blobver.Regular, Size: 3}},
	})

	err := tombstonePhase(context.Background(), "/root", local, remote, store, 3600, 100+3601, noopLogger())
	require.NoError(t, err)

	require.Len(t, remote.Paths["/gone.txt"], 2)
	assert.Equal(t, blobver.Deleted, remote.Paths["/gone.txt"][1].Type)
	assert.Len(t, store.putEmpty, 1)
}

func TestTombstonePhase_RecentDeletion_IsSuppressed(t *testing.T) {
	store := &recordingStore{}
	local := freshLocal(map[string]blobver.Version{})
	remote := freshRemote(map[string][]blobver.Version{
		"/gone.txt": {{ModTime: 5, UploadTime: 100, Type: blobver.Regular, Size: 3}},
	})

	err := tombstonePhase(context.Background(), "/root", local, remote, store, 3600, 200, noopLogger())
	require.NoError(t, err)

	assert.Len(t, remote.Paths["/gone.txt"], 1)
	assert.Empty(t, store.putEmpty)
}

func TestTombstonePhase_StillPresentLocally_IsUntouched(t *testing.T) {
	store := &recordingStore{}
	local := freshLocal(map[string]blobver.Version{"/still.txt": {UploadTime: 50}})
	remote := freshRemote(map[string][]blobver.Version{
		"/still.txt": {{ModTime: 5, UploadTime: 100, Type: blobver.Regular, Size: 3}},
	})

	err := tombstonePhase(context.Background(), "/root", local, remote, store, 3600, 10000, noopLogger())
	require.NoError(t, err)

	assert.Len(t, remote.Paths["/still.txt"], 1)
	assert.Empty(t, store.putEmpty)
}

func TestTombstonePhase_EmptyVersionList_IsSkippedNotFatal(t *testing.T) {
	store := &recordingStore{}
	local := freshLocal(map[string]blobver.Version{})
	remote := freshRemote(map[string][]blobver.Version{"/broken.txt": {}})

	err := tombstonePhase(context.Background(), "/root", local, remote, store, 3600, 10000, noopLogger())
	require.NoError(t, err)
}

func TestRetentionPhase_SoleSurvivorPerDailyBucket_IsKept(t *testing.T) {
	store := &recordingStore{}
	// A single version, well within the last daily bucket: it is the sole
	// member of every bucket it intersects and must survive.
	remote := freshRemote(map[string][]blobver.Version{
		"/a.txt": {{ModTime: 1, UploadTime: 1000, Type: blobver.Regular}},
	})
	policy := Policy{NumDaily: 7}

	err := retentionPhase(context.Background(), remote, store, policy, 2000, noopLogger())
	require.NoError(t, err)

	assert.Len(t, remote.Paths["/a.txt"], 1)
	assert.Empty(t, store.deleted)
}

func TestRetentionPhase_MultipleVersionsSameBucket_KeepsOldest(t *testing.T) {
	store := &recordingStore{}
	now := int64(secondsPerDay * 100)
	// Three versions all uploaded within the same daily bucket: only the
	// oldest of the three should survive that bucket.
	v1 := blobver.Version{UploadTime: now - 100, Type: blobver.Regular}
	v2 := blobver.Version{UploadTime: now - 50, Type: blobver.Regular}
	v3 := blobver.Version{UploadTime: now - 10, Type: blobver.Regular}
	remote := freshRemote(map[string][]blobver.Version{"/a.txt": {v1, v2, v3}})
	policy := Policy{NumDaily: 1}

	err := retentionPhase(context.Background(), remote, store, policy, now, noopLogger())
	require.NoError(t, err)

	require.Len(t, remote.Paths["/a.txt"], 1)
	assert.Equal(t, v1.UploadTime, remote.Paths["/a.txt"][0].UploadTime)
	assert.Len(t, store.deleted, 2)
}

func TestRetentionPhase_VersionSupersededLongBeforeAnyBucket_IsPruned(t *testing.T) {
	store := &recordingStore{}
	now := int64(secondsPerMonth * 100)
	// old's coverage interval ends the moment mid replaces it, and mid
	// replaces it almost immediately, long before the single retained
	// daily bucket begins: old's interval never reaches into that bucket
	// and it is pruned outright, not just displaced by a tie-break.
	old := blobver.Version{UploadTime: 1, Type: blobver.Regular}
	mid := blobver.Version{UploadTime: 2, Type: blobver.Regular}
	remote := freshRemote(map[string][]blobver.Version{"/a.txt": {old, mid}})
	policy := Policy{NumDaily: 1}

	err := retentionPhase(context.Background(), remote, store, policy, now, noopLogger())
	require.NoError(t, err)

	assert.Len(t, remote.Paths["/a.txt"], 1)
	assert.Equal(t, mid.UploadTime, remote.Paths["/a.txt"][0].UploadTime)
	assert.Len(t, store.deleted, 1)
}

func TestRetentionPhase_EmptyVersionList_IsSkippedNotFatal(t *testing.T) {
	store := &recordingStore{}
	remote := freshRemote(map[string][]blobver.Version{"/broken.txt": {}})
	policy := Policy{NumDaily: 7}

	err := retentionPhase(context.Background(), remote, store, policy, 1000, noopLogger())
	require.NoError(t, err)
}

func TestReconcile_RunsAllThreePhasesInOrder(t *testing.T) {
	store := &recordingStore{}
	now := int64(secondsPerMonth * 100)
	local := freshLocal(map[string]blobver.Version{
		"/new.txt": {UploadTime: now, Type: blobver.Folder},
	})
	remote := freshRemote(map[string][]blobver.Version{
		"/gone.txt": {{UploadTime: now - secondsPerDay*30, Type: blobver.Regular}},
	})
	policy := Policy{MinUpdateAge: 10, NumDaily: 7}

	err := Reconcile(context.Background(), "/root", local, remote, store, policy, now, noopLogger())
	require.NoError(t, err)

	assert.Contains(t, remote.Paths, "/new.txt")
	// The upload and tombstone phases each ran: /new.txt's only version was
	// uploaded, and /gone.txt (absent locally, stale enough to pass the
	// suppression window) received a Deleted tombstone before retention
	// pruned what it didn't need.
	assert.Contains(t, store.putEmpty, "/new.txt/"+local.Paths["/new.txt"].String())
	assert.Len(t, store.putEmpty, 2)
}
