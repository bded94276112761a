package registry

import (
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

const registryPath = "master_job_list.json"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(vfs.NewMemory(), registryPath, slog.Default())
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	jobs, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestStore_AddAndLoad(t *testing.T) {
	store := newTestStore(t)

	job := Job{
		ID:           "job_1700000000_abcd",
		Filename:     "video.mp4",
		URL:          "https://example.com/video.mp4",
		Status:       StatusPending,
		Destinations: []string{"wasabi", "oci"},
	}
	require.NoError(t, store.Add(job))

	jobs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, job, jobs[0])

	// Duplicate IDs are rejected.
	err = store.Add(job)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestStore_LoadCorruptFile(t *testing.T) {
	filesystem := vfs.NewMemory()
	require.NoError(t, filesystem.WriteFile(registryPath, []byte("{not json"), 0o644))
	store := NewStore(filesystem, registryPath, slog.Default())

	// Corrupt registry degrades to empty, never errors.
	jobs, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestStore_LoadUnreadableFile(t *testing.T) {
	// A directory at the registry path makes ReadFile fail with a genuine
	// I/O error, not ErrNotExist. That must degrade to empty just like a
	// corrupt file, never wedge the caller.
	filesystem := vfs.NewMemory()
	require.NoError(t, filesystem.MkdirAll(registryPath, 0o755))
	store := NewStore(filesystem, registryPath, slog.Default())

	jobs, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestStore_SetStatus(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Add(Job{ID: "j1", Status: StatusPending}))

	require.NoError(t, store.SetStatus("j1", StatusProcessing))

	jobs, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, jobs[0].Status)

	err = store.SetStatus("missing", StatusFailed)
	require.Error(t, err)
}

func TestStore_RemovePending(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Add(Job{ID: "pending", Status: StatusPending}))
	require.NoError(t, store.Add(Job{ID: "running", Status: StatusProcessing}))

	require.NoError(t, store.RemovePending("pending"))

	err := store.RemovePending("running")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only pending jobs")

	err = store.RemovePending("gone")
	require.Error(t, err)

	jobs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "running", jobs[0].ID)
}

func TestStore_ClearTerminal(t *testing.T) {
	store := newTestStore(t)
	for _, j := range []Job{
		{ID: "p", Status: StatusPending},
		{ID: "r", Status: StatusProcessing},
		{ID: "c", Status: StatusCompleted},
		{ID: "f", Status: StatusFailed},
		{ID: "x", Status: StatusCancelled},
	} {
		require.NoError(t, store.Add(j))
	}

	removed, err := store.ClearTerminal()
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	jobs, err := store.Load()
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "p", jobs[0].ID)
	assert.Equal(t, "r", jobs[1].ID)

	// A second clear is a no-op.
	removed, err = store.ClearTerminal()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStatus_Terminal(t *testing.T) {
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusRemoved.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, StatusCancelling.Terminal())
}

func TestNewJobID(t *testing.T) {
	id := NewJobID("video.mp4")
	assert.Regexp(t, regexp.MustCompile(`^job_\d+_[0-9a-f]{4}$`), id)

	// Different filenames in the same second still differ.
	other := NewJobID("other.mp4")
	assert.NotEqual(t, id, other)
}
