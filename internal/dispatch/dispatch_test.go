package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/registry"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

// fakeLauncher records launches and fails on demand.
type fakeLauncher struct {
	launched []Launch
	failFor  map[string]error
}

func (f *fakeLauncher) Launch(ctx context.Context, l Launch) error {
	if err, ok := f.failFor[l.JobID]; ok {
		return err
	}
	f.launched = append(f.launched, l)
	return nil
}

func newTestStore(t *testing.T, jobs []registry.Job) *registry.Store {
	t.Helper()
	store := registry.NewStore(vfs.NewMemory(), "master_job_list.json", slog.Default())
	require.NoError(t, store.Save(jobs))
	return store
}

func TestDispatchPending_LaunchesAndMarksProcessing(t *testing.T) {
	store := newTestStore(t, []registry.Job{
		{ID: "j1", URL: "https://example.com/a", Filename: "a.bin", Status: registry.StatusPending, Destinations: []string{"alpha", "beta"}},
		{ID: "j2", Status: registry.StatusProcessing},
		{ID: "j3", Status: registry.StatusCompleted},
		{ID: "j4", URL: "https://example.com/b", Filename: "b.bin", Status: registry.StatusPending, Destinations: []string{"alpha"}},
	})
	launcher := &fakeLauncher{}

	report, err := New(store, launcher, nil).DispatchPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"j1", "j4"}, report.Launched)
	assert.Empty(t, report.Failures)

	require.Len(t, launcher.launched, 2)
	assert.Equal(t, Launch{
		JobID:        "j1",
		URL:          "https://example.com/a",
		Filename:     "a.bin",
		Destinations: []string{"alpha", "beta"},
	}, launcher.launched[0])

	jobs, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, registry.StatusProcessing, jobs[0].Status)
	assert.Equal(t, registry.StatusProcessing, jobs[1].Status)
	assert.Equal(t, registry.StatusCompleted, jobs[2].Status)
	assert.Equal(t, registry.StatusProcessing, jobs[3].Status)
}

func TestDispatchPending_LaunchFailureKeepsJobPending(t *testing.T) {
	store := newTestStore(t, []registry.Job{
		{ID: "broken", Status: registry.StatusPending},
		{ID: "ok", Status: registry.StatusPending},
	})
	launcher := &fakeLauncher{
		failFor: map[string]error{"broken": errors.New("executable not found")},
	}

	report, err := New(store, launcher, nil).DispatchPending(context.Background())
	require.NoError(t, err)

	// The failure is reported per job and does not block the other launch.
	assert.Equal(t, []string{"ok"}, report.Launched)
	require.Contains(t, report.Failures, "broken")
	assert.Contains(t, report.Failures["broken"].Error(), "executable not found")

	jobs, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, registry.StatusPending, jobs[0].Status)
	assert.Equal(t, registry.StatusProcessing, jobs[1].Status)
}

func TestDispatchPending_NothingPending(t *testing.T) {
	store := newTestStore(t, []registry.Job{
		{ID: "done", Status: registry.StatusCompleted},
	})
	launcher := &fakeLauncher{}

	report, err := New(store, launcher, nil).DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Launched)
	assert.Empty(t, launcher.launched)
}

func TestDispatchPending_EmptyRegistry(t *testing.T) {
	store := registry.NewStore(vfs.NewMemory(), "master_job_list.json", slog.Default())

	report, err := New(store, &fakeLauncher{}, nil).DispatchPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Launched)
}
