package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/registry"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

const statusDir = "job_statuses"

func TestWriter_InitAndRead(t *testing.T) {
	filesystem := vfs.NewMemory()
	w := NewWriter(filesystem, statusDir, "j1", "video.mp4", "https://example.com/v.mp4", []string{"wasabi", "oci"})

	require.NoError(t, w.Init())

	doc, present, err := Read(filesystem, statusDir, "j1")
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, "j1", doc.JobID)
	assert.Equal(t, "video.mp4", doc.Filename)
	assert.Equal(t, "https://example.com/v.mp4", doc.URL)
	assert.Equal(t, registry.StatusProcessing, doc.Status)
	assert.Equal(t, DownloadPending, doc.Download.Stage)
	require.Len(t, doc.Clouds, 2)
	assert.Equal(t, CloudPending, doc.Clouds["wasabi"].Stage)
}

func TestWriter_Updates(t *testing.T) {
	filesystem := vfs.NewMemory()
	w := NewWriter(filesystem, statusDir, "j1", "f", "u", []string{"wasabi"})
	require.NoError(t, w.Init())

	require.NoError(t, w.SetDownload(Downloading, 42, "42.00 MB / 100.00 MB (9.10 MB/s)"))
	require.NoError(t, w.SetCloud("wasabi", CloudState{
		Stage:      CloudCompleted,
		Percentage: 100,
		Message:    "Complete: 100.00 MB",
		URL:        "https://example.com/signed",
		URLKind:    URLPresigned,
	}))
	require.NoError(t, w.SetStatus(registry.StatusCompleted))

	doc, present, err := Read(filesystem, statusDir, "j1")
	require.NoError(t, err)
	require.True(t, present)
	assert.Equal(t, registry.StatusCompleted, doc.Status)
	assert.Equal(t, Downloading, doc.Download.Stage)
	assert.Equal(t, 42, doc.Download.Percentage)
	assert.Equal(t, CloudCompleted, doc.Clouds["wasabi"].Stage)
	assert.Equal(t, URLPresigned, doc.Clouds["wasabi"].URLKind)
}

func TestRead_Absent(t *testing.T) {
	_, present, err := Read(vfs.NewMemory(), statusDir, "nope")
	require.NoError(t, err)
	assert.False(t, present)
}

func TestRead_TruncatedDocumentIsProcessing(t *testing.T) {
	// A read racing a rewrite may observe a truncated or empty file; that is
	// an in-flight job, not an error.
	for _, content := range []string{"", `{"job_id": "j1", "sta`, "garbage"} {
		filesystem := vfs.NewMemory()
		require.NoError(t, filesystem.MkdirAll(statusDir, 0o755))
		require.NoError(t, filesystem.WriteFile(DocumentPath(statusDir, "j1"), []byte(content), 0o644))

		doc, present, err := Read(filesystem, statusDir, "j1")
		require.NoError(t, err)
		require.True(t, present)
		assert.Equal(t, registry.StatusProcessing, doc.Status)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		registry registry.Status
		doc      Document
		present  bool
		want     registry.Status
	}{
		{
			name:     "document wins when present",
			registry: registry.StatusProcessing,
			doc:      Document{Status: registry.StatusCompleted},
			present:  true,
			want:     registry.StatusCompleted,
		},
		{
			name:     "registry wins when document absent",
			registry: registry.StatusProcessing,
			present:  false,
			want:     registry.StatusProcessing,
		},
		{
			name:     "pending job with no document stays pending",
			registry: registry.StatusPending,
			present:  false,
			want:     registry.StatusPending,
		},
		{
			name:     "empty document status falls back to registry",
			registry: registry.StatusCancelling,
			doc:      Document{},
			present:  true,
			want:     registry.StatusCancelling,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.registry, tt.doc, tt.present))
		})
	}
}

func TestSentinel_Lifecycle(t *testing.T) {
	filesystem := vfs.NewMemory()
	s := NewSentinel(filesystem, statusDir, "j1")

	assert.False(t, s.Present())

	require.NoError(t, s.Request())
	assert.True(t, s.Present())

	probe := s.Probe()
	assert.True(t, probe())

	require.NoError(t, s.Clear())
	assert.False(t, s.Present())

	// Clearing an absent sentinel is a no-op.
	require.NoError(t, s.Clear())
}
