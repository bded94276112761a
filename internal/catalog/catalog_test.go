package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

const testCatalogYAML = `
destinations:
  - name: wasabi
    endpoint: https://s3.eu-central-1.wasabisys.com
    bucket: backups
    region: eu-central-1
    access_key_env: WASABI_ACCESS_KEY
    secret_key_env: WASABI_SECRET_KEY
    capacity_limit: 10GB
  - name: oci
    endpoint: https://namespace.compat.objectstorage.eu-frankfurt-1.oraclecloud.com
    bucket: public-files
    region: eu-frankfurt-1
    access_key_env: OCI_ACCESS_KEY
    secret_key_env: OCI_SECRET_KEY
    public_base_url: https://objectstorage.eu-frankfurt-1.oraclecloud.com/n/ns/b/public-files/o/{key}
`

func TestParse(t *testing.T) {
	t.Setenv("WASABI_ACCESS_KEY", "AKIATEST")
	t.Setenv("WASABI_SECRET_KEY", "secret123")

	c, err := Parse([]byte(testCatalogYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"wasabi", "oci"}, c.Names())

	wasabi, ok := c.Get("wasabi")
	require.True(t, ok)
	assert.Equal(t, "https://s3.eu-central-1.wasabisys.com", wasabi.Endpoint)
	assert.Equal(t, "backups", wasabi.Bucket)
	assert.Equal(t, "eu-central-1", wasabi.Region)
	assert.Equal(t, "AKIATEST", wasabi.AccessKey)
	assert.Equal(t, "secret123", wasabi.SecretKey)
	assert.Equal(t, int64(10*1024*1024*1024), wasabi.CapacityLimit)
	assert.True(t, wasabi.HasCredentials())
}

func TestParse_MissingCredentialsKeepDestination(t *testing.T) {
	// OCI env vars deliberately unset: the destination must survive with
	// empty credentials rather than fail the whole catalog.
	c, err := Parse([]byte(testCatalogYAML))
	require.NoError(t, err)

	oci, ok := c.Get("oci")
	require.True(t, ok)
	assert.False(t, oci.HasCredentials())
	assert.Zero(t, oci.CapacityLimit)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		yaml        string
		errContains string
	}{
		{
			name:        "missing name",
			yaml:        "destinations:\n  - bucket: b\n",
			errContains: "name is required",
		},
		{
			name:        "missing bucket",
			yaml:        "destinations:\n  - name: d\n",
			errContains: "bucket is required",
		},
		{
			name:        "duplicate name",
			yaml:        "destinations:\n  - name: d\n    bucket: b1\n  - name: d\n    bucket: b2\n",
			errContains: "duplicate name",
		},
		{
			name:        "bad capacity",
			yaml:        "destinations:\n  - name: d\n    bucket: b\n    capacity_limit: lots\n",
			errContains: "capacity_limit",
		},
		{
			name:        "not yaml",
			yaml:        "{{{",
			errContains: "parsing catalog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestParse_DefaultRegion(t *testing.T) {
	c, err := Parse([]byte("destinations:\n  - name: d\n    bucket: b\n"))
	require.NoError(t, err)

	d, _ := c.Get("d")
	assert.Equal(t, "us-east-1", d.Region)
}

func TestLoad(t *testing.T) {
	filesystem := vfs.NewMemory()
	require.NoError(t, filesystem.WriteFile("destinations.yml", []byte(testCatalogYAML), 0o644))

	c, err := Load(filesystem, "destinations.yml")
	require.NoError(t, err)
	assert.Len(t, c.Names(), 2)

	_, err = Load(filesystem, "missing.yml")
	require.Error(t, err)
}

func TestSelect(t *testing.T) {
	c, err := Parse([]byte(testCatalogYAML))
	require.NoError(t, err)

	dests, err := c.Select([]string{"oci", "wasabi"})
	require.NoError(t, err)
	require.Len(t, dests, 2)
	assert.Equal(t, "oci", dests[0].Name)
	assert.Equal(t, "wasabi", dests[1].Name)

	_, err = c.Select([]string{"wasabi", "nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown destination "nope"`)
}

func TestDestination_PublicURL(t *testing.T) {
	tests := []struct {
		name   string
		dest   Destination
		key    string
		want   string
		wantOK bool
	}{
		{
			name:   "template with key placeholder",
			dest:   Destination{PublicBaseURL: "https://cdn.example.com/o/{key}"},
			key:    "video.mp4",
			want:   "https://cdn.example.com/o/video.mp4",
			wantOK: true,
		},
		{
			name:   "base url without placeholder",
			dest:   Destination{PublicBaseURL: "https://cdn.example.com/files/"},
			key:    "video.mp4",
			want:   "https://cdn.example.com/files/video.mp4",
			wantOK: true,
		},
		{
			name:   "no template",
			dest:   Destination{},
			key:    "video.mp4",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.dest.PublicURL(tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
