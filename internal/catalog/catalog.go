// Package catalog loads the destination catalog: the static description of
// every cloud target an upload job may select. Credentials are resolved from
// the environment at load time so that secret material never lives in the
// catalog file itself.
package catalog

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/progress"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

// Destination describes a single S3-compatible upload target.
type Destination struct {
	// Name is the identifier jobs use to select this destination.
	Name string

	// Endpoint is the S3-compatible endpoint URL. Empty means the default
	// AWS endpoint for Region.
	Endpoint string

	// Bucket is the target bucket.
	Bucket string

	// Region is the signing region.
	Region string

	// AccessKey and SecretKey are the resolved static credentials. Both are
	// empty when the configured environment variables were unset; the upload
	// stage reports such destinations as failed with a configuration error
	// rather than attempting an anonymous request.
	AccessKey string
	SecretKey string

	// CapacityLimit caps the bucket's total size in bytes. Zero means no
	// limit and skips the admission check entirely.
	CapacityLimit int64

	// PublicBaseURL, when set, is the template for building public object
	// URLs ({key} is substituted). Destinations without one fall back to
	// presigned URLs.
	PublicBaseURL string
}

// HasCredentials reports whether both credential halves resolved.
func (d Destination) HasCredentials() bool {
	return d.AccessKey != "" && d.SecretKey != ""
}

// PublicURL renders the public URL template for key. It returns false when
// the destination has no public URL template.
func (d Destination) PublicURL(key string) (string, bool) {
	if d.PublicBaseURL == "" {
		return "", false
	}
	if strings.Contains(d.PublicBaseURL, "{key}") {
		return strings.ReplaceAll(d.PublicBaseURL, "{key}", key), true
	}
	return strings.TrimSuffix(d.PublicBaseURL, "/") + "/" + key, true
}

// Catalog holds the loaded destinations keyed by name.
type Catalog struct {
	destinations []Destination
	byName       map[string]Destination
}

// destinationConfig is the YAML shape of a catalog entry.
type destinationConfig struct {
	Name          string `yaml:"name"`
	Endpoint      string `yaml:"endpoint"`
	Bucket        string `yaml:"bucket"`
	Region        string `yaml:"region"`
	AccessKeyEnv  string `yaml:"access_key_env"`
	SecretKeyEnv  string `yaml:"secret_key_env"`
	CapacityLimit string `yaml:"capacity_limit"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type catalogConfig struct {
	Destinations []destinationConfig `yaml:"destinations"`
}

// Load reads and parses the catalog file at path.
//
// Missing credential environment variables are not an error: the destination
// is kept with empty credentials and fails at upload time instead, so one
// misconfigured target never blocks jobs aimed at the others.
func Load(filesystem vfs.Filesystem, path string) (*Catalog, error) {
	data, err := filesystem.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var cfg catalogConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	c := &Catalog{byName: make(map[string]Destination)}
	for i, dc := range cfg.Destinations {
		if dc.Name == "" {
			return nil, fmt.Errorf("catalog destination %d: name is required", i)
		}
		if dc.Bucket == "" {
			return nil, fmt.Errorf("catalog destination %q: bucket is required", dc.Name)
		}
		if _, dup := c.byName[dc.Name]; dup {
			return nil, fmt.Errorf("catalog destination %q: duplicate name", dc.Name)
		}

		d := Destination{
			Name:          dc.Name,
			Endpoint:      dc.Endpoint,
			Bucket:        dc.Bucket,
			Region:        dc.Region,
			PublicBaseURL: dc.PublicBaseURL,
		}
		if d.Region == "" {
			d.Region = "us-east-1"
		}
		if dc.AccessKeyEnv != "" {
			d.AccessKey = os.Getenv(dc.AccessKeyEnv)
		}
		if dc.SecretKeyEnv != "" {
			d.SecretKey = os.Getenv(dc.SecretKeyEnv)
		}
		if dc.CapacityLimit != "" {
			limit, err := progress.ParseBytes(dc.CapacityLimit)
			if err != nil {
				return nil, fmt.Errorf("catalog destination %q: capacity_limit: %w", dc.Name, err)
			}
			d.CapacityLimit = limit
		}

		c.destinations = append(c.destinations, d)
		c.byName[dc.Name] = d
	}

	return c, nil
}

// Get returns the destination with the given name.
func (c *Catalog) Get(name string) (Destination, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Select resolves a list of destination names preserving order. Unknown names
// produce an error naming the offender.
func (c *Catalog) Select(names []string) ([]Destination, error) {
	out := make([]Destination, 0, len(names))
	for _, name := range names {
		d, ok := c.byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown destination %q", name)
		}
		out = append(out, d)
	}
	return out, nil
}

// Names returns all destination names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.destinations))
	for i, d := range c.destinations {
		names[i] = d.Name
	}
	return names
}
