// Package objstore wraps the AWS SDK S3 client for a single destination from
// the catalog. It covers exactly what the upload stage needs: capacity
// enumeration, chunked uploads with bounded part concurrency, and access URL
// generation (public template or presigned).
package objstore

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/catalog"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/objstore/errors"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/objstore/s3api"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

const (
	// DefaultPartSize is the multipart chunk size.
	DefaultPartSize = 8 * 1024 * 1024

	// DefaultMultipartThreshold is the size above which uploads switch from
	// a single PutObject to a multipart upload.
	DefaultMultipartThreshold = 8 * 1024 * 1024

	// DefaultConcurrency bounds concurrent part uploads per object.
	DefaultConcurrency = 10

	// PresignExpiry is the validity window for presigned access URLs.
	PresignExpiry = 7 * 24 * time.Hour
)

// Client talks to one destination's bucket.
type Client struct {
	api     s3api.S3API
	presign s3api.Presigner
	dest    catalog.Destination
	fs      vfs.Filesystem
	log     *slog.Logger

	partSize    int64
	threshold   int64
	concurrency int
}

// clientConfig collects the functional options.
type clientConfig struct {
	api         s3api.S3API
	presign     s3api.Presigner
	fs          vfs.Filesystem
	logger      *slog.Logger
	httpTimeout time.Duration
	partSize    int64
	threshold   int64
	concurrency int
}

// Option configures a Client.
type Option func(*clientConfig)

// WithAPI injects an S3 API implementation. Intended for tests; production
// clients build one from the destination's credentials.
func WithAPI(api s3api.S3API) Option {
	return func(c *clientConfig) {
		c.api = api
	}
}

// WithPresigner injects a presigner implementation. Intended for tests.
func WithPresigner(p s3api.Presigner) Option {
	return func(c *clientConfig) {
		c.presign = p
	}
}

// WithFilesystem sets the filesystem uploads read local files from.
// Default is the OS filesystem rooted at /.
func WithFilesystem(filesystem vfs.Filesystem) Option {
	return func(c *clientConfig) {
		c.fs = filesystem
	}
}

// WithLogger sets the logger. Default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// WithHTTPTimeout bounds each S3 HTTP request. Default is no timeout.
func WithHTTPTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.httpTimeout = timeout
	}
}

// WithPartSize sets the multipart chunk size. Must be at least 5MB for S3
// multipart uploads; smaller values are ignored.
func WithPartSize(size int64) Option {
	return func(c *clientConfig) {
		if size >= 5*1024*1024 {
			c.partSize = size
		}
	}
}

// WithMultipartThreshold sets the size above which multipart upload is used.
func WithMultipartThreshold(threshold int64) Option {
	return func(c *clientConfig) {
		if threshold > 0 {
			c.threshold = threshold
		}
	}
}

// WithConcurrency bounds concurrent part uploads. Default is 10.
func WithConcurrency(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// New creates a client for the given destination.
//
// Returns ErrMissingCredentials when the destination's credentials did not
// resolve; callers surface that as a per-destination configuration failure
// rather than a crash.
func New(dest catalog.Destination, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		partSize:    DefaultPartSize,
		threshold:   DefaultMultipartThreshold,
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	c := &Client{
		api:         cfg.api,
		presign:     cfg.presign,
		dest:        dest,
		fs:          cfg.fs,
		log:         cfg.logger,
		partSize:    cfg.partSize,
		threshold:   cfg.threshold,
		concurrency: cfg.concurrency,
	}
	if c.fs == nil {
		c.fs = vfs.NewOS("/")
	}
	if c.log == nil {
		c.log = slog.Default()
	}

	if c.api == nil {
		if !dest.HasCredentials() {
			return nil, errors.NewError("client initialization", errors.ErrMissingCredentials).
				WithBucket(dest.Bucket)
		}

		awsCfg, err := config.LoadDefaultConfig(context.Background(),
			config.WithRegion(dest.Region),
			config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(dest.AccessKey, dest.SecretKey, ""),
			),
		)
		if err != nil {
			return nil, errors.NewError("client initialization", err).WithBucket(dest.Bucket)
		}

		var s3Opts []func(*s3.Options)
		if dest.Endpoint != "" {
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.BaseEndpoint = aws.String(dest.Endpoint)
				// S3-compatible services rarely support virtual hosting.
				o.UsePathStyle = true
			})
		}
		if cfg.httpTimeout > 0 {
			httpClient := &http.Client{Timeout: cfg.httpTimeout}
			s3Opts = append(s3Opts, func(o *s3.Options) {
				o.HTTPClient = httpClient
			})
		}

		raw := s3.NewFromConfig(awsCfg, s3Opts...)
		c.api = raw
		if c.presign == nil {
			c.presign = s3.NewPresignClient(raw)
		}
	}

	return c, nil
}

// Destination returns the destination this client was built for.
func (c *Client) Destination() catalog.Destination {
	return c.dest
}
