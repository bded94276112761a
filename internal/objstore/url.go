package objstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/objstore/errors"
)

// ObjectURL returns a caller-usable link for the given key. Destinations with
// a public URL template get a durable public link (presigned=false);
// everything else falls back to a presigned URL valid for PresignExpiry.
func (c *Client) ObjectURL(ctx context.Context, key string) (url string, presigned bool, err error) {
	if public, ok := c.dest.PublicURL(key); ok {
		return public, false, nil
	}

	if c.presign == nil {
		return "", false, errors.NewError("objectURL", errors.ErrInvalidInput).
			WithBucket(c.dest.Bucket).
			WithKey(key).
			WithMessage("no presigner configured and no public URL template")
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(c.dest.Bucket),
		Key:    aws.String(key),
	}
	req, err := c.presign.PresignGetObject(ctx, input, func(o *s3.PresignOptions) {
		o.Expires = PresignExpiry
	})
	if err != nil {
		return "", false, errors.NewError("objectURL", err).WithBucket(c.dest.Bucket).WithKey(key)
	}

	return req.URL, true, nil
}
