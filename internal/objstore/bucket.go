package objstore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/objstore/errors"
)

// BucketSize sums the sizes of every object in the destination's bucket by
// paging through ListObjectsV2. Admission control uses this figure; it is a
// point-in-time snapshot with no consistency guarantee against concurrent
// writers.
func (c *Client) BucketSize(ctx context.Context) (int64, error) {
	var (
		total             int64
		continuationToken *string
	)

	for {
		input := &s3.ListObjectsV2Input{
			Bucket:            aws.String(c.dest.Bucket),
			ContinuationToken: continuationToken,
		}

		output, err := c.api.ListObjectsV2(ctx, input)
		if err != nil {
			return 0, errors.NewError("bucketSize", err).WithBucket(c.dest.Bucket)
		}

		for _, obj := range output.Contents {
			total += aws.ToInt64(obj.Size)
		}

		if !aws.ToBool(output.IsTruncated) {
			break
		}
		continuationToken = output.NextContinuationToken
	}

	return total, nil
}
