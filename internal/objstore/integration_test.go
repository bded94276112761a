//go:build integration

package objstore

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/catalog"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/testutil"
	"github.com/ajithvnr2001/multi-cloud-uploader/internal/vfs"
)

// TestIntegration_UploadRoundTrip exercises the client against LocalStack:
// simple and multipart uploads, bucket size enumeration and presigned URLs.
func TestIntegration_UploadRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stack, err := testutil.NewLocalStackContainer(ctx, t)
	require.NoError(t, err)
	defer stack.Terminate(context.Background())

	const bucket = "integration-bucket"
	raw := rawClient(t, ctx, stack)
	_, err = raw.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	dest := catalog.Destination{
		Name:      "localstack",
		Endpoint:  stack.Endpoint(),
		Bucket:    bucket,
		Region:    stack.Region(),
		AccessKey: "test",
		SecretKey: "test",
	}

	filesystem := vfs.NewOS(t.TempDir())
	smallData := testutil.GenerateTestData(64 * 1024)
	require.NoError(t, filesystem.WriteFile("small.bin", smallData, 0o644))
	bigData := testutil.GenerateTestData(int(DefaultPartSize) + 4096)
	require.NoError(t, filesystem.WriteFile("big.bin", bigData, 0o644))

	client, err := New(dest, WithFilesystem(filesystem))
	require.NoError(t, err)

	var transferred int64
	require.NoError(t, client.UploadFile(ctx, "small.bin", "small.bin", func(n int64) { transferred += n }))
	assert.Equal(t, int64(len(smallData)), transferred)

	require.NoError(t, client.UploadFile(ctx, "big.bin", "big.bin", nil))

	head, err := raw.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String("big.bin"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(bigData)), aws.ToInt64(head.ContentLength))

	total, err := client.BucketSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(smallData)+len(bigData)), total)

	url, presigned, err := client.ObjectURL(ctx, "small.bin")
	require.NoError(t, err)
	assert.True(t, presigned)
	assert.NotEmpty(t, url)
}

func rawClient(t *testing.T, ctx context.Context, stack *testutil.LocalStackContainer) *s3.Client {
	t.Helper()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(stack.Region()),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
		o.BaseEndpoint = aws.String(stack.Endpoint())
	})
}
