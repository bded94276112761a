package objstore

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"

	"github.com/ajithvnr2001/multi-cloud-uploader/internal/objstore/errors"
)

// UploadFile uploads the local file at path under the given key.
//
// Files at or below the multipart threshold go up in a single PutObject;
// larger files are split into parts uploaded by a bounded worker pool, with
// the whole upload aborted server-side if any part fails. onProgress, when
// non-nil, receives the byte count of each completed chunk so callers can
// accumulate transfer progress.
func (c *Client) UploadFile(ctx context.Context, path, key string, onProgress func(int64)) error {
	info, err := c.fs.Stat(path)
	if err != nil {
		return fmt.Errorf("stating %s: %w", path, err)
	}
	size := info.Size()

	f, err := c.fs.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	contentType := detectContentType(f)

	if size <= c.threshold {
		return c.putObject(ctx, f, key, size, contentType, onProgress)
	}
	return c.multipartUpload(ctx, f, key, size, contentType, onProgress)
}

// detectContentType sniffs the content type from the reader's head and
// rewinds. Falls back to a generic type when sniffing fails.
func detectContentType(f io.ReadSeeker) string {
	mtype, err := mimetype.DetectReader(f)
	if _, seekErr := f.Seek(0, io.SeekStart); seekErr != nil {
		return "application/octet-stream"
	}
	if err != nil {
		return "application/octet-stream"
	}
	return mtype.String()
}

func (c *Client) putObject(
	ctx context.Context,
	body io.Reader,
	key string,
	size int64,
	contentType string,
	onProgress func(int64),
) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.dest.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}

	if _, err := c.api.PutObject(ctx, input); err != nil {
		return errors.NewError("putObject", err).WithBucket(c.dest.Bucket).WithKey(key)
	}
	if onProgress != nil {
		onProgress(size)
	}
	return nil
}

func (c *Client) multipartUpload(
	ctx context.Context,
	f io.ReaderAt,
	key string,
	size int64,
	contentType string,
	onProgress func(int64),
) error {
	uploadID, err := c.createMultipartUpload(ctx, key, contentType)
	if err != nil {
		return err
	}

	parts, err := c.uploadParts(ctx, f, key, size, uploadID, onProgress)
	if err != nil {
		c.abortMultipartUpload(ctx, key, uploadID)
		return err
	}

	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(c.dest.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: parts,
		},
	}
	if _, err := c.api.CompleteMultipartUpload(ctx, input); err != nil {
		c.abortMultipartUpload(ctx, key, uploadID)
		return errors.NewError("completeMultipartUpload", err).WithBucket(c.dest.Bucket).WithKey(key)
	}

	c.log.Debug("multipart upload completed",
		"bucket", c.dest.Bucket,
		"key", key,
		"size", size,
		"parts", len(parts))
	return nil
}

func (c *Client) createMultipartUpload(ctx context.Context, key, contentType string) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(c.dest.Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	output, err := c.api.CreateMultipartUpload(ctx, input)
	if err != nil {
		return "", errors.NewError("createMultipartUpload", err).WithBucket(c.dest.Bucket).WithKey(key)
	}
	return aws.ToString(output.UploadId), nil
}

// uploadParts uploads all parts through a semaphore-bounded worker pool.
// Each part reads its own slice of the file via a SectionReader, so parts
// never contend on a shared read cursor.
func (c *Client) uploadParts(
	ctx context.Context,
	f io.ReaderAt,
	key string,
	size int64,
	uploadID string,
	onProgress func(int64),
) ([]awstypes.CompletedPart, error) {
	numParts := int((size + c.partSize - 1) / c.partSize)

	type partResult struct {
		partNumber int32
		etag       string
		size       int64
		err        error
	}

	results := make(chan partResult, numParts)
	sem := make(chan struct{}, c.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < numParts; i++ {
		wg.Add(1)
		go func(partNum int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			offset := int64(partNum) * c.partSize
			partSize := c.partSize
			if offset+partSize > size {
				partSize = size - offset
			}

			input := &s3.UploadPartInput{
				Bucket:     aws.String(c.dest.Bucket),
				Key:        aws.String(key),
				UploadId:   aws.String(uploadID),
				PartNumber: aws.Int32(int32(partNum + 1)),
				Body:       io.NewSectionReader(f, offset, partSize),
			}

			output, err := c.api.UploadPart(ctx, input)
			if err != nil {
				results <- partResult{
					partNumber: int32(partNum + 1),
					err:        errors.NewError("uploadPart", err).WithBucket(c.dest.Bucket).WithKey(key),
				}
				return
			}

			results <- partResult{
				partNumber: int32(partNum + 1),
				etag:       aws.ToString(output.ETag),
				size:       partSize,
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	parts := make([]awstypes.CompletedPart, numParts)
	var firstErr error
	for result := range results {
		if result.err != nil {
			if firstErr == nil {
				firstErr = result.err
			}
			continue
		}
		parts[result.partNumber-1] = awstypes.CompletedPart{
			ETag:       aws.String(result.etag),
			PartNumber: aws.Int32(result.partNumber),
		}
		if onProgress != nil {
			onProgress(result.size)
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return parts, nil
}

// abortMultipartUpload cleans up a failed upload. Abort errors are ignored;
// there is nothing further to do with them.
func (c *Client) abortMultipartUpload(ctx context.Context, key, uploadID string) {
	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(c.dest.Bucket),
		Key:      aws.String(key),
		UploadId: aws.String(uploadID),
	}
	_, _ = c.api.AbortMultipartUpload(ctx, input)
}
