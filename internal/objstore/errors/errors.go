// Package errors provides error types and handling for object store operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents an object store operation error with context about the
// operation that failed. It wraps the underlying AWS SDK error with additional
// context for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "bucketSize", "presign")
	Op string

	// Bucket is the bucket name (if applicable)
	Bucket string

	// Key is the object key (if applicable)
	Key string

	// Err is the underlying error from the AWS SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("objstore.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("objstore.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("objstore.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("objstore.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// Sentinel errors for common object store failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("objstore: object not found")

	// ErrBucketNotFound indicates that the requested bucket does not exist
	ErrBucketNotFound = errors.New("objstore: bucket not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("objstore: access denied")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("objstore: invalid input")

	// ErrMissingCredentials indicates the destination has no usable credentials
	ErrMissingCredentials = errors.New("objstore: missing credentials")

	// ErrTimeout indicates that the operation timed out
	ErrTimeout = errors.New("objstore: operation timeout")
)

// IsBucketNotFound checks if an error indicates that a bucket was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsBucketNotFound(err error) bool {
	return errors.Is(err, ErrBucketNotFound)
}

// IsMissingCredentials checks if an error indicates unusable destination credentials.
func IsMissingCredentials(err error) bool {
	return errors.Is(err, ErrMissingCredentials)
}
