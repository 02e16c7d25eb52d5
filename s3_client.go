package main

import (
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Uploader abstracts the single write the uploader depends on.
// Implementations include the AWS SDK v2 client and the in-memory store used by tests.
type S3Uploader interface {
	// Upload creates or replaces an object. A non-nil IfNoneMatch makes the
	// store reject the write with 412 when the current ETag matches it.
	Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error)
}

// URLSigner produces time-limited GET URLs for uploaded objects.
type URLSigner interface {
	PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error)
}

// ObjectClient is one client handle held by the pool.
type ObjectClient interface {
	S3Uploader
	URLSigner
}

// UploadInput contains the parameters for a put object request.
// This abstraction allows tests to verify upload parameters without
// depending directly on AWS SDK types.
type UploadInput struct {
	Bucket        string
	Key           string
	Body          io.Reader
	ContentLength int64
	ContentType   *string
	CacheControl  *string
	IfNoneMatch   *string
}

// UploadOutput contains the result of a put object request.
type UploadOutput struct {
	VersionID *string
	ETag      *string
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type presignGetAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3UploaderSDK implements ObjectClient using the AWS SDK v2.
type S3UploaderSDK struct {
	client    putObjectAPI
	presigner presignGetAPI
}

var _ ObjectClient = (*S3UploaderSDK)(nil)

// NewS3UploaderWithClient wraps an S3 client and its presigner.
func NewS3UploaderWithClient(client *s3.Client) *S3UploaderSDK {
	return &S3UploaderSDK{
		client:    client,
		presigner: s3.NewPresignClient(client),
	}
}

// Upload implements S3Uploader.Upload with a single PutObject call.
func (u *S3UploaderSDK) Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	sdkInput := &s3.PutObjectInput{
		Bucket:        aws.String(input.Bucket),
		Key:           aws.String(input.Key),
		Body:          input.Body,
		ContentLength: aws.Int64(input.ContentLength),
	}

	// Only set optional fields if they are provided
	if input.ContentType != nil {
		sdkInput.ContentType = input.ContentType
	}
	if input.CacheControl != nil {
		sdkInput.CacheControl = input.CacheControl
	}
	if input.IfNoneMatch != nil {
		sdkInput.IfNoneMatch = input.IfNoneMatch
	}

	result, err := u.client.PutObject(ctx, sdkInput)
	if err != nil {
		return nil, err
	}

	return &UploadOutput{
		VersionID: result.VersionId,
		ETag:      result.ETag,
	}, nil
}

// PresignGet implements URLSigner. Signing is local, no request is sent.
func (u *S3UploaderSDK) PresignGet(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := u.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}
