package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// MockS3Uploader is an in-memory bucket that records every put attempt and
// honours If-None-Match against the ETag of the stored object.
type MockS3Uploader struct {
	mu sync.Mutex

	// Uploads records all upload attempts in order
	Uploads []*RecordedUpload

	// ErrorFunc allows dynamic error injection based on the upload input.
	// If nil, uploads reach the store. Return an error to simulate failures.
	ErrorFunc func(input *UploadInput) error

	// UploadCount tracks the total number of upload attempts
	UploadCount int

	// Delay is slept before every put completes, keeping uploads in flight.
	Delay time.Duration

	// MaxInFlight is the highest number of concurrent puts observed.
	MaxInFlight int

	inFlight int
	objects  map[string]storedObject
}

// RecordedUpload stores the details of an upload attempt for verification.
type RecordedUpload struct {
	Input   *UploadInput
	Content []byte // Body content is read and stored for verification
	Client  int    // id of the handle that issued the put
	Error   error  // The error returned (if any)
}

type storedObject struct {
	Content      []byte
	ETag         string
	ContentType  string
	CacheControl string
}

// NewMockS3Uploader creates an empty in-memory bucket.
func NewMockS3Uploader() *MockS3Uploader {
	return &MockS3Uploader{
		Uploads: make([]*RecordedUpload, 0),
		objects: make(map[string]storedObject),
	}
}

var _ ObjectClient = (*MockS3Uploader)(nil)

// Upload implements S3Uploader.Upload as handle 0.
func (m *MockS3Uploader) Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	return m.put(ctx, input, 0)
}

func (m *MockS3Uploader) put(_ context.Context, input *UploadInput, client int) (*UploadOutput, error) {
	var content []byte
	if input.Body != nil {
		var err error
		content, err = io.ReadAll(input.Body)
		if err != nil {
			return nil, fmt.Errorf("mock: failed to read body: %w", err)
		}
	}

	m.mu.Lock()
	m.UploadCount++
	m.inFlight++
	m.MaxInFlight = max(m.MaxInFlight, m.inFlight)
	errorFunc := m.ErrorFunc
	m.mu.Unlock()

	if m.Delay > 0 {
		time.Sleep(m.Delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--

	recorded := &RecordedUpload{Input: input, Content: content, Client: client}
	m.Uploads = append(m.Uploads, recorded)

	if errorFunc != nil {
		if err := errorFunc(input); err != nil {
			recorded.Error = err
			return nil, err
		}
	}

	objKey := input.Bucket + "/" + input.Key
	if input.IfNoneMatch != nil {
		if obj, ok := m.objects[objKey]; ok && (*input.IfNoneMatch == "*" || *input.IfNoneMatch == obj.ETag) {
			recorded.Error = newPreconditionFailedError()
			return nil, recorded.Error
		}
	}

	obj := storedObject{Content: content, ETag: contentETag(content)}
	if input.ContentType != nil {
		obj.ContentType = *input.ContentType
	}
	if input.CacheControl != nil {
		obj.CacheControl = *input.CacheControl
	}
	m.objects[objKey] = obj

	return &UploadOutput{ETag: stringPtr(obj.ETag)}, nil
}

// PresignGet implements URLSigner with a fake but well-formed URL.
func (m *MockS3Uploader) PresignGet(_ context.Context, bucket, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://%s.mock.invalid/%s?X-Amz-Expires=%d", bucket, url.PathEscape(key), int(ttl.Seconds())), nil
}

// Object returns the stored object for bucket and key.
func (m *MockS3Uploader) Object(bucket, key string) (storedObject, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[bucket+"/"+key]
	return obj, ok
}

// Reset clears recorded uploads and the counter. Stored objects are kept.
func (m *MockS3Uploader) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads = make([]*RecordedUpload, 0)
	m.UploadCount = 0
	m.MaxInFlight = 0
	m.ErrorFunc = nil
}

// GetUploadByKey returns the first upload matching the given key, or nil if not found.
// Note: The returned pointer references internal test data and should not be modified by callers.
func (m *MockS3Uploader) GetUploadByKey(key string) *RecordedUpload {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Uploads {
		if u.Input.Key == key {
			return u
		}
	}
	return nil
}

// Keys returns the keys of all put attempts in order.
func (m *MockS3Uploader) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, len(m.Uploads))
	for i, u := range m.Uploads {
		keys[i] = u.Input.Key
	}
	return keys
}

// mockHandle is one pool handle onto a shared MockS3Uploader.
type mockHandle struct {
	*MockS3Uploader
	id int
}

func (h *mockHandle) Upload(ctx context.Context, input *UploadInput) (*UploadOutput, error) {
	return h.put(ctx, input, h.id)
}

// factory returns a clientFactory handing out numbered handles onto m.
func (m *MockS3Uploader) factory() clientFactory {
	next := 0
	return func() (ObjectClient, error) {
		h := &mockHandle{MockS3Uploader: m, id: next}
		next++
		return h, nil
	}
}

// stringPtr is a helper to get a pointer to a string.
func stringPtr(s string) *string {
	return &s
}

// --- Error injection helpers ---

// ErrorOnKey returns an ErrorFunc that fails uploads matching the given key.
func ErrorOnKey(key string, err error) func(*UploadInput) error {
	return func(input *UploadInput) error {
		if input.Key == key {
			return err
		}
		return nil
	}
}

// ErrorAlways returns an ErrorFunc that fails all uploads.
func ErrorAlways(err error) func(*UploadInput) error {
	return func(*UploadInput) error {
		return err
	}
}

// ErrorNTimes returns an ErrorFunc that fails the first N uploads, then succeeds.
func ErrorNTimes(n int, err error) func(*UploadInput) error {
	count := 0
	var mu sync.Mutex
	return func(*UploadInput) error {
		mu.Lock()
		defer mu.Unlock()
		count++
		if count <= n {
			return err
		}
		return nil
	}
}

// --- SDK shaped errors ---

// newAPIError builds the error chain the SDK returns for an HTTP error response.
func newAPIError(status int, code, message string) error {
	return &smithy.OperationError{
		ServiceID:     "S3",
		OperationName: "PutObject",
		Err: &awshttp.ResponseError{
			ResponseError: &smithyhttp.ResponseError{
				Response: &smithyhttp.Response{Response: &http.Response{StatusCode: status}},
				Err:      &smithy.GenericAPIError{Code: code, Message: message},
			},
			RequestID: "mock-request-id",
		},
	}
}

func newPreconditionFailedError() error {
	return newAPIError(http.StatusPreconditionFailed, "PreconditionFailed", "At least one of the pre-conditions you specified did not hold")
}

func newAccessDeniedError() error {
	return newAPIError(http.StatusForbidden, "AccessDenied", "Access Denied")
}

// newNetworkError builds the error chain of a request that never got a response.
func newNetworkError() error {
	return &smithy.OperationError{
		ServiceID:     "S3",
		OperationName: "PutObject",
		Err:           &smithyhttp.RequestSendError{Err: errors.New("dial tcp: lookup bucket.invalid: no such host")},
	}
}
