package main

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// errorKind classifies why a file could not be listed or uploaded.
type errorKind int

const (
	kindUnknown errorKind = iota
	// FilesystemError means the source tree or a file in it could not be read.
	FilesystemError
	// PreconditionSkip means the store rejected the write because the object
	// already holds the same content. It never escapes the uploader.
	PreconditionSkip
	// TransportError means the request never got an HTTP response.
	TransportError
	// RemoteRejection means the store answered with a failure other than 412.
	RemoteRejection
)

func (k errorKind) String() string {
	switch k {
	case FilesystemError:
		return "FilesystemError"
	case PreconditionSkip:
		return "PreconditionSkip"
	case TransportError:
		return "TransportError"
	case RemoteRejection:
		return "RemoteRejection"
	default:
		return "Unknown"
	}
}

// Sentinels matched by (*OpError).Is, so callers can use errors.Is(err, ErrTransport).
var (
	ErrFilesystem         = errors.New("filesystem error")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrTransport          = errors.New("transport error")
	ErrRemoteRejection    = errors.New("remote rejection")
)

func (k errorKind) sentinel() error {
	switch k {
	case FilesystemError:
		return ErrFilesystem
	case PreconditionSkip:
		return ErrPreconditionFailed
	case TransportError:
		return ErrTransport
	case RemoteRejection:
		return ErrRemoteRejection
	}
	return nil
}

// OpError carries the file and object an operation failed on.
type OpError struct {
	Op     string // "list", "read" or "put"
	Bucket string
	Key    string
	Path   string
	Kind   errorKind
	Status int // HTTP status, 0 when no response was received
	Err    error
}

func (e *OpError) Error() string {
	switch {
	case e.Key != "" && e.Path != "":
		return fmt.Sprintf("%s s3://%s/%s (%s): %v", e.Op, e.Bucket, e.Key, e.Path, e.Err)
	case e.Key != "":
		return fmt.Sprintf("%s s3://%s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *OpError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// httpStatusCode extracts the response status from an SDK error chain.
func httpStatusCode(err error) (int, bool) {
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode(), true
	}
	return 0, false
}

func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
		return true
	}
	status, ok := httpStatusCode(err)
	return ok && status == http.StatusPreconditionFailed
}

// classifyPutError maps a failed put to an error kind and HTTP status.
func classifyPutError(err error) (errorKind, int) {
	if isPreconditionFailed(err) {
		return PreconditionSkip, http.StatusPreconditionFailed
	}

	var sendErr *smithyhttp.RequestSendError
	if errors.As(err, &sendErr) {
		return TransportError, 0
	}

	if status, ok := httpStatusCode(err); ok && status != 0 {
		return RemoteRejection, status
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return RemoteRejection, 0
	}

	return TransportError, 0
}
