package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestClassifyPutError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantKind   errorKind
		wantStatus int
	}{
		{"precondition failed response", newPreconditionFailedError(), PreconditionSkip, http.StatusPreconditionFailed},
		{"precondition failed code only", &smithy.GenericAPIError{Code: "PreconditionFailed"}, PreconditionSkip, http.StatusPreconditionFailed},
		{"412 with another code", newAPIError(http.StatusPreconditionFailed, "Whatever", ""), PreconditionSkip, http.StatusPreconditionFailed},
		{"access denied", newAccessDeniedError(), RemoteRejection, http.StatusForbidden},
		{"server error", newAPIError(http.StatusInternalServerError, "InternalError", "boom"), RemoteRejection, http.StatusInternalServerError},
		{"api error without response", &smithy.GenericAPIError{Code: "NoSuchBucket"}, RemoteRejection, 0},
		{"no response", newNetworkError(), TransportError, 0},
		{"deadline", fmt.Errorf("put: %w", context.DeadlineExceeded), TransportError, 0},
		{"plain error", errors.New("unexpected EOF"), TransportError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, status := classifyPutError(tt.err)
			assert.Equal(t, tt.wantKind, kind)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, isPreconditionFailed(newPreconditionFailedError()))
	assert.False(t, isPreconditionFailed(newAccessDeniedError()))
	assert.False(t, isPreconditionFailed(nil))
}

func TestOpError(t *testing.T) {
	cause := errors.New("access denied")
	err := &OpError{Op: "put", Bucket: "site", Key: "dist/a.txt", Path: "/src/a.txt", Kind: RemoteRejection, Status: 403, Err: cause}

	assert.Equal(t, "put s3://site/dist/a.txt (/src/a.txt): access denied", err.Error())
	assert.True(t, errors.Is(err, ErrRemoteRejection))
	assert.False(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, cause))

	wrapped := fmt.Errorf("batch 1: %w", err)
	var opErr *OpError
	assert.True(t, errors.As(wrapped, &opErr))
	assert.Equal(t, "dist/a.txt", opErr.Key)
}

func TestOpErrorMessages(t *testing.T) {
	cause := errors.New("boom")
	assert.Equal(t, "list /src: boom", (&OpError{Op: "list", Path: "/src", Err: cause}).Error())
	assert.Equal(t, "put s3://b/k: boom", (&OpError{Op: "put", Bucket: "b", Key: "k", Err: cause}).Error())
	assert.Equal(t, "put: boom", (&OpError{Op: "put", Err: cause}).Error())
}

func TestErrorKindString(t *testing.T) {
	assert.Equal(t, "FilesystemError", FilesystemError.String())
	assert.Equal(t, "PreconditionSkip", PreconditionSkip.String())
	assert.Equal(t, "TransportError", TransportError.String())
	assert.Equal(t, "RemoteRejection", RemoteRejection.String())
	assert.Equal(t, "Unknown", kindUnknown.String())
}
