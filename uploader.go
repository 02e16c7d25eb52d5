package main

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gabriel-vasile/mimetype"
)

type outcomeStatus int

const (
	outcomeUploaded outcomeStatus = iota
	outcomeSkipped
	outcomeExcluded
	outcomeFailed
)

func (s outcomeStatus) String() string {
	switch s {
	case outcomeUploaded:
		return "uploaded"
	case outcomeSkipped:
		return "not modified"
	case outcomeExcluded:
		return "excluded"
	default:
		return "failed"
	}
}

// outcome is the result of one file's upload attempt.
type outcome struct {
	Record fileRecord
	Key    string
	Status outcomeStatus
	ETag   string
	Size   int64
	URL    string
	Err    *OpError
}

// present reports whether the object is in the bucket with this file's content.
func (o outcome) present() bool {
	return o.Status == outcomeUploaded || o.Status == outcomeSkipped
}

// objectURLs resolves the URL published for a key, either below a public
// base URL or as a presigned GET.
type objectURLs struct {
	bucket     string
	publicBase string
	ttl        time.Duration
}

func (u *objectURLs) resolve(ctx context.Context, signer URLSigner, key string) (string, error) {
	if u.publicBase != "" {
		return strings.TrimSuffix(u.publicBase, "/") + "/" + strings.TrimPrefix(key, "/"), nil
	}
	return signer.PresignGet(ctx, u.bucket, key, u.ttl)
}

// conditionalUploader puts files so that unchanged content is rejected by
// the store instead of being written again.
type conditionalUploader struct {
	bucket       string
	sourceRoot   string
	prefix       string
	cacheControl string
	urls         *objectURLs // nil disables URL output
}

func (u *conditionalUploader) upload(ctx context.Context, client ObjectClient, rec fileRecord) outcome {
	key := objectKey(rec.Rel, u.sourceRoot, u.prefix)
	out := outcome{Record: rec, Key: key}

	if isPlaceholder(key) {
		out.Status = outcomeExcluded
		return out
	}

	body, err := os.ReadFile(rec.Path)
	if err != nil {
		out.Status = outcomeFailed
		out.Err = &OpError{Op: "read", Bucket: u.bucket, Key: key, Path: rec.Path, Kind: FilesystemError, Err: err}
		return out
	}
	out.Size = int64(len(body))

	input := &UploadInput{
		Bucket:        u.bucket,
		Key:           key,
		Body:          bytes.NewReader(body),
		ContentLength: out.Size,
		ContentType:   aws.String(contentType(rec.Path, body)),
		IfNoneMatch:   aws.String(contentETag(body)),
	}
	if u.cacheControl != "" {
		input.CacheControl = aws.String(u.cacheControl)
	}

	res, err := client.Upload(ctx, input)
	if err != nil {
		kind, status := classifyPutError(err)
		if kind != PreconditionSkip {
			out.Status = outcomeFailed
			out.Err = &OpError{Op: "put", Bucket: u.bucket, Key: key, Path: rec.Path, Kind: kind, Status: status, Err: err}
			return out
		}
		out.Status = outcomeSkipped
	} else {
		out.Status = outcomeUploaded
		if res != nil {
			out.ETag = aws.ToString(res.ETag)
		}
	}

	if u.urls != nil {
		// A URL failure leaves the URL empty, the file outcome stands.
		if url, err := u.urls.resolve(ctx, client, key); err == nil {
			out.URL = url
		}
	}

	return out
}

// contentETag is the quoted hex MD5 of body, the ETag S3 assigns to a
// single-part object with this content.
func contentETag(body []byte) string {
	sum := md5.Sum(body) // #nosec G401 - ETag compatibility, not a security boundary
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// contentType prefers the extension mapping and falls back to sniffing.
func contentType(name string, body []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	if len(body) > 0 {
		return mimetype.Detect(body).String()
	}
	return "application/octet-stream"
}
