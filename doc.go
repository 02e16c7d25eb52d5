/*
Go Bucket Uploader syncs a local directory to an S3 compatible bucket, Cloudflare R2 by default.

Every file is uploaded with an If-None-Match precondition carrying the MD5 of its content, the
same value the bucket stores as the ETag of a single part object. When the object already holds
that content the bucket answers 412 Precondition Failed and the file is reported as not modified.
No local cache is needed: the bucket is the source of truth.

Files are uploaded in batches over a fixed pool of independent clients. Batches run one after
another; within a batch every lane runs concurrently. With fail-fast (the default) the first
failure stops the run, with collect-all every file is attempted and all failures are reported
at the end.

The tool is meant to run as a CI step. Options can be given as flags, as INPUT_<NAME>
environment variables (the way GitHub Actions passes action inputs) or in a config file.
Under GitHub Actions secrets are masked, batches are grouped in the log, and the result and
file-urls outputs are written to $GITHUB_OUTPUT.

The tool only ever adds or replaces objects. Nothing is deleted from the bucket.
*/
package main
