package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// clientFactory builds one independent client handle.
type clientFactory func() (ObjectClient, error)

// clientPool owns a fixed set of client handles, all built up front.
// Handles are never replaced, so Get needs no locking.
type clientPool struct {
	clients []ObjectClient
}

func newClientPool(size int, factory clientFactory) (*clientPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}

	clients := make([]ObjectClient, 0, size)
	for i := 0; i < size; i++ {
		c, err := factory()
		if err != nil {
			return nil, fmt.Errorf("creating client %d of %d: %w", i+1, size, err)
		}
		clients = append(clients, c)
	}

	return &clientPool{clients: clients}, nil
}

// Get returns the handle bound to slot. Slots wrap around the pool size.
func (p *clientPool) Get(slot int) ObjectClient {
	return p.clients[slot%len(p.clients)]
}

func (p *clientPool) Len() int {
	return len(p.clients)
}

// s3ClientConfig is everything needed to reach the bucket's endpoint.
type s3ClientConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	PathStyle       bool
	Retries         int
	Timeout         time.Duration
}

func r2Endpoint(accountID string) string {
	return fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
}

func (c s3ClientConfig) validate() error {
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return errors.New("access key id and secret access key are required")
	}
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return fmt.Errorf("invalid endpoint %q: %w", c.Endpoint, err)
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("invalid endpoint %q: must be an absolute http(s) URL", c.Endpoint)
	}
	return nil
}

// newS3ClientFactory loads the shared AWS config once and returns a factory
// producing S3 clients that each own their HTTP transport.
func newS3ClientFactory(ctx context.Context, cfg s3ClientConfig) (clientFactory, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")),
		// S3-compatible stores reject the default flexible checksums.
		config.WithRequestChecksumCalculation(aws.RequestChecksumCalculationWhenRequired),
	}
	if cfg.Retries > 0 {
		configOpts = append(configOpts, config.WithRetryMaxAttempts(cfg.Retries))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return func() (ObjectClient, error) {
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.PathStyle
			o.HTTPClient = awshttp.NewBuildableClient().WithTimeout(cfg.Timeout)
		})
		return NewS3UploaderWithClient(client), nil
	}, nil
}
