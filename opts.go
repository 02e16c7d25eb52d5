package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	defaultPoolSize  = 5
	defaultRegion    = "auto"
	defaultURLExpiry = 7 * 24 * time.Hour
	defaultRetries   = 3
)

type options struct {
	AccountID       string `mapstructure:"r2-account-id"`
	AccessKeyID     string `mapstructure:"r2-access-key-id"`
	SecretAccessKey string `mapstructure:"r2-secret-access-key"`
	BucketName      string `mapstructure:"r2-bucket"`
	Source          string `mapstructure:"source-dir"`
	Destination     string `mapstructure:"destination-dir"`
	OutputFileURL   bool   `mapstructure:"output-file-url"`
	CacheControl    string `mapstructure:"cache-control"`

	BatchSize int    `mapstructure:"batch-size"`
	PoolSize  int    `mapstructure:"pool-size"`
	PoolMode  string `mapstructure:"pool-mode"`
	FailMode  string `mapstructure:"fail-mode"`

	Endpoint  string        `mapstructure:"endpoint"`
	Region    string        `mapstructure:"region"`
	PathStyle bool          `mapstructure:"path-style"`
	PublicURL string        `mapstructure:"public-url"`
	URLExpiry time.Duration `mapstructure:"url-expiry"`
	Retries   int           `mapstructure:"retries"`
	Timeout   time.Duration `mapstructure:"timeout"`

	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
	Verbose   bool   `mapstructure:"verbose"`
	Quiet     bool   `mapstructure:"quiet"`
	DryRun    bool   `mapstructure:"dry-run"`
}

// loadOptions reads the config file named by the "config" key, if any, and
// decodes every layer viper knows about into options.
func loadOptions(v *viper.Viper) (*options, error) {
	if cfgFile := v.GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", cfgFile, err)
		}
	}

	o := &options{}
	if err := v.Unmarshal(o); err != nil {
		return nil, fmt.Errorf("decoding options: %w", err)
	}
	return o, nil
}

// validate checks the options before anything touches the network.
// Defers the per-value checks to validateCmdLineFlag().
func (o *options) validate() error {
	flags := []struct{ label, val string }{
		{"r2-bucket", o.BucketName},
		{"r2-access-key-id", o.AccessKeyID},
		{"r2-secret-access-key", o.SecretAccessKey},
		{"source-dir", o.Source},
	}
	for _, f := range flags {
		if err := validateCmdLineFlag(f.label, f.val); err != nil {
			return err
		}
	}

	if o.AccountID == "" && o.Endpoint == "" {
		return errors.New("one of r2-account-id or endpoint must be set")
	}
	if o.BatchSize < 0 {
		return fmt.Errorf("batch-size must not be negative, got %d", o.BatchSize)
	}
	if o.PoolSize < 1 {
		return fmt.Errorf("pool-size must be at least 1, got %d", o.PoolSize)
	}
	if _, err := o.partition(); err != nil {
		return err
	}
	if _, err := o.failureMode(); err != nil {
		return err
	}
	if o.OutputFileURL && o.PublicURL == "" && o.URLExpiry <= 0 {
		return fmt.Errorf("url-expiry must be positive, got %s", o.URLExpiry)
	}

	return nil
}

// validateCmdLineFlag handles the actual validation of a single value.
func validateCmdLineFlag(label, val string) error {
	if val == "" {
		return fmt.Errorf("%s is not set", label)
	}
	if label != "source-dir" {
		return nil
	}

	info, err := os.Stat(val)
	if err != nil {
		return fmt.Errorf("%s: %w", label, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s %s is not a directory", label, val)
	}
	return nil
}

// partition picks fixed batches when a batch size is given, the pool otherwise.
func (o *options) partition() (partitionPolicy, error) {
	if o.BatchSize > 0 {
		return partitionFixed, nil
	}
	switch o.PoolMode {
	case "", "lockstep":
		return partitionLockstep, nil
	case "stream":
		return partitionStream, nil
	}
	return 0, fmt.Errorf("pool-mode must be lockstep or stream, got %q", o.PoolMode)
}

func (o *options) failureMode() (failureMode, error) {
	switch o.FailMode {
	case "", "fail-fast":
		return failFast, nil
	case "collect-all":
		return collectAll, nil
	}
	return 0, fmt.Errorf("fail-mode must be fail-fast or collect-all, got %q", o.FailMode)
}

func (o *options) batchPlan() batchPlan {
	policy, _ := o.partition()
	return batchPlan{Policy: policy, BatchSize: o.BatchSize, PoolWidth: o.PoolSize}
}

func (o *options) clientConfig() s3ClientConfig {
	endpoint := o.Endpoint
	if endpoint == "" {
		endpoint = r2Endpoint(o.AccountID)
	}
	return s3ClientConfig{
		Endpoint:        endpoint,
		Region:          o.Region,
		AccessKeyID:     o.AccessKeyID,
		SecretAccessKey: o.SecretAccessKey,
		PathStyle:       o.PathStyle,
		Retries:         o.Retries,
		Timeout:         o.Timeout,
	}
}

func (o *options) uploader() *conditionalUploader {
	u := &conditionalUploader{
		bucket:       o.BucketName,
		sourceRoot:   o.Source,
		prefix:       o.Destination,
		cacheControl: o.CacheControl,
	}
	if o.OutputFileURL {
		u.urls = &objectURLs{bucket: o.BucketName, publicBase: o.PublicURL, ttl: o.URLExpiry}
	}
	return u
}

// secrets returns the values that must never appear in CI logs.
func (o *options) secrets() []string {
	return []string{o.AccountID, o.AccessKeyID, o.SecretAccessKey}
}
