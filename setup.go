package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// envPrefix matches the variables GitHub Actions sets for action inputs,
// e.g. INPUT_R2-BUCKET for the r2-bucket input.
const envPrefix = "INPUT"

const defaultEnvFile = ".env"

// app holds the process level dependencies of a run.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// newFactory builds the client factory for the pool. Tests replace it
	// with an in-memory store.
	newFactory func(context.Context, s3ClientConfig) (clientFactory, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, newFactory: newS3ClientFactory}
}

// newRootCmd wires flags, environment and config file into one viper
// instance. Precedence is flags, then environment, then config file, then defaults.
func newRootCmd(a *app) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "go-bucket-uploader",
		Short: "Upload changed files from a directory to an S3 compatible bucket",
		Long: `go-bucket-uploader syncs a local directory to an S3 compatible bucket
(Cloudflare R2 by default). Every file is sent with an If-None-Match
precondition holding its MD5, so the bucket itself rejects files whose
content did not change. No local cache is kept between runs.

Every option can also be given as an INPUT_<NAME> environment variable
(INPUT_R2-BUCKET as set by GitHub Actions, or INPUT_R2_BUCKET), in a
dotenv file, or in a config file passed with --config.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v.GetBool("version") {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), GetVersion())
				return err
			}

			if err := loadEnvFile(v.GetString("env-file")); err != nil {
				return &exitError{code: CmdLineOptionError, err: err}
			}

			opts, err := loadOptions(v)
			if err != nil {
				return &exitError{code: CmdLineOptionError, err: err}
			}
			if err := opts.validate(); err != nil {
				return &exitError{code: CmdLineOptionError, err: err}
			}
			return a.run(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "config file (yaml, json or toml)")
	f.String("env-file", defaultEnvFile, "dotenv file with INPUT_* variables, skipped when missing")

	f.String("r2-account-id", "", "Cloudflare account id, used to build the R2 endpoint")
	f.String("r2-access-key-id", "", "access key id")
	f.String("r2-secret-access-key", "", "secret access key")
	f.String("r2-bucket", "", "bucket to upload files to")
	f.String("source-dir", "", "directory to upload")
	f.String("destination-dir", "", "key prefix in the bucket (default is the source dir)")
	f.Bool("output-file-url", false, "publish a key to URL map in the file-urls output")
	f.String("cache-control", "", "Cache-Control header for every object")

	f.Int("batch-size", 0, "upload in fixed batches of this many files (0 uses the client pool)")
	f.Int("pool-size", defaultPoolSize, "number of independent clients")
	f.String("pool-mode", "lockstep", "pool partitioning: lockstep or stream")
	f.String("fail-mode", "fail-fast", "failure handling: fail-fast or collect-all")

	f.String("endpoint", "", "S3 endpoint URL, overrides the R2 endpoint")
	f.String("region", defaultRegion, "signing region")
	f.Bool("path-style", false, "use path style addressing")
	f.String("public-url", "", "public base URL used for file URLs instead of presigning")
	f.Duration("url-expiry", defaultURLExpiry, "lifetime of presigned file URLs")
	f.Int("retries", defaultRetries, "max attempts per request")
	f.Duration("timeout", 0, "per request timeout (0 means none)")

	f.String("log-level", "info", "log level")
	f.String("log-format", "text", "log format: text or json")
	f.BoolP("verbose", "v", false, "log every file, including excluded ones")
	f.BoolP("quiet", "q", false, "log only warnings and errors")
	f.Bool("dry-run", false, "list and plan the upload without touching the bucket")
	f.Bool("version", false, "print version information and exit")

	// BindPFlags only fails on a nil flag set.
	_ = v.BindPFlags(f)
	f.VisitAll(func(fl *pflag.Flag) {
		_ = v.BindEnv(append([]string{fl.Name}, envNames(fl.Name)...)...)
	})

	return cmd
}

// envNames lists the variables read for key. Actions keeps the hyphen,
// shells and dotenv files need underscores.
func envNames(key string) []string {
	name := envPrefix + "_" + strings.ToUpper(key)
	if alt := strings.ReplaceAll(name, "-", "_"); alt != name {
		return []string{name, alt}
	}
	return []string{name}
}

// loadEnvFile exports the variables of a dotenv file without overriding
// the environment. A missing default file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) && path == defaultEnvFile {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// run is one complete sync: list, plan, upload, publish outputs.
func (a *app) run(ctx context.Context, opts *options) error {
	actions := newActionsOutput(a.stdout)
	actions.mask(opts.secrets()...)

	log, err := newLogger(a.stderr, opts.LogLevel, opts.LogFormat, opts.Verbose, opts.Quiet)
	if err != nil {
		return &exitError{code: CmdLineOptionError, err: err}
	}

	abort := func(code int, err error) error {
		log.WithError(err).Error("Upload aborted")
		if outErr := writeRunOutputs(actions, resultFailure, nil); outErr != nil {
			log.WithError(outErr).Warn("Could not write outputs")
		}
		return &exitError{code: code, err: err}
	}

	files, err := listFiles(opts.Source)
	if err != nil {
		return abort(EnumerationFailed, err)
	}

	plan := opts.batchPlan()
	batches := planBatches(files, plan)
	log.WithFields(logrus.Fields{
		"bucket":  opts.BucketName,
		"policy":  plan.Policy,
		"batches": len(batches),
	}).Infof("There are %d files to be synced", len(files))

	if opts.DryRun {
		logPlan(log, opts, batches)
		if err := writeRunOutputs(actions, resultSuccess, nil); err != nil {
			return &exitError{code: OutputFailed, err: err}
		}
		return nil
	}

	factory, err := a.newFactory(ctx, opts.clientConfig())
	if err != nil {
		return abort(SetupFailed, err)
	}
	pool, err := newClientPool(opts.PoolSize, factory)
	if err != nil {
		return abort(SetupFailed, err)
	}

	mode, _ := opts.failureMode()
	c := &coordinator{
		pool:     pool,
		uploader: opts.uploader(),
		mode:     mode,
		log:      log,
		actions:  actions,
	}
	summary, runErr := c.run(ctx, batches)
	logSummary(log, summary)

	result := summary.Result()
	if runErr != nil {
		result = resultFailure
	}
	if err := writeRunOutputs(actions, result, summary.URLs); err != nil {
		return &exitError{code: OutputFailed, err: err}
	}
	if runErr != nil {
		return &exitError{code: UploadFailed, err: runErr}
	}

	log.Info("All done!")
	return nil
}

func logPlan(log logrus.FieldLogger, opts *options, batches []batch) {
	for _, b := range batches {
		for _, l := range b.Lanes {
			for _, rec := range l.Files {
				log.WithFields(logrus.Fields{
					"batch":  b.Index + 1,
					"client": l.Slot,
				}).Infof("Pretending to upload %s to %s", rec.Rel, objectKey(rec.Rel, opts.Source, opts.Destination))
			}
		}
	}
}

func logSummary(log logrus.FieldLogger, s *runSummary) {
	var elapsed time.Duration
	for _, d := range s.BatchDurations {
		elapsed += d
	}

	entry := log.WithFields(logrus.Fields{
		"uploaded": s.Uploaded,
		"skipped":  s.Skipped,
		"excluded": s.Excluded,
		"failed":   s.Failed,
		"bytes":    humanize.Bytes(uint64(s.BytesUploaded)),
		"duration": elapsed.Round(time.Millisecond),
	})
	if n := s.NotAttempted(); n > 0 {
		entry = entry.WithField("not_attempted", n)
	}
	entry.Infof("Synced %d of %d files", s.Attempted(), s.Total)
}
