// Package main converts JSON lines of ranking records into the CSV training
// data format, writing to a file, stdout or an S3-compatible bucket.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/onnwee/searchrank/internal/classify"
	"github.com/onnwee/searchrank/internal/config"
	"github.com/onnwee/searchrank/internal/export"
	"github.com/onnwee/searchrank/internal/middleware"
	"github.com/onnwee/searchrank/internal/tracing"
	"github.com/onnwee/searchrank/internal/validate"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// uploader is the part of export.S3Sink used here.
type uploader interface {
	Upload(ctx context.Context, key string, body []byte) (string, error)
}

// newUploader is replaced in tests.
var newUploader = func(cfg export.S3Config) (uploader, error) {
	return export.NewS3Sink(cfg)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rankexport", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "-", "input JSON lines file, - for stdin")
	out := fs.String("out", "-", "output CSV file, - for stdout")
	bucket := fs.String("s3-bucket", "", "upload to this bucket instead of writing -out")
	key := fs.String("s3-key", "", "object key, generated when empty")
	configPath := fs.String("config", "", "path to a YAML config file")
	workers := fs.Int("workers", 0, "concurrent record conversions, 0 for the configured default")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, errs := config.Load(*configPath)
	if cfg == nil {
		cfg = &config.Config{Env: config.DefaultEnv}
	}
	logger := middleware.NewLoggerTo(stderr, cfg.Env).With("cmd", "rankexport")
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(stderr, "invalid configuration: %v\n", err)
		}
		return 1
	}

	if *bucket != "" {
		cfg.ExportS3Bucket = *bucket
	}
	if *key != "" && cfg.ExportS3Bucket == "" {
		fmt.Fprintln(stderr, "-s3-key requires -s3-bucket or EXPORT_S3_BUCKET")
		return 2
	}
	objectKey, err := validate.ObjectKey(*key)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -s3-key: %v\n", err)
		return 2
	}
	if *workers > 0 {
		cfg.ExportWorkers = *workers
	}

	provider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "searchrank-export",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
		Logger:       logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "init tracing: %v\n", err)
		return 1
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	cls, err := classify.Load(cfg.TaxonomyPath, cfg.CategoriesPath)
	if err != nil {
		fmt.Fprintf(stderr, "load classifier: %v\n", err)
		return 1
	}

	r := stdin
	if *in != "-" {
		f, err := os.Open(*in)
		if err != nil {
			fmt.Fprintf(stderr, "open input: %v\n", err)
			return 1
		}
		defer f.Close()
		r = f
	}

	exporter := export.New(export.Config{
		Workers:    cfg.ExportWorkers,
		Classifier: cls,
		Logger:     logger,
	})

	if cfg.ExportS3Bucket != "" {
		sink, err := newUploader(export.S3Config{
			BucketName:      cfg.ExportS3Bucket,
			AccessKeyID:     cfg.ExportS3AccessKeyID,
			SecretAccessKey: cfg.ExportS3SecretAccessKey,
			Endpoint:        cfg.ExportS3Endpoint,
			Region:          cfg.ExportS3Region,
		})
		if err != nil {
			fmt.Fprintf(stderr, "configure s3: %v\n", err)
			return 1
		}

		var buf bytes.Buffer
		if _, err := exporter.Run(ctx, r, &buf); err != nil {
			fmt.Fprintf(stderr, "export: %v\n", err)
			return 1
		}
		uploaded, err := sink.Upload(ctx, objectKey, buf.Bytes())
		if err != nil {
			fmt.Fprintf(stderr, "%v\n", err)
			return 1
		}
		logger.Info("export uploaded", "bucket", cfg.ExportS3Bucket, "key", uploaded)
		fmt.Fprintln(stdout, uploaded)
		return 0
	}

	w := stdout
	var f *os.File
	if *out != "-" {
		if f, err = os.Create(*out); err != nil {
			fmt.Fprintf(stderr, "create output: %v\n", err)
			return 1
		}
		w = f
	}
	_, runErr := exporter.Run(ctx, r, w)
	if f != nil {
		if err := f.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "export: %v\n", runErr)
		return 1
	}
	return 0
}
