// Package export turns JSON lines of ranking records into the CSV training
// data format and ships the result to a file or object storage.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/onnwee/searchrank/internal/ranking"
	"github.com/onnwee/searchrank/internal/tracing"
)

const (
	defaultBatchSize = 1024
	maxLineBytes     = 1 << 20
)

// Stats summarizes one export run.
type Stats struct {
	Lines   int // non-empty input lines read
	Rows    int // CSV rows written
	Skipped int // lines rejected as invalid
}

// Config holds exporter settings.
type Config struct {
	// Workers bounds concurrent record conversion. Default: GOMAXPROCS.
	Workers int
	// BatchSize is the number of lines converted per round. Default: 1024.
	BatchSize int
	// Classifier resolves raw types on records without an explicit class.
	Classifier ranking.Classifier
	// Metrics is optional.
	Metrics *ranking.Metrics
	Logger  *slog.Logger
}

// Exporter converts record streams to CSV. Row order always follows input order.
type Exporter struct {
	workers   int
	batchSize int
	cls       ranking.Classifier
	metrics   *ranking.Metrics
	logger    *slog.Logger
}

// New creates an exporter, filling in defaults.
func New(cfg Config) *Exporter {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Exporter{
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
		cls:       cfg.Classifier,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

type line struct {
	num  int
	data []byte
}

// Run reads one JSON record per line from r and writes the CSV header and one
// row per valid record to w, each terminated by a newline. Invalid records are
// logged and skipped; I/O errors and cancellation abort the run.
func (e *Exporter) Run(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	ctx, endSpan := tracing.StartSpan(ctx, "export.run")
	stats, err := e.run(ctx, r, w)
	tracing.SetAttributes(ctx,
		attribute.Int("export.lines", stats.Lines),
		attribute.Int("export.rows", stats.Rows),
		attribute.Int("export.skipped", stats.Skipped))
	endSpan(err)
	return stats, err
}

func (e *Exporter) run(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	var stats Stats

	bw := bufio.NewWriter(w)
	if err := ranking.WriteCSVHeader(bw); err != nil {
		return stats, fmt.Errorf("write header: %w", err)
	}
	if err := bw.WriteByte('\n'); err != nil {
		return stats, fmt.Errorf("write header: %w", err)
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	batch := make([]line, 0, e.batchSize)
	num := 0
	for sc.Scan() {
		num++
		text := sc.Bytes()
		if len(text) == 0 {
			continue
		}
		data := make([]byte, len(text))
		copy(data, text)
		batch = append(batch, line{num: num, data: data})
		stats.Lines++

		if len(batch) == e.batchSize {
			if err := e.flush(ctx, batch, bw, &stats); err != nil {
				return stats, err
			}
			batch = batch[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return stats, fmt.Errorf("read records: %w", err)
	}
	if err := e.flush(ctx, batch, bw, &stats); err != nil {
		return stats, err
	}
	if err := bw.Flush(); err != nil {
		return stats, fmt.Errorf("write rows: %w", err)
	}

	e.logger.Info("export finished",
		"lines", stats.Lines,
		"rows", stats.Rows,
		"skipped", stats.Skipped)
	return stats, nil
}

// flush converts a batch concurrently and writes its rows in input order.
func (e *Exporter) flush(ctx context.Context, batch []line, w *bufio.Writer, stats *Stats) error {
	if len(batch) == 0 {
		return nil
	}
	tracing.AddEvent(ctx, "export.batch", attribute.Int("export.batch_size", len(batch)))

	rows := make([]string, len(batch))
	errs := make([]error, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i], errs[i] = e.convert(batch[i].data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, row := range rows {
		if errs[i] != nil {
			stats.Skipped++
			if e.metrics != nil {
				e.metrics.IncInvalidRecords()
			}
			e.logger.Warn("skipping invalid record",
				"line", batch[i].num,
				"error", errs[i])
			continue
		}
		if _, err := w.WriteString(row); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
		stats.Rows++
	}
	return nil
}

func (e *Exporter) convert(data []byte) (string, error) {
	var rec ranking.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("%w: %v", ranking.ErrInvalidRecord, err)
	}
	info, err := rec.Info(e.cls)
	if err != nil {
		return "", err
	}
	return info.CSVRow(), nil
}
