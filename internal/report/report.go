// Package report records run metadata once a crawl has finished.
package report

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
)

// MetaFilename is the summary file written inside the output directory.
const MetaFilename = "meta.csv"

// MetaHeader is the header row of the summary file.
var MetaHeader = []string{"time start", "time end", "duration", "downloaded pages", "downloaded notes"}

// Sink receives the run summary in addition to the summary file.
type Sink interface {
	Name() string
	Record(ctx context.Context, summary crawler.RunSummary) error
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Reporter writes the summary file and forwards the summary to sinks.
type Reporter struct {
	outputDir string
	ids       IDGenerator
	sinks     []Sink
	logger    *zap.Logger
}

// New builds a Reporter writing into outputDir.
func New(outputDir string, ids IDGenerator, logger *zap.Logger, sinks ...Sink) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		outputDir: outputDir,
		ids:       ids,
		sinks:     sinks,
		logger:    logger.Named("report"),
	}
}

// Summarize assembles a RunSummary, assigning a run ID when a generator is set.
func (r *Reporter) Summarize(start, end time.Time, pages int, records int64) crawler.RunSummary {
	summary := crawler.RunSummary{
		StartTime:      start,
		EndTime:        end,
		PagesRequested: pages,
		RecordsWritten: records,
	}
	if r.ids != nil {
		id, err := r.ids.NewID()
		if err != nil {
			r.logger.Warn("Failed to generate run id", zap.Error(err))
		} else {
			summary.RunID = id
		}
	}
	return summary
}

// Path returns the location of the summary file.
func (r *Reporter) Path() string {
	return filepath.Join(r.outputDir, MetaFilename)
}

// Write stores the summary file and notifies every sink. Every failure is
// logged; the joined failures are returned so the caller can decide, but a
// failed report never invalidates the crawl itself.
func (r *Reporter) Write(ctx context.Context, summary crawler.RunSummary) error {
	var errs []error
	if err := r.writeMeta(summary); err != nil {
		r.logger.Error("Failed to write run summary", zap.String("path", r.Path()), zap.Error(err))
		errs = append(errs, err)
	} else {
		r.logger.Info("Wrote run summary",
			zap.String("path", r.Path()),
			zap.String("run_id", summary.RunID),
			zap.Int("pages", summary.PagesRequested),
			zap.Int64("records", summary.RecordsWritten),
			zap.Duration("duration", summary.Duration()),
		)
	}
	for _, sink := range r.sinks {
		if err := sink.Record(ctx, summary); err != nil {
			r.logger.Warn("Run summary sink failed", zap.String("sink", sink.Name()), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sink.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Reporter) writeMeta(summary crawler.RunSummary) error {
	if err := os.MkdirAll(r.outputDir, 0o750); err != nil {
		return &crawler.StorageError{Op: "create output dir", Path: r.outputDir, Err: err}
	}
	path := r.Path()
	// #nosec G304 -- path is built from the configured output dir.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o640)
	if err != nil {
		return &crawler.StorageError{Op: "open meta", Path: path, Err: err}
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll([][]string{MetaHeader, MetaRow(summary)}); err != nil {
		_ = f.Close()
		return &crawler.StorageError{Op: "write meta", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &crawler.StorageError{Op: "close meta", Path: path, Err: err}
	}
	return nil
}

// MetaRow renders the summary as the single data row of the summary file.
func MetaRow(summary crawler.RunSummary) []string {
	return []string{
		summary.StartTime.Format(time.TimeOnly),
		summary.EndTime.Format(time.TimeOnly),
		FormatDuration(summary.Duration()),
		strconv.Itoa(summary.PagesRequested),
		strconv.FormatInt(summary.RecordsWritten, 10),
	}
}

// FormatDuration renders d as [D day[s], ]H:MM:SS[.ffffff], at microsecond
// precision. Negative durations are clamped to zero.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	micros := int64(d / time.Microsecond)
	const (
		perSecond = int64(time.Second / time.Microsecond)
		perDay    = 24 * 60 * 60 * perSecond
	)
	days := micros / perDay
	micros -= days * perDay
	frac := micros % perSecond
	secs := micros / perSecond

	out := fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs/60)%60, secs%60)
	if frac != 0 {
		out += fmt.Sprintf(".%06d", frac)
	}
	switch {
	case days == 1:
		out = "1 day, " + out
	case days > 1:
		out = fmt.Sprintf("%d days, %s", days, out)
	}
	return out
}
