package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/distfs/internal/logger"
	"github.com/marmos91/distfs/internal/telemetry"
	"github.com/marmos91/distfs/pkg/metrics"
	"github.com/marmos91/distfs/pkg/store"
)

// Source is the part of *store.Store a backup reads from.
type Source interface {
	List(ctx context.Context) ([]store.Entry, error)
	Download(ctx context.Context, name string, w io.Writer, progress store.ProgressFunc) (store.Entry, error)
}

// Report summarizes one run.
type Report struct {
	RunID    string        `json:"run_id" yaml:"run_id"`
	Target   string        `json:"target" yaml:"target"`
	Copied   int           `json:"copied" yaml:"copied"`
	Skipped  int           `json:"skipped" yaml:"skipped"`
	Failed   int           `json:"failed" yaml:"failed"`
	Bytes    uint64        `json:"bytes" yaml:"bytes"`
	Duration time.Duration `json:"duration_ns" yaml:"duration"`
}

// Runner copies table entries to a target.
type Runner struct {
	source   Source
	target   Target
	manifest *Manifest
	metrics  metrics.BackupMetrics
}

// NewRunner returns a runner. manifest may be nil, in which case every run
// copies everything.
func NewRunner(source Source, target Target, manifest *Manifest, m metrics.BackupMetrics) *Runner {
	return &Runner{source: source, target: target, manifest: manifest, metrics: m}
}

// Run performs one backup pass. A failing entry does not stop the run; the
// errors of all failed entries are joined into the returned error.
func (r *Runner) Run(ctx context.Context) (rep Report, err error) {
	rep = Report{RunID: uuid.NewString(), Target: r.target.Kind()}
	start := time.Now()

	ctx, span := telemetry.StartBackupSpan(ctx, "run", r.target.Kind())
	defer func() {
		rep.Duration = time.Since(start)
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		span.End()
		metrics.ObserveBackupRun(r.metrics, r.target.Kind(), rep.Duration, rep.Copied, rep.Bytes, err)
	}()

	entries, err := r.source.List(ctx)
	if err != nil {
		return rep, fmt.Errorf("list: %w", err)
	}

	logger.InfoCtx(ctx, "Backup started",
		"run_id", rep.RunID, logger.KeyTarget, r.target.Kind(), logger.KeyEntries, len(entries))

	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		if r.manifest != nil {
			done, err := r.manifest.Has(e)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: manifest: %w", e.Name, err))
				rep.Failed++
				continue
			}
			if done {
				rep.Skipped++
				continue
			}
		}

		if err := r.copyEntry(ctx, e); err != nil {
			logger.WarnCtx(ctx, "Backup of file failed", logger.Filename(e.Name), logger.Err(err))
			errs = append(errs, fmt.Errorf("%s: %w", e.Name, err))
			rep.Failed++
			continue
		}
		rep.Copied++
		rep.Bytes += e.Size

		if r.manifest != nil {
			if err := r.manifest.Mark(e, time.Now()); err != nil {
				errs = append(errs, fmt.Errorf("%s: manifest: %w", e.Name, err))
			}
		}
	}

	logger.InfoCtx(ctx, "Backup finished",
		"run_id", rep.RunID,
		logger.KeyTarget, r.target.Kind(),
		"copied", rep.Copied,
		"skipped", rep.Skipped,
		"failed", rep.Failed,
		logger.KeyBytesWritten, rep.Bytes,
		logger.DurationMs(start),
	)

	return rep, errors.Join(errs...)
}

// copyEntry streams one blob from the device into the target through a pipe.
func (r *Runner) copyEntry(ctx context.Context, e store.Entry) (err error) {
	start := time.Now()
	key := objectKey("", e.Name)

	ctx, span := telemetry.StartBackupSpan(ctx, "put", r.target.Kind(), telemetry.StorageKey(key))
	defer func() {
		if err != nil {
			telemetry.RecordError(ctx, err)
		}
		span.End()
		metrics.ObserveBackupObject(r.metrics, r.target.Kind(), time.Since(start), e.Size, err)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := r.source.Download(ctx, e.Name, pw, nil)
		pw.CloseWithError(err)
		done <- err
	}()

	err = r.target.Put(ctx, key, pr, int64(e.Size))
	// Unblocks the download if the target gave up early.
	pr.CloseWithError(io.ErrClosedPipe)
	if derr := <-done; err == nil && derr != nil {
		err = derr
	}
	return err
}
