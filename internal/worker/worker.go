// Package worker implements a single Worker: one Page Driver, one
// exclusive-use lock, handles to both sinks, and the run's date.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zeebrow/ec2-price-tracker/internal/obslog"
	"github.com/Zeebrow/ec2-price-tracker/internal/pagedriver"
	"github.com/Zeebrow/ec2-price-tracker/internal/record"
	"github.com/Zeebrow/ec2-price-tracker/internal/sinks/csvsink"
	"github.com/Zeebrow/ec2-price-tracker/internal/sinks/dbsink"
)

// Job is an immutable (operating_system, region) pair.
type Job struct {
	OperatingSystem string
	Region          string
}

// Reporter is the increment-only interface Workers use to feed
// observations back to the Run Controller's metrics, replacing the
// process-wide counters of the source (spec §9).
type Reporter interface {
	IncrementErrors(n int)
	IncrementStored(n int)
	IncrementDuplicates(n int)
}

// Worker owns one Page Driver for its entire lifetime. ID identifies it in
// logs only; it carries no scheduling meaning.
type Worker struct {
	ID     int
	Date   string
	Driver pagedriver.Driver
	DB     *dbsink.Sink // nil disables the DB sink
	CSV    *csvsink.Sink // nil disables the CSV sink

	mu sync.Mutex // the "exclusive-use lock" from spec §3/§4.4
}

// Lock and Unlock expose the Worker's exclusive-use lock to the Pool. The
// Pool acquires it before dispatch; RunJob asserts it is already held.
func (w *Worker) Lock()    { w.mu.Lock() }
func (w *Worker) Unlock()  { w.mu.Unlock() }
func (w *Worker) TryLock() bool { return w.mu.TryLock() }

// RunJob executes one job: select filters, iterate rows, normalize each
// into a Record, feed both sinks, and report the outcome. The caller must
// hold w's lock before calling RunJob and release it after RunJob returns,
// matching spec §4.4 step 1's "Worker asserts this" contract — RunJob does
// not lock or unlock itself, and panics if the lock is not held. A panic
// raised while the job runs is recovered, logged and reported as a failed
// job.
func (w *Worker) RunJob(ctx context.Context, job Job, reporter Reporter) (ok bool) {
	if w.mu.TryLock() {
		w.mu.Unlock()
		panic("worker: RunJob called without holding the worker lock")
	}

	log := obslog.Get().WithField("worker", w.ID).WithField("os", job.OperatingSystem).WithField("region", job.Region)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("job panicked, reporting it as failed")
			reporter.IncrementErrors(1)
			ok = false
		}
	}()

	if err := w.Driver.SelectOperatingSystem(ctx, job.OperatingSystem); err != nil {
		log.WithError(err).Warn("selecting operating system failed")
		reporter.IncrementErrors(1)
		return false
	}
	if err := w.Driver.SelectRegion(ctx, job.Region); err != nil {
		log.WithError(err).Warn("selecting region failed")
		reporter.IncrementErrors(1)
		return false
	}

	rawRows, err := w.Driver.IterateRows(ctx)
	if err != nil {
		log.WithError(err).Error("iterating rows failed, tearing down session")
		reporter.IncrementErrors(1)
		w.teardownDriver(log)
		return false
	}

	var collected []record.Record
	var duplicates, stored, normFailures int

	for _, raw := range rawRows {
		rec, err := record.Normalize(w.Date, job.Region, job.OperatingSystem, raw)
		if err != nil {
			normFailures++
			log.WithError(err).Debug("skipping malformed row")
			continue
		}
		collected = append(collected, rec)

		if w.DB != nil {
			outcome, err := w.DB.Insert(ctx, rec)
			switch {
			case err == nil:
				stored++
			case outcome == dbsink.Duplicate:
				duplicates++
			default:
				normFailures++
				log.WithError(err).Debug("db insert failed")
			}
		}
	}

	if normFailures > 0 {
		reporter.IncrementErrors(normFailures)
	}
	if duplicates > 0 {
		log.Warnf("%d duplicate rows skipped by DB sink", duplicates)
		reporter.IncrementDuplicates(duplicates)
	}
	if stored > 0 {
		reporter.IncrementStored(stored)
	}

	if w.CSV != nil {
		if err := w.CSV.Write(w.Date, job.OperatingSystem, job.Region, collected); err != nil {
			log.WithError(err).Error("csv write failed")
			reporter.IncrementErrors(1)
		}
	}

	return true
}

func (w *Worker) teardownDriver(log interface {
	Warn(args ...interface{})
}) {
	if err := w.Driver.Close(); err != nil {
		log.Warn(fmt.Sprintf("closing page driver after failure: %v", err))
	}
}
