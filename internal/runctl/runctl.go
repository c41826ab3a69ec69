// Package runctl implements the Run Controller: the top-level orchestrator
// that resolves catalogs, builds the job cross-product, drives the Pool,
// and publishes lifecycle state to the Status collaborator.
package runctl

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"github.com/Zeebrow/ec2-price-tracker/internal/archiver"
	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
	"github.com/Zeebrow/ec2-price-tracker/internal/obslog"
	"github.com/Zeebrow/ec2-price-tracker/internal/pagedriver"
	"github.com/Zeebrow/ec2-price-tracker/internal/pool"
	"github.com/Zeebrow/ec2-price-tracker/internal/sinks/csvsink"
	"github.com/Zeebrow/ec2-price-tracker/internal/sinks/dbsink"
	"github.com/Zeebrow/ec2-price-tracker/internal/statusstore"
	"github.com/Zeebrow/ec2-price-tracker/internal/worker"
)

// Config mirrors the Run configuration option table in spec §6.
type Config struct {
	ThreadCount      int
	OverdriveMadness bool
	Compress         bool
	Regions          []string // empty means "all discovered"
	OperatingSystems []string // empty means "all discovered"
	StoreCSV         bool
	StoreDB          bool
	CSVDataDir       string
	Date             string // ISO-8601; defaults to today if empty
	CommandLineBlob  string // opaque, persisted verbatim alongside metrics
}

// NewDriver constructs one fresh Page Driver. The Run Controller calls
// this once to resolve catalogs and once per Worker.
type NewDriver func(ctx context.Context) (pagedriver.Driver, error)

// Controller ties together the Status collaborator, both sinks, and a
// Page Driver factory.
type Controller struct {
	Status    statusstore.Store
	NewDriver NewDriver
	DB        *dbsink.Sink // nil when StoreDB is disabled for every run
	RunNo     func() int64 // supplies the next run number for metrics/command_line rows
}

// metricsReporter accumulates increment-only counts across a run, per the
// global-mutable-state redesign in spec §9.
type metricsReporter struct {
	errors, stored, duplicates int64
}

func (m *metricsReporter) IncrementErrors(n int)     { atomic.AddInt64(&m.errors, int64(n)) }
func (m *metricsReporter) IncrementStored(n int)     { atomic.AddInt64(&m.stored, int64(n)) }
func (m *metricsReporter) IncrementDuplicates(n int) { atomic.AddInt64(&m.duplicates, int64(n)) }

// Run executes one full traversal per spec §4.6: starting → collecting
// catalogs → running → cleaning up → idle, via an unconditional wrapper
// that always restores idle even on panic or error (fixing the missing
// try/finally in the source this is distilled from).
func (c *Controller) Run(ctx context.Context, cfg Config) (err error) {
	log := obslog.Get()

	current, err := c.Status.Read(ctx)
	if err != nil {
		return fmt.Errorf("%w: reading status: %v", ec2err.ErrConfig, err)
	}
	if current != statusstore.Idle {
		return fmt.Errorf("%w: already running (%s)", ec2err.ErrConfig, current)
	}

	if err := c.Status.Write(ctx, statusstore.Starting); err != nil {
		return fmt.Errorf("%w: writing starting status: %v", ec2err.ErrSink, err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run controller panicked: %v", r)
			log.WithField("panic", r).Error("run controller recovered from panic")
		}
		if werr := c.Status.Write(context.Background(), statusstore.Idle); werr != nil {
			log.WithError(werr).Error("failed to restore idle status after run")
		}
	}()

	runStart := time.Now()
	date := cfg.Date
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	}

	if err := c.Status.Write(ctx, statusstore.Collecting); err != nil {
		return fmt.Errorf("%w: writing collecting status: %v", ec2err.ErrSink, err)
	}

	catalogStart := time.Now()
	oses, regions, err := c.resolveCatalogs(ctx)
	if err != nil {
		return err
	}
	initSeconds := time.Since(catalogStart).Seconds()

	oses, err = filterCatalog(oses, cfg.OperatingSystems)
	if err != nil {
		return err
	}
	regions, err = filterCatalog(regions, cfg.Regions)
	if err != nil {
		return err
	}

	jobs := crossProduct(oses, regions)
	threadCount := resolveThreadCount(cfg.ThreadCount, cfg.OverdriveMadness)
	if threadCount < 1 {
		threadCount = 1
	}

	if err := c.Status.Write(ctx, statusstore.Running); err != nil {
		return fmt.Errorf("%w: writing running status: %v", ec2err.ErrSink, err)
	}

	workers, initErrors := c.buildWorkers(ctx, threadCount, date, cfg)
	if len(workers) < threadCount {
		log.Warnf("requested %d workers, only %d initialized successfully", threadCount, len(workers))
	}

	csvBefore := c.csvTreeSize(cfg)
	dbBefore := c.dbTableSize(ctx)

	reporter := &metricsReporter{}
	p := pool.New(workers)
	runStarted := time.Now()
	if err := p.Run(ctx, jobs, reporter); err != nil {
		log.WithError(err).Error("pool run returned an unexpected error")
	}
	runSeconds := time.Since(runStarted).Seconds()

	csvBytesDelta := c.csvTreeSize(cfg) - csvBefore
	dbBytesDelta := c.dbTableSize(ctx) - dbBefore

	if err := c.Status.Write(ctx, statusstore.CleaningUp); err != nil {
		return fmt.Errorf("%w: writing cleaning-up status: %v", ec2err.ErrSink, err)
	}

	if cfg.Compress {
		if err := archiver.Archive(cfg.CSVDataDir, "ec2", date); err != nil {
			log.WithError(err).Error("archiving csv tree failed")
			reporter.IncrementErrors(1)
		}
	}

	if c.DB != nil && c.RunNo != nil {
		runNo := c.RunNo()
		m := dbsink.RunMetrics{
			RunNo:         runNo,
			Date:          date,
			ThreadCount:   len(workers),
			OSCount:       len(oses),
			RegionCount:   len(regions),
			InitSeconds:   initSeconds,
			RunSeconds:    runSeconds,
			CSVBytesDelta: csvBytesDelta,
			DBBytesDelta:  dbBytesDelta,
			ErrorCount:    int(initErrors) + int(reporter.errors),
		}
		if err := c.DB.InsertMetrics(ctx, m); err != nil {
			log.WithError(err).Error("persisting run metrics failed")
		}
		if err := c.DB.InsertCommandLine(ctx, runNo, cfg.CommandLineBlob); err != nil {
			log.WithError(err).Error("persisting command line failed")
		}
	}

	log.WithField("duration", time.Since(runStart)).
		WithField("error_count", reporter.errors).
		WithField("stored", reporter.stored).
		WithField("duplicates", reporter.duplicates).
		Info("run complete")
	return nil
}

// resolveCatalogs spawns a single short-lived Page Driver, reads both
// lists, and closes it, per spec §4.6.
func (c *Controller) resolveCatalogs(ctx context.Context) ([]string, []string, error) {
	driver, err := c.NewDriver(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: initializing catalog driver: %v", ec2err.ErrCatalog, err)
	}
	defer driver.Close()

	oses, err := driver.ListOperatingSystems(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: listing operating systems: %v", ec2err.ErrCatalog, err)
	}
	regions, err := driver.ListRegions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: listing regions: %v", ec2err.ErrCatalog, err)
	}
	return oses, regions, nil
}

// buildWorkers launches n Worker initializations in parallel (one Page
// Driver each) and waits for all to complete. A Worker whose Page Driver
// fails to initialize is dropped; the discrepancy is logged and counted
// towards error_count, matching spec §4.5.
func (c *Controller) buildWorkers(ctx context.Context, n int, date string, cfg Config) ([]*worker.Worker, int64) {
	type result struct {
		w   *worker.Worker
		err error
	}
	results := make(chan result, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			driver, err := c.NewDriver(ctx)
			if err != nil {
				results <- result{nil, err}
				return
			}
			w := &worker.Worker{ID: i, Date: date, Driver: driver}
			if cfg.StoreDB {
				w.DB = c.DB
			}
			if cfg.StoreCSV {
				w.CSV = csvsink.New(cfg.CSVDataDir, "ec2")
			}
			results <- result{w, nil}
		}()
	}

	var workers []*worker.Worker
	var failures int64
	for i := 0; i < n; i++ {
		res := <-results
		if res.err != nil {
			failures++
			obslog.Get().WithError(res.err).Warn("worker initialization failed, dropping from pool")
			continue
		}
		workers = append(workers, res.w)
	}
	return workers, failures
}

// pricingTable is the table whose size is sampled before and after a run
// to compute db_bytes_delta, mirroring the Python original's
// get_table_size(db_config) reading of the pricing table specifically.
const pricingTable = "ec2_instance_pricing"

// csvTreeSize returns the current size in bytes of the CSV data directory,
// or 0 when the CSV sink is disabled or the directory does not yet exist.
// Errors are logged, not propagated: a failed size reading degrades the
// byte-delta metric, it must not fail the run.
func (c *Controller) csvTreeSize(cfg Config) int64 {
	if !cfg.StoreCSV {
		return 0
	}
	size, err := dirSize(cfg.CSVDataDir)
	if err != nil {
		obslog.Get().WithError(err).Warn("measuring csv data directory size")
		return 0
	}
	return size
}

// dbTableSize returns the current byte size of the pricing table, or 0
// when the DB sink is disabled.
func (c *Controller) dbTableSize(ctx context.Context) int64 {
	if c.DB == nil {
		return 0
	}
	size, err := c.DB.TableSize(ctx, pricingTable)
	if err != nil {
		obslog.Get().WithError(err).Warn("measuring pricing table size")
		return 0
	}
	return size
}

// dirSize walks root and sums the size of every regular file under it. A
// missing root (e.g. before the first run ever writes to it) is treated
// as size 0, not an error.
func dirSize(root string) (int64, error) {
	var size int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return size, nil
}

func resolveThreadCount(requested int, overdrive bool) int {
	if requested < 1 {
		requested = 1
	}
	if overdrive {
		return requested
	}
	if hw := runtime.NumCPU(); requested > hw {
		obslog.Get().Warnf("clamping thread_count %d to hardware concurrency %d", requested, hw)
		return hw
	}
	return requested
}

// filterCatalog intersects catalog with allowList, preserving catalog's
// order. An empty allowList means "use the full catalog". Any allow-listed
// name absent from catalog is a fail-fast ConfigError.
func filterCatalog(catalog, allowList []string) ([]string, error) {
	if len(allowList) == 0 {
		return catalog, nil
	}
	present := make(map[string]bool, len(catalog))
	for _, c := range catalog {
		present[c] = true
	}
	for _, want := range allowList {
		if !present[want] {
			return nil, fmt.Errorf("%w: %q not in discovered catalog", ec2err.ErrConfig, want)
		}
	}
	filtered := make([]string, 0, len(allowList))
	seen := make(map[string]bool, len(allowList))
	for _, c := range catalog {
		for _, want := range allowList {
			if c == want && !seen[c] {
				filtered = append(filtered, c)
				seen[c] = true
			}
		}
	}
	return filtered, nil
}

func crossProduct(oses, regions []string) []worker.Job {
	jobs := make([]worker.Job, 0, len(oses)*len(regions))
	for _, os := range oses {
		for _, region := range regions {
			jobs = append(jobs, worker.Job{OperatingSystem: os, Region: region})
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].OperatingSystem != jobs[j].OperatingSystem {
			return jobs[i].OperatingSystem < jobs[j].OperatingSystem
		}
		return jobs[i].Region < jobs[j].Region
	})
	return jobs
}
