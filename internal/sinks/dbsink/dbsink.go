// Package dbsink implements the DB sink: idempotent insertion of pricing
// records into the ec2_instance_pricing table, plus the run-level
// metric_data and command_line tables.
package dbsink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
	"github.com/Zeebrow/ec2-price-tracker/internal/record"
)

const insertRecordSQL = `
INSERT INTO ec2_instance_pricing
	(primary_key, date, region, operating_system, instance_type, cost_per_hour, cpu_count, ram_gib, storage_description, network_description)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// Sink is the DB sink. It is safe for concurrent use across Workers so
// long as each Worker uses its own *pgxpool.Pool connection acquisition,
// which pgxpool already gives for free from a shared pool.
type Sink struct {
	db *pgxpool.Pool
}

// New builds a Sink over an already-connected pool.
func New(db *pgxpool.Pool) *Sink {
	return &Sink{db: db}
}

// InsertOutcome reports what happened to one record's insert attempt.
type InsertOutcome int

const (
	Stored InsertOutcome = iota
	Duplicate
	Failed
)

// Insert attempts to store rec. A primary-key collision reports Duplicate
// together with an error wrapping ec2err.ErrDuplicateKey, which callers
// treat as a soft failure; any other failure reports Failed with a wrapped
// ec2err.ErrSink.
func (s *Sink) Insert(ctx context.Context, rec record.Record) (InsertOutcome, error) {
	_, err := execWithRetry(ctx, s.db, insertRecordSQL,
		rec.PrimaryKey(), rec.Date, rec.Region, rec.OperatingSystem, rec.InstanceType,
		rec.CostPerHour.String(), rec.CPUCount, rec.RAMGiB, rec.StorageDescription, rec.NetworkDescription,
	)
	if err == nil {
		return Stored, nil
	}
	if isUniqueViolation(err) {
		return Duplicate, fmt.Errorf("%w: %s", ec2err.ErrDuplicateKey, rec.PrimaryKey())
	}
	return Failed, fmt.Errorf("%w: inserting %s: %v", ec2err.ErrSink, rec.PrimaryKey(), err)
}

const insertMetricSQL = `
INSERT INTO metric_data
	(run_no, date, thread_count, os_count, region_count, init_seconds, run_seconds, csv_bytes_delta, db_bytes_delta, error_count)
VALUES
	($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// RunMetrics mirrors the Run Metrics record from spec §3.
type RunMetrics struct {
	RunNo         int64
	Date          string
	ThreadCount   int
	OSCount       int
	RegionCount   int
	InitSeconds   float64
	RunSeconds    float64
	CSVBytesDelta int64
	DBBytesDelta  int64
	ErrorCount    int
	CommandLine   string // opaque blob, persisted separately into command_line
}

// InsertMetrics appends one Run Metrics row.
func (s *Sink) InsertMetrics(ctx context.Context, m RunMetrics) error {
	_, err := execWithRetry(ctx, s.db, insertMetricSQL,
		m.RunNo, m.Date, m.ThreadCount, m.OSCount, m.RegionCount,
		m.InitSeconds, m.RunSeconds, m.CSVBytesDelta, m.DBBytesDelta, m.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("%w: inserting run metrics for run %d: %v", ec2err.ErrSink, m.RunNo, err)
	}
	return nil
}

const insertCommandLineSQL = `
INSERT INTO command_line (run_no, command_line) VALUES ($1, $2)
`

// InsertCommandLine persists the opaque resolved configuration blob for a
// run, keyed by the same run number as its metric_data row.
func (s *Sink) InsertCommandLine(ctx context.Context, runNo int64, commandLine string) error {
	_, err := execWithRetry(ctx, s.db, insertCommandLineSQL, runNo, commandLine)
	if err != nil {
		return fmt.Errorf("%w: inserting command_line for run %d: %v", ec2err.ErrSink, runNo, err)
	}
	return nil
}

// TableSize returns the byte size of the named table via
// pg_total_relation_size, for the --check-size option.
func (s *Sink) TableSize(ctx context.Context, table string) (int64, error) {
	var size int64
	err := s.db.QueryRow(ctx, `SELECT pg_total_relation_size($1)`, "public."+table).Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("%w: sizing table %s: %v", ec2err.ErrSink, table, err)
	}
	return size, nil
}
