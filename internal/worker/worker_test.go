package worker_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zeebrow/ec2-price-tracker/internal/pagedriver"
	"github.com/Zeebrow/ec2-price-tracker/internal/record"
	"github.com/Zeebrow/ec2-price-tracker/internal/sinks/csvsink"
	"github.com/Zeebrow/ec2-price-tracker/internal/worker"
)

type fakeReporter struct {
	errors, stored, duplicates int
}

func (r *fakeReporter) IncrementErrors(n int)     { r.errors += n }
func (r *fakeReporter) IncrementStored(n int)     { r.stored += n }
func (r *fakeReporter) IncrementDuplicates(n int) { r.duplicates += n }

func TestRunJobWritesCSV(t *testing.T) {
	dir := t.TempDir()
	driver := &pagedriver.Fake{
		OperatingSystems: []string{"Linux"},
		Regions:          []string{"us-east-1"},
		Table: map[string][]record.RawRow{
			"Linux|us-east-1": {
				{InstanceType: "t3.nano", HourlyRate: "$0.0052", VCPU: "2", Memory: "0.5 GiB", StorageDescription: "EBS Only", NetworkDescription: "Up to 5 Gigabit"},
				{InstanceType: "t3.micro", HourlyRate: "$0.0104", VCPU: "2", Memory: "1 GiB", StorageDescription: "EBS Only", NetworkDescription: "Up to 5 Gigabit"},
			},
		},
	}
	w := &worker.Worker{
		ID:     1,
		Date:   "2026-07-31",
		Driver: driver,
		CSV:    csvsink.New(dir, "ec2"),
	}
	reporter := &fakeReporter{}

	w.Lock()
	ok := w.RunJob(context.Background(), worker.Job{OperatingSystem: "Linux", Region: "us-east-1"}, reporter)
	w.Unlock()

	require.True(t, ok)
	assert.Equal(t, 0, reporter.errors)

	_, err := os.Stat(csvsink.New(dir, "ec2").Path("2026-07-31", "Linux", "us-east-1"))
	require.NoError(t, err)
}

func TestRunJobDriverFailureTearsDownSession(t *testing.T) {
	driver := &pagedriver.Fake{
		OperatingSystems: []string{"Linux"},
		Regions:          []string{"us-east-1"},
		FailDriver:       true,
	}
	w := &worker.Worker{ID: 1, Date: "2026-07-31", Driver: driver}
	reporter := &fakeReporter{}

	w.Lock()
	ok := w.RunJob(context.Background(), worker.Job{OperatingSystem: "Linux", Region: "us-east-1"}, reporter)
	w.Unlock()

	assert.False(t, ok)
	assert.Equal(t, 1, reporter.errors)
	assert.True(t, driver.Closed)
}

func TestRunJobUnknownOS(t *testing.T) {
	driver := &pagedriver.Fake{Regions: []string{"us-east-1"}}
	w := &worker.Worker{ID: 1, Date: "2026-07-31", Driver: driver}
	reporter := &fakeReporter{}

	w.Lock()
	ok := w.RunJob(context.Background(), worker.Job{OperatingSystem: "Windows", Region: "us-east-1"}, reporter)
	w.Unlock()

	assert.False(t, ok)
	assert.Equal(t, 1, reporter.errors)
}
