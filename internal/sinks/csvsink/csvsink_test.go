package csvsink_test

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Zeebrow/ec2-price-tracker/internal/record"
	"github.com/Zeebrow/ec2-price-tracker/internal/sinks/csvsink"
)

func sampleRecords() []record.Record {
	return []record.Record{
		{
			Date: "2026-07-31", Region: "us-east-1", OperatingSystem: "Linux",
			InstanceType: "t3.nano", CostPerHour: decimal.RequireFromString("0.0052"),
			CPUCount: 2, RAMGiB: 0.5, StorageDescription: "EBS Only", NetworkDescription: "Up to 5 Gigabit",
		},
		{
			Date: "2026-07-31", Region: "us-east-1", OperatingSystem: "Linux",
			InstanceType: "t3.micro", CostPerHour: decimal.RequireFromString("0.0104"),
			CPUCount: 2, RAMGiB: 1, StorageDescription: "EBS Only", NetworkDescription: "Up to 5 Gigabit",
		},
	}
}

func TestWriteThenRead(t *testing.T) {
	dir := t.TempDir()
	sink := csvsink.New(dir, "ec2")

	err := sink.Write("2026-07-31", "Linux", "us-east-1", sampleRecords())
	require.NoError(t, err)

	path := sink.Path("2026-07-31", "Linux", "us-east-1")
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3) // header + 2 records
	require.Equal(t, record.Fields(), rows[0])
	require.Equal(t, "t3.nano", rows[1][1])
}

func TestWriteRemovesStaleFile(t *testing.T) {
	dir := t.TempDir()
	sink := csvsink.New(dir, "ec2")

	require.NoError(t, sink.Write("2026-07-31", "Linux", "us-east-1", sampleRecords()))
	require.NoError(t, sink.Write("2026-07-31", "Linux", "us-east-1", sampleRecords()[:1]))

	f, err := os.Open(sink.Path("2026-07-31", "Linux", "us-east-1"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2) // header + 1 record, not stacked with the prior write
}
