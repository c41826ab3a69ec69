package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
)

func TestNormalize(t *testing.T) {
	rec, err := Normalize("2026-07-31", "us-east-1", "Linux", RawRow{
		InstanceType:       "t3.nano",
		HourlyRate:         "$0.0052",
		VCPU:               "2",
		Memory:             "0.5 GiB",
		StorageDescription: "EBS Only",
		NetworkDescription: "Up to 5 Gigabit",
	})
	require.NoError(t, err)
	assert.Equal(t, "t3.nano", rec.InstanceType)
	assert.Equal(t, "0.0052", rec.CostPerHour.String())
	assert.Equal(t, 2, rec.CPUCount)
	assert.Equal(t, 0.5, rec.RAMGiB)
	assert.Equal(t, "2026-07-31-us-east-1-Linux-t3.nano", rec.PrimaryKey())
}

func TestNormalizeBadCost(t *testing.T) {
	_, err := Normalize("2026-07-31", "us-east-1", "Linux", RawRow{
		InstanceType: "t3.nano",
		HourlyRate:   "not-a-number",
		VCPU:         "2",
		Memory:       "0.5 GiB",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ec2err.ErrNormalization)
}

func TestNormalizeBadCPU(t *testing.T) {
	_, err := Normalize("2026-07-31", "us-east-1", "Linux", RawRow{
		InstanceType: "t3.nano",
		HourlyRate:   "$0.0052",
		VCPU:         "two",
		Memory:       "0.5 GiB",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ec2err.ErrNormalization)
}

func TestFieldsMatchRowOrder(t *testing.T) {
	rec := Record{
		Date:               "2026-07-31",
		InstanceType:       "t3.nano",
		OperatingSystem:    "Linux",
		Region:             "us-east-1",
		StorageDescription: "EBS Only",
		NetworkDescription: "Up to 5 Gigabit",
	}
	require.Len(t, Fields(), len(rec.Row()))

	want := map[string]string{
		"date":                "2026-07-31",
		"instance_type":       "t3.nano",
		"operating_system":    "Linux",
		"region":              "us-east-1",
		"cost_per_hour":       "0",
		"cpu_count":           "0",
		"ram_gib":             "0",
		"storage_description": "EBS Only",
		"network_description": "Up to 5 Gigabit",
	}
	row := rec.Row()
	for i, name := range Fields() {
		assert.Equal(t, want[name], row[i], name)
	}
}
