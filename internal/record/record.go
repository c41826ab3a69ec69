// Package record defines the Record value type, its normalization from raw
// scraped table cells, and primary-key derivation.
package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
)

// Record is one pricing row for a single (date, region, operating_system,
// instance_type) tuple.
type Record struct {
	Date               string // ISO-8601 calendar day
	Region             string
	OperatingSystem    string
	InstanceType       string
	CostPerHour        decimal.Decimal
	CPUCount           int
	RAMGiB             float64
	StorageDescription string
	NetworkDescription string
}

// Fields returns the canonical CSV column order shared by every sink.
func Fields() []string {
	return []string{
		"date",
		"instance_type",
		"operating_system",
		"region",
		"cost_per_hour",
		"cpu_count",
		"ram_gib",
		"storage_description",
		"network_description",
	}
}

// Row renders r in the same column order as Fields.
func (r Record) Row() []string {
	return []string{
		r.Date,
		r.InstanceType,
		r.OperatingSystem,
		r.Region,
		r.CostPerHour.String(),
		strconv.Itoa(r.CPUCount),
		strconv.FormatFloat(r.RAMGiB, 'f', -1, 64),
		r.StorageDescription,
		r.NetworkDescription,
	}
}

// PrimaryKey returns the natural key used for idempotent storage:
// date-region-operating_system-instance_type. No case folding is applied.
func (r Record) PrimaryKey() string {
	return strings.Join([]string{r.Date, r.Region, r.OperatingSystem, r.InstanceType}, "-")
}

// RawRow is the six-cell tuple yielded by a Page Driver for one table row,
// in the order: instance type, on-demand hourly rate, vCPU count, memory,
// storage description, network description.
type RawRow struct {
	InstanceType       string
	HourlyRate         string
	VCPU               string
	Memory             string
	StorageDescription string
	NetworkDescription string
}

// Normalize turns a raw scraped row plus its filter context into a Record.
// It strips the currency sigil from the hourly rate, parses the vCPU count
// as an integer, and splits the memory string on whitespace to take its
// leading numeric token as the RAM size in GiB. Any numeric parse failure
// is reported as ec2err.ErrNormalization.
func Normalize(date, region, operatingSystem string, raw RawRow) (Record, error) {
	cost, err := parseCost(raw.HourlyRate)
	if err != nil {
		return Record{}, fmt.Errorf("%w: cost_per_hour %q: %v", ec2err.ErrNormalization, raw.HourlyRate, err)
	}
	cpu, err := strconv.Atoi(strings.TrimSpace(raw.VCPU))
	if err != nil {
		return Record{}, fmt.Errorf("%w: cpu_count %q: %v", ec2err.ErrNormalization, raw.VCPU, err)
	}
	ram, err := parseRAM(raw.Memory)
	if err != nil {
		return Record{}, fmt.Errorf("%w: ram_gib %q: %v", ec2err.ErrNormalization, raw.Memory, err)
	}

	return Record{
		Date:               date,
		Region:             region,
		OperatingSystem:    operatingSystem,
		InstanceType:       raw.InstanceType,
		CostPerHour:        cost,
		CPUCount:           cpu,
		RAMGiB:             ram,
		StorageDescription: raw.StorageDescription,
		NetworkDescription: raw.NetworkDescription,
	}, nil
}

func parseCost(s string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "$")
	trimmed = strings.TrimPrefix(trimmed, "USD")
	trimmed = strings.TrimSpace(trimmed)
	return decimal.NewFromString(trimmed)
}

func parseRAM(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, fmt.Errorf("empty memory field")
	}
	return strconv.ParseFloat(fields[0], 64)
}
