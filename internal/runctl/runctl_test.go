package runctl_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zeebrow/ec2-price-tracker/internal/pagedriver"
	"github.com/Zeebrow/ec2-price-tracker/internal/record"
	"github.com/Zeebrow/ec2-price-tracker/internal/runctl"
	"github.com/Zeebrow/ec2-price-tracker/internal/statusstore"
)

func fakeDriverFactory() runctl.NewDriver {
	return func(ctx context.Context) (pagedriver.Driver, error) {
		return &pagedriver.Fake{
			OperatingSystems: []string{"Linux"},
			Regions:          []string{"us-east-1"},
			Table: map[string][]record.RawRow{
				"Linux|us-east-1": {
					{InstanceType: "t3.nano", HourlyRate: "$0.0052", VCPU: "2", Memory: "0.5 GiB", StorageDescription: "EBS Only", NetworkDescription: "Up to 5 Gigabit"},
				},
			},
		}, nil
	}
}

func TestRunEndToEndWithCSVOnly(t *testing.T) {
	dir := t.TempDir()
	status := statusstore.NewMemoryStore()
	c := &runctl.Controller{Status: status, NewDriver: fakeDriverFactory()}

	err := c.Run(context.Background(), runctl.Config{
		ThreadCount: 2,
		StoreCSV:    true,
		CSVDataDir:  dir,
		Date:        "2026-07-31",
	})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "ec2", "2026-07-31", "Linux", "us-east-1.csv"))
	require.NoError(t, err)

	finalStatus, err := status.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, statusstore.Idle, finalStatus)
}

func TestRunRefusesConcurrentStart(t *testing.T) {
	status := statusstore.NewMemoryStore()
	require.NoError(t, status.Write(context.Background(), statusstore.Running))

	c := &runctl.Controller{Status: status, NewDriver: fakeDriverFactory()}
	err := c.Run(context.Background(), runctl.Config{ThreadCount: 1, Date: "2026-07-31"})
	require.Error(t, err)
}

func TestRunRejectsUnknownAllowListedRegion(t *testing.T) {
	status := statusstore.NewMemoryStore()
	c := &runctl.Controller{Status: status, NewDriver: fakeDriverFactory()}

	err := c.Run(context.Background(), runctl.Config{
		ThreadCount: 1,
		Date:        "2026-07-31",
		Regions:     []string{"eu-west-9"},
	})
	require.Error(t, err)

	finalStatus, err := status.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, statusstore.Idle, finalStatus)
}
