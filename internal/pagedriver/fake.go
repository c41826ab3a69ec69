package pagedriver

import (
	"context"
	"fmt"

	"github.com/Zeebrow/ec2-price-tracker/internal/ec2err"
	"github.com/Zeebrow/ec2-price-tracker/internal/record"
)

// Fake is an in-memory Driver used by tests that do not want to drive a
// real browser. It records the filter selections it receives and replays
// canned rows from Table.
type Fake struct {
	OperatingSystems []string
	Regions          []string
	Table            map[string][]record.RawRow // keyed by "os|region"

	SelectedOS     string
	SelectedRegion string
	Closed         bool
	FailDriver     bool // if true, IterateRows returns ec2err.ErrDriver
}

var _ Driver = (*Fake)(nil)

func (f *Fake) ListOperatingSystems(ctx context.Context) ([]string, error) {
	return f.OperatingSystems, nil
}

func (f *Fake) ListRegions(ctx context.Context) ([]string, error) {
	return f.Regions, nil
}

func (f *Fake) SelectOperatingSystem(ctx context.Context, name string) error {
	for _, os := range f.OperatingSystems {
		if os == name {
			f.SelectedOS = name
			return nil
		}
	}
	return fmt.Errorf("%w: unknown operating system %q", ec2err.ErrCatalog, name)
}

func (f *Fake) SelectRegion(ctx context.Context, name string) error {
	for _, r := range f.Regions {
		if r == name {
			f.SelectedRegion = name
			return nil
		}
	}
	return fmt.Errorf("%w: unknown region %q", ec2err.ErrCatalog, name)
}

func (f *Fake) IterateRows(ctx context.Context) ([]record.RawRow, error) {
	if f.FailDriver {
		return nil, fmt.Errorf("%w: simulated driver failure", ec2err.ErrDriver)
	}
	return f.Table[f.SelectedOS+"|"+f.SelectedRegion], nil
}

func (f *Fake) Close() error {
	f.Closed = true
	return nil
}
