// Package pagedriver hides every DOM quirk of the remote pricing page
// behind a small, typed interface. Nothing outside this package knows
// about iframes, dropdowns, or pagination controls.
package pagedriver

import (
	"context"

	"github.com/Zeebrow/ec2-price-tracker/internal/record"
)

// Driver is the public surface a Worker drives. Implementations own one
// browser session for their entire lifetime.
type Driver interface {
	// ListOperatingSystems returns the catalog of OS labels. Pure
	// observation; does not change filter state.
	ListOperatingSystems(ctx context.Context) ([]string, error)

	// ListRegions returns the catalog of region identifiers matching the
	// region regex. Pure observation.
	ListRegions(ctx context.Context) ([]string, error)

	// SelectOperatingSystem sets the OS filter. Fails with
	// ec2err.ErrCatalog if name is not in the catalog, and with
	// ec2err.ErrDriver if the page itself cannot be driven.
	SelectOperatingSystem(ctx context.Context, name string) error

	// SelectRegion sets the region filter. Fails the same way for an
	// unknown region.
	SelectRegion(ctx context.Context, name string) error

	// IterateRows yields every row across every page of the currently
	// filtered table, resetting to page 1 first. Single-pass: a second
	// call after exhaustion re-reads the table from page 1 again.
	IterateRows(ctx context.Context) ([]record.RawRow, error)

	// Close tears down the underlying browser session. Idempotent.
	Close() error
}

// TableState models the state machine described in spec §4.3.
type TableState int

const (
	StateUnfiltered TableState = iota
	StateFiltered
	StateIterating
)
