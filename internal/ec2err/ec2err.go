// Package ec2err defines the collector's error taxonomy as sentinel kinds,
// not distinct Go types, so call sites can classify any wrapped error with
// errors.Is regardless of which layer produced it.
package ec2err

import "errors"

var (
	// ErrConfig marks a problem with run configuration (bad flags, missing
	// environment variables, contradictory options).
	ErrConfig = errors.New("configuration error")

	// ErrCatalog marks a failure discovering the set of operating systems
	// or regions available on the pricing page.
	ErrCatalog = errors.New("catalog error")

	// ErrDriver marks a failure driving the browser page itself: a
	// selector that never appeared, a navigation timeout, a stale
	// element.
	ErrDriver = errors.New("driver error")

	// ErrNormalization marks a scraped row that could not be parsed into
	// a valid Record.
	ErrNormalization = errors.New("normalization error")

	// ErrDuplicateKey marks an insert that collided with an existing
	// primary key. Callers treat this as a soft failure, not a run
	// abort.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrSink marks a failure persisting records or run metadata to a
	// sink (database or filesystem) that is not a duplicate-key
	// collision.
	ErrSink = errors.New("sink error")
)

// Kind reports which taxonomy member err (or one of its wrapped causes)
// belongs to, or nil if err does not match any of them.
func Kind(err error) error {
	for _, kind := range []error{ErrConfig, ErrCatalog, ErrDriver, ErrNormalization, ErrDuplicateKey, ErrSink} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
