// Package statusstore implements the Status collaborator: a narrow
// two-operation contract (Read, Write) over the collector's process-wide
// lifecycle string, satisfiable by either a Postgres table or a Redis key.
package statusstore

import "context"

// Status is drawn from the closed set described in spec §3.
type Status string

const (
	Exited     Status = "exited"
	Idle       Status = "idle"
	Starting   Status = "starting"
	Collecting Status = "collecting available regions and operating systems"
	Running    Status = "running"
	CleaningUp Status = "cleaning up"
)

// Store is the narrow contract the Run Controller depends on. Both Read
// and Write must be observable atomically with respect to concurrent
// callers.
type Store interface {
	Read(ctx context.Context) (Status, error)
	Write(ctx context.Context, s Status) error
}
