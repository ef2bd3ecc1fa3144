package jobs

import "github.com/vytor/bunpo/internal/remote"

// SyncQueue provides an abstraction for enqueueing remote sync work.
type SyncQueue interface {
	EnqueueWrite(label string, ops []remote.Op) error
	EnqueueReconcile() error
	// Supersede runs a full-state push so that no write queued before it
	// lands afterwards.
	Supersede(fn func() error) error
}
