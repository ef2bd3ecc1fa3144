package worker

import "context"

// Reconciler pushes the full local state to the remote store.
// This avoids import cycles by not importing the services package.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// FailureReporter records background failures where the user can see them.
type FailureReporter interface {
	ReportFailure(ctx context.Context, source string, err error)
}
