package worker

import (
	"context"

	"github.com/vytor/bunpo/internal/logger"
	"github.com/vytor/bunpo/internal/remote"
)

// RemoteWriteJob commits one batch of document writes.
type RemoteWriteJob struct {
	Store    remote.Store
	Label    string
	Ops      []remote.Op
	Reporter FailureReporter
}

func (j *RemoteWriteJob) Name() string { return "remote_write" }

func (j *RemoteWriteJob) Run(ctx context.Context) error {
	log := logger.FromContext(ctx).WithFields(map[string]any{
		"label": j.Label,
		"ops":   len(j.Ops),
	})
	if err := j.Store.Commit(ctx, j.Ops); err != nil {
		log.Warn("remote write failed: %v", err)
		if j.Reporter != nil {
			j.Reporter.ReportFailure(ctx, j.Label, err)
		}
		return err
	}
	log.Debug("remote write committed")
	return nil
}

// ReconcileJob pushes the whole local state to the remote store.
type ReconcileJob struct {
	Reconciler Reconciler
	Reporter   FailureReporter
}

func (j *ReconcileJob) Name() string { return "reconcile" }

func (j *ReconcileJob) Run(ctx context.Context) error {
	if err := j.Reconciler.Reconcile(ctx); err != nil {
		if j.Reporter != nil {
			j.Reporter.ReportFailure(ctx, "reconcile", err)
		}
		return err
	}
	return nil
}
