package cron

import (
	"context"
	"fmt"
	"time"
)

// requerier is the slice of the payout dispatcher the job needs.
type requerier interface {
	Requery(ctx context.Context, now time.Time, limit int) (int, error)
}

// RequeryJob sweeps payouts stuck in dispatching and settles them from rail
// ground truth.
type RequeryJob struct {
	requerier  requerier
	batchLimit int
}

// NewRequeryJob builds the job.
func NewRequeryJob(req requerier, batchLimit int) (*RequeryJob, error) {
	if req == nil {
		return nil, fmt.Errorf("requerier required")
	}
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &RequeryJob{requerier: req, batchLimit: batchLimit}, nil
}

// Name identifies the job in logs and metrics.
func (j *RequeryJob) Name() string { return "payout_requery" }

// Run executes one requery sweep.
func (j *RequeryJob) Run(ctx context.Context) error {
	if _, err := j.requerier.Requery(ctx, time.Now().UTC(), j.batchLimit); err != nil {
		return fmt.Errorf("requery: %w", err)
	}
	return nil
}
