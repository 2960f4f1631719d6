package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// aggregator is the slice of the payout aggregator the job needs.
type aggregator interface {
	AggregateAll(ctx context.Context, asOf time.Time) (int, error)
}

// dispatcher is the slice of the payout dispatcher the job needs.
type dispatcher interface {
	DispatchDue(ctx context.Context, now time.Time, limit int) (int, error)
}

// AggregateDispatchJob runs the aggregate-then-dispatch pass: group every
// seller's payable entries into units, then submit whatever is due.
type AggregateDispatchJob struct {
	aggregator aggregator
	dispatcher dispatcher
	batchLimit int
}

// NewAggregateDispatchJob builds the job.
func NewAggregateDispatchJob(agg aggregator, disp dispatcher, batchLimit int) (*AggregateDispatchJob, error) {
	if agg == nil {
		return nil, fmt.Errorf("aggregator required")
	}
	if disp == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	if batchLimit <= 0 {
		batchLimit = 100
	}
	return &AggregateDispatchJob{aggregator: agg, dispatcher: disp, batchLimit: batchLimit}, nil
}

// Name identifies the job in logs and metrics.
func (j *AggregateDispatchJob) Name() string { return "payout_aggregate_dispatch" }

// Run executes one aggregate-and-dispatch pass. An aggregation failure does
// not stop the dispatch sweep, payouts queued on earlier passes are still due.
func (j *AggregateDispatchJob) Run(ctx context.Context) error {
	now := time.Now().UTC()
	var errs []error
	if _, err := j.aggregator.AggregateAll(ctx, now); err != nil {
		errs = append(errs, fmt.Errorf("aggregate: %w", err))
	}
	if _, err := j.dispatcher.DispatchDue(ctx, now, j.batchLimit); err != nil {
		errs = append(errs, fmt.Errorf("dispatch: %w", err))
	}
	return multierr.Combine(errs...)
}
