package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateLedgerEntry   OutboxAggregateType = "ledger_entry"
	AggregatePendingPayout OutboxAggregateType = "pending_payout"
	AggregateCorrection    OutboxAggregateType = "correction"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateLedgerEntry,
	AggregatePendingPayout,
	AggregateCorrection,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventLedgerEntryRecorded OutboxEventType = "ledger_entry_recorded"
	EventPayoutQueued        OutboxEventType = "payout_queued"
	EventPayoutCompleted     OutboxEventType = "payout_completed"
	EventPayoutManualReview  OutboxEventType = "payout_manual_review"
	EventCorrectionApplied   OutboxEventType = "correction_applied"
)

var validOutboxEventTypes = []OutboxEventType{
	EventLedgerEntryRecorded,
	EventPayoutQueued,
	EventPayoutCompleted,
	EventPayoutManualReview,
	EventCorrectionApplied,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxDLQErrorReason maps to the outbox_dlq_error_reason_enum enum in Postgres.
type OutboxDLQErrorReason string

const (
	DLQReasonMaxAttempts    OutboxDLQErrorReason = "max_attempts_exceeded"
	DLQReasonMalformed      OutboxDLQErrorReason = "malformed_payload"
	DLQReasonUnknownType    OutboxDLQErrorReason = "unknown_event_type"
	DLQReasonPublishFailure OutboxDLQErrorReason = "publish_failure"
)

var validDLQReasons = []OutboxDLQErrorReason{
	DLQReasonMaxAttempts,
	DLQReasonMalformed,
	DLQReasonUnknownType,
	DLQReasonPublishFailure,
}

// IsValid reports whether the value matches the canonical DLQ reason enum.
func (r OutboxDLQErrorReason) IsValid() bool {
	for _, candidate := range validDLQReasons {
		if candidate == r {
			return true
		}
	}
	return false
}
