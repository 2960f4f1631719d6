package rails

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/transfer"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
	pkgstripe "github.com/inkwellmarket/inkwell-backend/pkg/stripe"
)

// StripeTransferClient exposes the subset of Stripe operations required by the
// Connect rail so it can be tested without the network.
type StripeTransferClient interface {
	Create(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error)
	List(ctx context.Context, params *stripe.TransferListParams) ([]*stripe.Transfer, error)
}

type stripeTransferWrapper struct{}

// NewStripeTransferClient wraps the provided Stripe client so the rail can be tested.
func NewStripeTransferClient(api *pkgstripe.Client) StripeTransferClient {
	if api == nil {
		return nil
	}
	return &stripeTransferWrapper{}
}

func (w *stripeTransferWrapper) Create(ctx context.Context, params *stripe.TransferParams) (*stripe.Transfer, error) {
	if params != nil {
		params.Context = ctx
	}
	return transfer.New(params)
}

func (w *stripeTransferWrapper) List(ctx context.Context, params *stripe.TransferListParams) ([]*stripe.Transfer, error) {
	if params != nil {
		params.Context = ctx
	}
	iter := transfer.List(params)
	var out []*stripe.Transfer
	for iter.Next() {
		out = append(out, iter.Transfer())
	}
	return out, iter.Err()
}

// StripeConnectRail moves seller earnings through Stripe Connect transfers.
// The payout idempotency key doubles as the transfer group so ambiguous
// submissions can be requeried by group.
type StripeConnectRail struct {
	client StripeTransferClient
}

func NewStripeConnectRail(client StripeTransferClient) (*StripeConnectRail, error) {
	if client == nil {
		return nil, errors.New("stripe transfer client is required")
	}
	return &StripeConnectRail{client: client}, nil
}

func (r *StripeConnectRail) Kind() enums.RailKind {
	return enums.RailKindStripeConnect
}

func (r *StripeConnectRail) SubmitPayout(ctx context.Context, params SubmitParams) (*SubmitResult, error) {
	if strings.TrimSpace(params.AccountRef) == "" {
		return nil, Permanent("stripe destination account is required", nil)
	}
	if params.AmountCents <= 0 {
		return nil, Permanent(fmt.Sprintf("invalid transfer amount %d", params.AmountCents), nil)
	}

	transferParams := &stripe.TransferParams{
		Amount:        stripe.Int64(params.AmountCents),
		Currency:      stripe.String(strings.ToLower(string(params.Currency))),
		Destination:   stripe.String(params.AccountRef),
		TransferGroup: stripe.String(params.IdempotencyKey),
	}
	transferParams.SetIdempotencyKey(params.IdempotencyKey)

	created, err := r.client.Create(ctx, transferParams)
	if err != nil {
		return nil, classifyStripeError(err)
	}

	return &SubmitResult{
		BatchID:     created.ID,
		RawStatus:   "transfer_created",
		ConfirmedAt: time.Unix(created.Created, 0).UTC(),
	}, nil
}

func (r *StripeConnectRail) QueryStatus(ctx context.Context, batchID string, idempotencyKey string) (*StatusResult, error) {
	listParams := &stripe.TransferListParams{
		TransferGroup: stripe.String(idempotencyKey),
	}
	transfers, err := r.client.List(ctx, listParams)
	if err != nil {
		return nil, classifyStripeError(err)
	}

	for _, tr := range transfers {
		if batchID != "" && tr.ID != batchID {
			continue
		}
		status := BatchStatusCompleted
		raw := "transfer_created"
		if tr.Reversed {
			status = BatchStatusFailed
			raw = "transfer_reversed"
		}
		return &StatusResult{
			Status:      status,
			BatchID:     tr.ID,
			RawStatus:   raw,
			ConfirmedAt: time.Unix(tr.Created, 0).UTC(),
		}, nil
	}

	return &StatusResult{Status: BatchStatusNotFound}, nil
}

func classifyStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		switch {
		case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
			return Transient("stripe rate limited", err)
		case stripeErr.HTTPStatusCode >= http.StatusInternalServerError:
			return Transient("stripe unavailable", err)
		default:
			return Permanent(fmt.Sprintf("stripe rejected transfer (%s)", stripeErr.Code), err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Transient("stripe transfer timed out", err)
	}
	return Ambiguous("stripe request failed", err)
}
