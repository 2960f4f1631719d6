package rails

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/inkwellmarket/inkwell-backend/pkg/enums"
)

const (
	paypalDefaultBaseURL       = "https://api-m.sandbox.paypal.com"
	paypalBodyReadLimit  int64 = 1024
	paypalTokenSlack           = 30 * time.Second
)

var (
	errPayPalClientIDRequired = errors.New("paypal client id is required")
	errPayPalSecretRequired   = errors.New("paypal client secret is required")
)

// PayPalPayoutsRail moves seller earnings through the PayPal Payouts API.
// The payout idempotency key is used as the sender_batch_id so a resubmitted
// batch is rejected by PayPal instead of paying twice.
type PayPalPayoutsRail struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
	secret     string

	mtx         sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// PayPalOption configures optional client behavior.
type PayPalOption func(*PayPalPayoutsRail)

// WithPayPalHTTPClient overrides the default HTTP client.
func WithPayPalHTTPClient(client *http.Client) PayPalOption {
	return func(r *PayPalPayoutsRail) {
		if client != nil {
			r.httpClient = client
		}
	}
}

// WithPayPalBaseURL overrides the configured API base URL.
func WithPayPalBaseURL(baseURL string) PayPalOption {
	return func(r *PayPalPayoutsRail) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			r.baseURL = trimmed
		}
	}
}

// NewPayPalPayoutsRail builds the PayPal rail given API credentials.
func NewPayPalPayoutsRail(clientID, secret string, opts ...PayPalOption) (*PayPalPayoutsRail, error) {
	trimmedID := strings.TrimSpace(clientID)
	if trimmedID == "" {
		return nil, errPayPalClientIDRequired
	}
	trimmedSecret := strings.TrimSpace(secret)
	if trimmedSecret == "" {
		return nil, errPayPalSecretRequired
	}

	rail := &PayPalPayoutsRail{
		clientID:   trimmedID,
		secret:     trimmedSecret,
		baseURL:    paypalDefaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(rail)
		}
	}
	return rail, nil
}

func (r *PayPalPayoutsRail) Kind() enums.RailKind {
	return enums.RailKindPayPalPayouts
}

func (r *PayPalPayoutsRail) SubmitPayout(ctx context.Context, params SubmitParams) (*SubmitResult, error) {
	if strings.TrimSpace(params.AccountRef) == "" {
		return nil, Permanent("paypal receiver is required", nil)
	}
	if params.AmountCents <= 0 {
		return nil, Permanent(fmt.Sprintf("invalid payout amount %d", params.AmountCents), nil)
	}

	body := map[string]any{
		"sender_batch_header": map[string]any{
			"sender_batch_id": params.IdempotencyKey,
			"email_subject":   "You have a payout from Inkwell",
		},
		"items": []map[string]any{
			{
				"recipient_type": "EMAIL",
				"receiver":       params.AccountRef,
				"sender_item_id": params.PayoutID.String(),
				"amount": map[string]string{
					"value":    centsToDecimalString(params.AmountCents),
					"currency": string(params.Currency),
				},
			},
		},
	}

	var resp struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
			BatchStatus   string `json:"batch_status"`
		} `json:"batch_header"`
	}
	if err := r.doJSON(ctx, http.MethodPost, "/v1/payments/payouts", body, &resp); err != nil {
		return nil, err
	}

	return &SubmitResult{
		BatchID:     resp.BatchHeader.PayoutBatchID,
		RawStatus:   resp.BatchHeader.BatchStatus,
		ConfirmedAt: time.Now().UTC(),
	}, nil
}

// QueryStatus looks up a payout batch by its PayPal batch id. PayPal has no
// lookup by sender_batch_id, so without the batch id recorded at submit time
// the rail cannot answer and reports unknown. It never fabricates not_found;
// that would license a resubmit for a batch that may have paid.
func (r *PayPalPayoutsRail) QueryStatus(ctx context.Context, batchID string, idempotencyKey string) (*StatusResult, error) {
	if strings.TrimSpace(batchID) == "" {
		return &StatusResult{Status: BatchStatusUnknown}, nil
	}

	var resp struct {
		BatchHeader struct {
			PayoutBatchID string `json:"payout_batch_id"`
			BatchStatus   string `json:"batch_status"`
			TimeCompleted string `json:"time_completed"`
		} `json:"batch_header"`
	}
	path := "/v1/payments/payouts/" + url.PathEscape(batchID)
	if err := r.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		var railErr *Error
		if errors.As(err, &railErr) && railErr.RailClass == ClassPermanent && strings.Contains(railErr.Error(), "status 404") {
			return &StatusResult{Status: BatchStatusNotFound}, nil
		}
		return nil, err
	}

	confirmedAt := time.Now().UTC()
	if resp.BatchHeader.TimeCompleted != "" {
		if parsed, err := time.Parse(time.RFC3339, resp.BatchHeader.TimeCompleted); err == nil {
			confirmedAt = parsed.UTC()
		}
	}

	return &StatusResult{
		Status:      normalizePayPalStatus(resp.BatchHeader.BatchStatus),
		BatchID:     resp.BatchHeader.PayoutBatchID,
		RawStatus:   resp.BatchHeader.BatchStatus,
		ConfirmedAt: confirmedAt,
	}, nil
}

func (r *PayPalPayoutsRail) doJSON(ctx context.Context, method, path string, body any, out any) error {
	token, err := r.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return Permanent("marshal paypal request", err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := strings.TrimRight(r.baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return Permanent("build paypal request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Transient("paypal request timed out", err)
		}
		if method == http.MethodGet {
			return Transient("execute paypal request", err)
		}
		return Ambiguous("execute paypal request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, paypalBodyReadLimit))
		failure := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return Transient("paypal rate limited", failure)
		case resp.StatusCode >= http.StatusInternalServerError:
			return Transient("paypal unavailable", failure)
		default:
			return Permanent("paypal rejected request", failure)
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			if method == http.MethodGet {
				return Transient("decode paypal response", err)
			}
			return Ambiguous("decode paypal response", err)
		}
	}
	return nil
}

func (r *PayPalPayoutsRail) token(ctx context.Context) (string, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.accessToken != "" && time.Now().Before(r.tokenExpiry.Add(-paypalTokenSlack)) {
		return r.accessToken, nil
	}

	endpoint := strings.TrimRight(r.baseURL, "/") + "/v1/oauth2/token"
	form := url.Values{"grant_type": []string{"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", Permanent("build paypal token request", err)
	}
	req.SetBasicAuth(r.clientID, r.secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", Transient("execute paypal token request", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, paypalBodyReadLimit))
		failure := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
		if resp.StatusCode >= http.StatusInternalServerError {
			return "", Transient("paypal token unavailable", failure)
		}
		return "", Permanent("paypal credentials rejected", failure)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", Transient("decode paypal token response", err)
	}
	if tokenResp.AccessToken == "" {
		return "", Permanent("paypal token response missing access_token", nil)
	}

	r.accessToken = tokenResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	return r.accessToken, nil
}

func normalizePayPalStatus(raw string) BatchStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESS":
		return BatchStatusCompleted
	case "DENIED", "CANCELED":
		return BatchStatusFailed
	case "PENDING", "PROCESSING", "NEW":
		return BatchStatusPending
	default:
		return BatchStatusPending
	}
}

func centsToDecimalString(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
