package client

import (
	"context"
	"net/url"
	"slotkeeper/pkg/model"
)

// Headers understood by the service. They mirror pkg/middleware.
const (
	ProviderIDHeader       = "X-Provider-ID"
	CallerIDHeader         = "X-Caller-ID"
	IdempotencyKeyHeader   = "Idempotency-Key"
	PaymentSignatureHeader = "X-Payment-Signature"
)

type SlotClient struct {
	httpClient *HttpClient
}

func NewSlotClient(baseURL string) *SlotClient {
	return &SlotClient{
		httpClient: NewHttpClient(baseURL),
	}
}

type SweepResult struct {
	Scanned  int `json:"scanned"`
	Released int `json:"released"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// CreateSlots publishes a slot, with optional recurrence, for providerID.
// An empty idempotencyKey sends none.
func (c *SlotClient) CreateSlots(ctx context.Context, providerID, idempotencyKey string, req *model.CreateSlotRequest) ([]*model.CreationResult, error) {
	headers := map[string]string{ProviderIDHeader: providerID}
	if idempotencyKey != "" {
		headers[IdempotencyKeyHeader] = idempotencyKey
	}
	resp, err := c.httpClient.POST(ctx, "/api/v1/providers/slots", req, headers)
	if err != nil {
		return nil, err
	}
	var results []*model.CreationResult
	return results, decode(resp, &results)
}

func (c *SlotClient) GetSlot(ctx context.Context, id string) (*model.Slot, error) {
	resp, err := c.httpClient.GET(ctx, "/api/v1/slots/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var slot model.Slot
	if err := decode(resp, &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

func (c *SlotClient) RemoveSlot(ctx context.Context, providerID, id string) error {
	resp, err := c.httpClient.DELETE(ctx, "/api/v1/slots/"+url.PathEscape(id), map[string]string{ProviderIDHeader: providerID})
	if err != nil {
		return err
	}
	return decode(resp, nil)
}

func (c *SlotClient) ListAvailable(ctx context.Context, providerID, from, to string) ([]*model.Slot, error) {
	return c.listRange(ctx, providerID, "/available", from, to, nil)
}

// QuerySlots and History are provider views; the caller must be providerID.
func (c *SlotClient) QuerySlots(ctx context.Context, providerID, from, to string) ([]*model.Slot, error) {
	return c.listRange(ctx, providerID, "", from, to, map[string]string{ProviderIDHeader: providerID})
}

func (c *SlotClient) History(ctx context.Context, providerID, from, to string) ([]*model.Slot, error) {
	return c.listRange(ctx, providerID, "/history", from, to, map[string]string{ProviderIDHeader: providerID})
}

func (c *SlotClient) listRange(ctx context.Context, providerID, suffix, from, to string, headers map[string]string) ([]*model.Slot, error) {
	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)

	path := "/api/v1/providers/" + url.PathEscape(providerID) + "/slots" + suffix + "?" + q.Encode()
	resp, err := c.httpClient.GET(ctx, path, headers)
	if err != nil {
		return nil, err
	}
	var slots []*model.Slot
	return slots, decode(resp, &slots)
}

func (c *SlotClient) Reserve(ctx context.Context, customerID, slotID string, req *model.ReserveRequest) (*model.Reservation, error) {
	path := "/api/v1/slots/" + url.PathEscape(slotID) + "/reserve"
	resp, err := c.httpClient.POST(ctx, path, req, map[string]string{CallerIDHeader: customerID})
	if err != nil {
		return nil, err
	}
	var reservation model.Reservation
	if err := decode(resp, &reservation); err != nil {
		return nil, err
	}
	return &reservation, nil
}

func (c *SlotClient) Confirm(ctx context.Context, token string) (*model.Slot, error) {
	return c.settle(ctx, "/api/v1/reservations/confirm", token)
}

func (c *SlotClient) Release(ctx context.Context, token string) (*model.Slot, error) {
	return c.settle(ctx, "/api/v1/reservations/release", token)
}

func (c *SlotClient) settle(ctx context.Context, path, token string) (*model.Slot, error) {
	resp, err := c.httpClient.POST(ctx, path, model.TokenRequest{Token: token}, nil)
	if err != nil {
		return nil, err
	}
	var slot model.Slot
	if err := decode(resp, &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}

func (c *SlotClient) Sweep(ctx context.Context) (*SweepResult, error) {
	resp, err := c.httpClient.POST(ctx, "/api/v1/reservations/sweep", nil, nil)
	if err != nil {
		return nil, err
	}
	var result SweepResult
	if err := decode(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PaymentWebhook posts an already signed payment event body.
func (c *SlotClient) PaymentWebhook(ctx context.Context, body []byte, signature string) (*model.Slot, error) {
	resp, err := c.httpClient.POSTRaw(ctx, "/api/v1/payments/webhook", body, map[string]string{PaymentSignatureHeader: signature})
	if err != nil {
		return nil, err
	}
	var slot model.Slot
	if err := decode(resp, &slot); err != nil {
		return nil, err
	}
	return &slot, nil
}
