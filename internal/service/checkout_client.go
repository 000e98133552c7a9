package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"rental-service/internal/util"

	"go.uber.org/zap"
)

// CheckoutSessionRequest describes the hosted checkout session to open for a
// booking. Amount is in minor currency units.
type CheckoutSessionRequest struct {
	BookingID   int64
	Description string
	Amount      int64
	Currency    string
}

// CheckoutSession is the provider's hosted session: the URL is where the
// guest completes payment.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutClient talks to the payment provider's checkout API.
type CheckoutClient struct {
	baseURL    string
	apiKey     string
	successURL string
	cancelURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCheckoutClient creates a new checkout provider client
func NewCheckoutClient(baseURL, apiKey, successURL, cancelURL string) *CheckoutClient {
	return &CheckoutClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		successURL: successURL,
		cancelURL:  cancelURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     util.GetLogger(),
	}
}

type createSessionBody struct {
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Description       string `json:"description"`
	SuccessURL        string `json:"success_url"`
	CancelURL         string `json:"cancel_url"`
	ClientReferenceID string `json:"client_reference_id"`
}

// CreateSession opens a hosted checkout session. The booking id travels as the
// client reference so the webhook can correlate the payment back to it.
func (cc *CheckoutClient) CreateSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSession, error) {
	body, err := json.Marshal(createSessionBody{
		Amount:            req.Amount,
		Currency:          req.Currency,
		Description:       req.Description,
		SuccessURL:        cc.successURL,
		CancelURL:         cc.cancelURL,
		ClientReferenceID: strconv.FormatInt(req.BookingID, 10),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		cc.baseURL+"/v1/checkout/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cc.apiKey)

	resp, err := cc.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("checkout provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		cc.logger.Error("Checkout session creation failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", detail))
		return nil, fmt.Errorf("checkout provider returned status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, fmt.Errorf("failed to decode session response: %w", err)
	}
	if session.ID == "" {
		return nil, fmt.Errorf("checkout provider returned session without id")
	}

	cc.logger.Info("Checkout session created",
		zap.Int64("booking_id", req.BookingID),
		zap.String("session_id", session.ID))
	return &session, nil
}
