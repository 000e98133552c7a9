package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"rental-service/internal/service"
	"rental-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	webhookTimestampHeader = "X-Webhook-Timestamp"
	webhookSignatureHeader = "X-Webhook-Signature"
	webhookMaxBody         = 1 << 20
	webhookMaxSkew         = 5 * time.Minute
)

// handleCheckoutWebhook verifies the provider's HMAC signature over the raw
// body and hands the event to the reconciliation service. Any non-2xx makes
// the provider retry the delivery.
func (h *Handler) handleCheckoutWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookMaxBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if err := verifyWebhookSignature(
		h.webhookSecret,
		c.GetHeader(webhookTimestampHeader),
		c.GetHeader(webhookSignatureHeader),
		body,
	); err != nil {
		util.WebhookEventsTotal.WithLabelValues("unknown", "bad_signature").Inc()
		util.GetLogger().Warn("Rejected webhook with invalid signature", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var evt service.CheckoutEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event payload"})
		return
	}

	if err := h.webhooks.HandleEvent(c.Request.Context(), &evt); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// verifyWebhookSignature checks an HMAC-SHA256 hex signature computed over
// "timestamp.body". The timestamp bound rejects replays of old deliveries.
func verifyWebhookSignature(secret, timestampStr, signature string, body []byte) error {
	if timestampStr == "" || signature == "" {
		return fmt.Errorf("missing signature headers")
	}

	ts, err := strconv.ParseInt(timestampStr, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed timestamp: %w", err)
	}
	if skew := time.Since(time.Unix(ts, 0)); skew > webhookMaxSkew || skew < -webhookMaxSkew {
		return fmt.Errorf("timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.", timestampStr)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
