package tryon

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"storefront/internal/aimodel"
	"storefront/internal/domain/tenant"
	"storefront/internal/entitlement"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// creditsPerCall is what one model invocation costs.
const creditsPerCall = 1

// Consumer is satisfied by *entitlement.Coordinator.
type Consumer interface {
	Consume(ctx context.Context, storeID, requestID string, amount int64) (entitlement.ConsumeResult, error)
}

type Handler struct {
	credits Consumer
	model   aimodel.Generator
	log     *zap.Logger
}

func NewHandler(credits Consumer, model aimodel.Generator, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{credits: credits, model: model, log: log}
}

type generateRequest struct {
	RequestID string          `json:"request_id"`
	Input     json.RawMessage `json:"input"`
}

// POST /tryon
func (h *Handler) TryOn(c *gin.Context) {
	h.generate(c, aimodel.OpTryOn)
}

// POST /casting
func (h *Handler) Casting(c *gin.Context) {
	h.generate(c, aimodel.OpCasting)
}

func (h *Handler) generate(c *gin.Context, op aimodel.Operation) {
	// An empty body is fine when the request id comes from the header.
	var body generateRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed JSON"})
		return
	}
	requestID := strings.TrimSpace(body.RequestID)
	if requestID == "" {
		requestID = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}

	tc, _ := tenant.FromContext(c.Request.Context())
	res, err := h.credits.Consume(c.Request.Context(), tc.ID(), requestID, creditsPerCall)
	switch {
	case errors.Is(err, entitlement.ErrMissingRequestID):
		c.JSON(http.StatusBadRequest, gin.H{"error": "request_id or Idempotency-Key header is required"})
		return
	case errors.Is(err, entitlement.ErrMissingStoreID):
		c.JSON(http.StatusNotFound, gin.H{"error": "Store not found"})
		return
	case errors.Is(err, entitlement.ErrLedgerUnavailable), errors.Is(err, entitlement.ErrLedgerWriteFailed):
		h.log.Warn("credit check unavailable", zap.String("store_id", tc.ID()), zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Billing temporarily unavailable"})
		return
	case err != nil:
		h.log.Error("credit check failed", zap.String("store_id", tc.ID()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check credits"})
		return
	}

	if !res.Granted {
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":      "Not enough credits",
			"reason":     res.Reason,
			"request_id": res.RequestID,
		})
		return
	}

	out, err := h.model.Generate(c.Request.Context(), op, aimodel.Request{
		StoreID:   tc.ID(),
		RequestID: requestID,
		Input:     body.Input,
	})
	if errors.Is(err, aimodel.ErrNotConfigured) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Model not configured"})
		return
	}
	if err != nil {
		// The credit stays spent; retrying with the same request id replays
		// the grant without a second debit.
		h.log.Error("model call failed",
			zap.String("store_id", tc.ID()),
			zap.String("request_id", requestID),
			zap.String("operation", string(op)),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Model call failed", "request_id": requestID})
		return
	}

	output := out.Output
	if !json.Valid(output) {
		// Non-JSON model output is passed through as a JSON string.
		output, _ = json.Marshal(string(out.Output))
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id": requestID,
		"pool":       res.Pool,
		"replayed":   res.Replayed,
		"output":     output,
	})
}
