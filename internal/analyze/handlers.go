package analyze

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nvellore/fraudwatch/internal/logging"
	"github.com/nvellore/fraudwatch/internal/predict"
	"github.com/nvellore/fraudwatch/internal/rules"
	"github.com/nvellore/fraudwatch/internal/session"
	"github.com/nvellore/fraudwatch/internal/validation"
)

// Handler provides the three analysis endpoints.
type Handler struct {
	service  *Service
	spamRule rules.SpamStrategy
}

// NewHandler creates an analysis handler. spamRule decides which flag the
// spam response reports.
func NewHandler(service *Service, spamRule rules.SpamStrategy) *Handler {
	return &Handler{service: service, spamRule: spamRule}
}

// RegisterRoutes sets up analysis routes under the given group. The group
// must already carry the session middleware.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transaction", h.Transaction)
	r.POST("/invoice", h.Invoice)
	r.POST("/spam", h.Spam)
}

// TransactionRequest mirrors the transaction analysis form.
type TransactionRequest struct {
	Amount               string `json:"Amount" binding:"required"`
	PaymentCurrency      string `json:"Payment_currency" binding:"required"`
	PaymentType          string `json:"Payment_type" binding:"required"`
	ReceivedCurrency     string `json:"Received_currency" binding:"required"`
	ReceiverBankLocation string `json:"Receiver_bank_location" binding:"required"`
}

// Transaction handles POST /v1/analyze/transaction.
func (h *Handler) Transaction(c *gin.Context) {
	account, ok := session.AccountFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Log in to access this page"})
		return
	}

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAmount("Amount", req.Amount),
		validation.OneOf("Payment_currency", req.PaymentCurrency, validation.Currencies),
		validation.OneOf("Payment_type", req.PaymentType, validation.PaymentTypes),
		validation.OneOf("Received_currency", req.ReceivedCurrency, validation.Currencies),
		validation.OneOf("Receiver_bank_location", req.ReceiverBankLocation, validation.Locations),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	record, err := h.service.Transaction(c.Request.Context(), account, predict.TransactionInput{
		Amount:               req.Amount,
		PaymentCurrency:      req.PaymentCurrency,
		PaymentType:          req.PaymentType,
		ReceivedCurrency:     req.ReceivedCurrency,
		ReceiverBankLocation: req.ReceiverBankLocation,
	})
	if err != nil {
		h.predictionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record":  record,
		"flagged": rules.TransactionFlagged(*record),
	})
}

// Invoice handles POST /v1/analyze/invoice (multipart upload).
func (h *Handler) Invoice(c *gin.Context) {
	account, ok := session.AccountFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Log in to access this page"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Attach the invoice as a 'file' form field",
		})
		return
	}

	if !validation.IsPDFFileName(fileHeader.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_file_type",
			"message": "Only PDF invoices are accepted",
		})
		return
	}
	if fileHeader.Size > validation.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error":   "file_too_large",
			"message": "Invoice exceeds the upload size limit",
		})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		logging.L(c.Request.Context()).Error("open invoice upload failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to read upload",
		})
		return
	}
	defer file.Close()

	record, err := h.service.Invoice(c.Request.Context(), account, fileHeader.Filename, file)
	if err != nil {
		h.predictionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record":  record,
		"flagged": rules.InvoiceFlagged(*record),
	})
}

// SpamRequest mirrors the email check form.
type SpamRequest struct {
	Content string `json:"content" binding:"required"`
}

// Spam handles POST /v1/analyze/spam.
func (h *Handler) Spam(c *gin.Context) {
	account, ok := session.AccountFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Log in to access this page"})
		return
	}

	var req SpamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	content := validation.SanitizeString(req.Content, validation.MaxStringLength)
	if content == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "content must not be empty",
		})
		return
	}

	record, err := h.service.Spam(c.Request.Context(), account, content)
	if err != nil {
		h.predictionError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record":  record,
		"flagged": rules.SpamFlagged(*record, h.spamRule),
	})
}

// predictionError maps prediction client failures onto gateway statuses.
// Nothing was recorded, so the client may simply resubmit.
func (h *Handler) predictionError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	switch {
	case errors.Is(err, predict.ErrUnavailable):
		logging.L(ctx).Warn("prediction service unavailable", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "service_unavailable",
			"message": "Prediction service is unavailable, try again",
		})
	case errors.Is(err, predict.ErrBadResponse):
		logging.L(ctx).Warn("prediction service returned unusable response", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "bad_upstream_response",
			"message": "Prediction service returned an unexpected response",
		})
	default:
		logging.L(ctx).Error("analysis failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Analysis failed",
		})
	}
}
