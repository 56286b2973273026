package stats

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nvellore/fraudwatch/internal/events"
	"github.com/nvellore/fraudwatch/internal/logging"
	"github.com/nvellore/fraudwatch/internal/pagination"
	"github.com/nvellore/fraudwatch/internal/rules"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

// Handler provides the dashboard summary and admin listing endpoints.
type Handler struct {
	agg          *Aggregator
	transactions *events.TransactionStore
	spam         *events.SpamStore
	invoices     *events.InvoiceStore
}

// NewHandler creates a stats handler.
func NewHandler(agg *Aggregator, tx *events.TransactionStore, spam *events.SpamStore, inv *events.InvoiceStore) *Handler {
	return &Handler{agg: agg, transactions: tx, spam: spam, invoices: inv}
}

// RegisterDashboardRoutes sets up the employee-facing summary route.
func (h *Handler) RegisterDashboardRoutes(r *gin.RouterGroup) {
	r.GET("/summary", h.Summary)
}

// RegisterAdminRoutes sets up the admin listing routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/summary", h.Summary)
	r.GET("/transactions", h.ListTransactions)
	r.GET("/spam", h.ListSpam)
	r.GET("/invoices", h.ListInvoices)
}

// Summary handles GET .../summary. Pass ?refresh=true to force a
// recompute instead of serving the cached snapshot.
func (h *Handler) Summary(c *gin.Context) {
	ctx := c.Request.Context()

	var summary *Summary
	if c.Query("refresh") == "true" {
		summary = h.agg.Refresh(ctx)
	} else {
		summary = h.agg.Snapshot(ctx)
	}

	c.JSON(http.StatusOK, summary)
}

// pageParams parses ?limit and ?cursor for the listing endpoints.
func pageParams(c *gin.Context) (int, *pagination.Cursor, bool) {
	limit := defaultPageLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_limit",
				"message": "limit must be a positive integer",
			})
			return 0, nil, false
		}
		if n > maxPageLimit {
			n = maxPageLimit
		}
		limit = n
	}

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor is not valid",
		})
		return 0, nil, false
	}

	return limit, cursor, true
}

// transactionView decorates a stored transaction with its flag verdict.
type transactionView struct {
	events.Transaction
	Flagged bool `json:"flagged"`
}

// ListTransactions handles GET /v1/admin/transactions.
func (h *Handler) ListTransactions(c *gin.Context) {
	ctx := c.Request.Context()

	limit, cursor, ok := pageParams(c)
	if !ok {
		return
	}

	records, err := h.transactions.All(ctx)
	if err != nil {
		logging.L(ctx).Error("list transactions failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to read transactions",
		})
		return
	}

	page, next, hasMore, err := pagination.Page(records, cursor, limit, func(tx events.Transaction) time.Time {
		return tx.Timestamp
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor does not match the log",
		})
		return
	}

	items := make([]transactionView, 0, len(page))
	for _, tx := range page {
		items = append(items, transactionView{Transaction: tx, Flagged: rules.TransactionFlagged(tx)})
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"count":       len(items),
		"next_cursor": next,
		"has_more":    hasMore,
	})
}

// spamView decorates a stored email with both strategies' verdicts.
// The two rules disagree on purpose, so the admin sees both.
type spamView struct {
	events.SpamEmail
	FlaggedByClassifier bool `json:"flaggedByClassifier"`
	FlaggedByPhrases    bool `json:"flaggedByPhrases"`
}

// ListSpam handles GET /v1/admin/spam.
func (h *Handler) ListSpam(c *gin.Context) {
	ctx := c.Request.Context()

	limit, cursor, ok := pageParams(c)
	if !ok {
		return
	}

	records, err := h.spam.All(ctx)
	if err != nil {
		logging.L(ctx).Error("list spam emails failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to read spam emails",
		})
		return
	}

	page, next, hasMore, err := pagination.Page(records, cursor, limit, func(e events.SpamEmail) time.Time {
		return e.Timestamp
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor does not match the log",
		})
		return
	}

	items := make([]spamView, 0, len(page))
	for _, email := range page {
		items = append(items, spamView{
			SpamEmail:           email,
			FlaggedByClassifier: rules.SpamFlagged(email, rules.SpamTrustRemote),
			FlaggedByPhrases:    rules.SpamFlagged(email, rules.SpamPhraseHeuristic),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"count":       len(items),
		"next_cursor": next,
		"has_more":    hasMore,
	})
}

// invoiceView decorates a stored invoice with its flag verdict.
type invoiceView struct {
	events.Invoice
	Flagged bool `json:"flagged"`
}

// ListInvoices handles GET /v1/admin/invoices.
func (h *Handler) ListInvoices(c *gin.Context) {
	ctx := c.Request.Context()

	limit, cursor, ok := pageParams(c)
	if !ok {
		return
	}

	records, err := h.invoices.All(ctx)
	if err != nil {
		logging.L(ctx).Error("list invoices failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to read invoices",
		})
		return
	}

	page, next, hasMore, err := pagination.Page(records, cursor, limit, func(inv events.Invoice) time.Time {
		return inv.Timestamp
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_cursor",
			"message": "cursor does not match the log",
		})
		return
	}

	items := make([]invoiceView, 0, len(page))
	for _, inv := range page {
		items = append(items, invoiceView{Invoice: inv, Flagged: rules.InvoiceFlagged(inv)})
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"count":       len(items),
		"next_cursor": next,
		"has_more":    hasMore,
	})
}
