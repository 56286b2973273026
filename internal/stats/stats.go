// Package stats computes the dashboard aggregation over the three event
// collections.
//
// The aggregator keeps the last good snapshot. A recompute that cannot
// read a collection keeps that collection's previous numbers instead of
// zeroing them, so a transiently corrupt document never blanks the
// dashboard.
package stats

import (
	"context"
	"sync"
	"time"

	"github.com/nvellore/fraudwatch/internal/events"
	"github.com/nvellore/fraudwatch/internal/kvstore"
	"github.com/nvellore/fraudwatch/internal/logging"
	"github.com/nvellore/fraudwatch/internal/metrics"
	"github.com/nvellore/fraudwatch/internal/rules"
)

// CollectionSummary holds the aggregate numbers for one collection.
type CollectionSummary struct {
	Total   int `json:"total"`
	Flagged int `json:"flagged"`
	// SuccessRate is (1 - flagged/total) * 100, or 0 when the
	// collection is empty.
	SuccessRate float64 `json:"successRate"`
}

// Summary is one dashboard snapshot across all three collections.
type Summary struct {
	Transactions CollectionSummary `json:"transactions"`
	SpamEmails   CollectionSummary `json:"spamEmails"`
	Invoices     CollectionSummary `json:"invoices"`
	GeneratedAt  time.Time         `json:"generatedAt"`
}

// Aggregator recomputes dashboard summaries from the event stores.
type Aggregator struct {
	transactions *events.TransactionStore
	spam         *events.SpamStore
	invoices     *events.InvoiceStore
	spamRule     rules.SpamStrategy

	mu       sync.RWMutex
	snapshot *Summary
}

// NewAggregator creates an aggregator over the three event stores.
// spamRule selects which spam flagging strategy feeds the summary.
func NewAggregator(tx *events.TransactionStore, spam *events.SpamStore, inv *events.InvoiceStore, spamRule rules.SpamStrategy) *Aggregator {
	return &Aggregator{
		transactions: tx,
		spam:         spam,
		invoices:     inv,
		spamRule:     spamRule,
	}
}

// Snapshot returns the cached summary, computing one if none exists yet.
func (a *Aggregator) Snapshot(ctx context.Context) *Summary {
	a.mu.RLock()
	cached := a.snapshot
	a.mu.RUnlock()
	if cached != nil {
		return cached
	}
	return a.Refresh(ctx)
}

// Refresh recomputes the summary from the stores and caches it.
// Collections that cannot be read keep their previous numbers.
func (a *Aggregator) Refresh(ctx context.Context) *Summary {
	a.mu.Lock()
	defer a.mu.Unlock()

	metrics.SummaryRefreshesTotal.Inc()

	next := &Summary{GeneratedAt: time.Now().UTC()}
	prev := a.snapshot
	if prev == nil {
		prev = &Summary{}
	}

	if txs, err := a.transactions.All(ctx); err != nil {
		logging.L(ctx).Warn("summary: transactions unreadable, keeping previous numbers", "error", err)
		next.Transactions = prev.Transactions
	} else {
		flagged := 0
		for _, tx := range txs {
			if rules.TransactionFlagged(tx) {
				flagged++
			}
		}
		next.Transactions = summarize(len(txs), flagged)
		metrics.CollectionSize.WithLabelValues(kvstore.KeyTransactions).Set(float64(len(txs)))
	}

	if emails, err := a.spam.All(ctx); err != nil {
		logging.L(ctx).Warn("summary: spam emails unreadable, keeping previous numbers", "error", err)
		next.SpamEmails = prev.SpamEmails
	} else {
		flagged := 0
		for _, email := range emails {
			if rules.SpamFlagged(email, a.spamRule) {
				flagged++
			}
		}
		next.SpamEmails = summarize(len(emails), flagged)
		metrics.CollectionSize.WithLabelValues(kvstore.KeySpamEmails).Set(float64(len(emails)))
	}

	if invoices, err := a.invoices.All(ctx); err != nil {
		logging.L(ctx).Warn("summary: invoices unreadable, keeping previous numbers", "error", err)
		next.Invoices = prev.Invoices
	} else {
		flagged := 0
		for _, inv := range invoices {
			if rules.InvoiceFlagged(inv) {
				flagged++
			}
		}
		next.Invoices = summarize(len(invoices), flagged)
		metrics.CollectionSize.WithLabelValues(kvstore.KeyInvoices).Set(float64(len(invoices)))
	}

	a.snapshot = next
	return next
}

func summarize(total, flagged int) CollectionSummary {
	s := CollectionSummary{Total: total, Flagged: flagged}
	if total > 0 {
		s.SuccessRate = (1 - float64(flagged)/float64(total)) * 100
	}
	return s
}
