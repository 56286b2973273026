// Package analyze orchestrates one analysis round trip: call the remote
// prediction service, stamp the verdict into a record, and append it to
// the matching collection.
//
// A failed prediction appends nothing — the user resubmits by hand. A
// failed append after a successful prediction still returns the verdict;
// the record is lost, which matches the log's best-effort durability.
package analyze

import (
	"context"
	"io"
	"time"

	"github.com/nvellore/fraudwatch/internal/accounts"
	"github.com/nvellore/fraudwatch/internal/events"
	"github.com/nvellore/fraudwatch/internal/logging"
	"github.com/nvellore/fraudwatch/internal/metrics"
	"github.com/nvellore/fraudwatch/internal/predict"
	"github.com/nvellore/fraudwatch/internal/rules"
	"github.com/nvellore/fraudwatch/internal/traces"
)

func outcomeLabel(flagged bool) string {
	if flagged {
		return "flagged"
	}
	return "ok"
}

// Broadcaster pushes recorded analyses to live subscribers.
type Broadcaster interface {
	BroadcastAnalysis(kind string, record interface{}, flagged bool)
}

// Service runs analyses and records their outcomes.
type Service struct {
	client       *predict.Client
	transactions *events.TransactionStore
	spam         *events.SpamStore
	invoices     *events.InvoiceStore
	spamRule     rules.SpamStrategy
	broadcaster  Broadcaster
}

// NewService creates an analysis service. spamRule is the configured spam
// strategy; metrics, broadcasts, and responses all use the same one.
func NewService(client *predict.Client, tx *events.TransactionStore, spam *events.SpamStore, inv *events.InvoiceStore, spamRule rules.SpamStrategy) *Service {
	return &Service{client: client, transactions: tx, spam: spam, invoices: inv, spamRule: spamRule}
}

// SetBroadcaster wires live streaming of recorded analyses. Optional.
func (s *Service) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

func (s *Service) announce(kind string, record interface{}, flagged bool) {
	if s.broadcaster != nil {
		s.broadcaster.BroadcastAnalysis(kind, record, flagged)
	}
}

// Transaction sends the form to the risk service and logs the verdict.
func (s *Service) Transaction(ctx context.Context, account *accounts.Account, input predict.TransactionInput) (*events.Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "analyze.Transaction", traces.UserID(account.ID))
	defer span.End()

	prediction, err := s.client.AnalyzeTransaction(ctx, input)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("transaction", "upstream_error").Inc()
		return nil, err
	}

	record := events.Transaction{
		Amount:               input.Amount,
		PaymentCurrency:      input.PaymentCurrency,
		PaymentType:          input.PaymentType,
		ReceivedCurrency:     input.ReceivedCurrency,
		ReceiverBankLocation: input.ReceiverBankLocation,
		Prediction:           prediction,
		Timestamp:            time.Now().UTC(),
		UserID:               account.ID,
	}
	if err := s.transactions.Append(ctx, record); err != nil {
		logging.L(ctx).Error("transaction verdict not recorded", "error", err, "prediction", prediction)
	}
	flagged := rules.TransactionFlagged(record)
	metrics.AnalysesTotal.WithLabelValues("transaction", outcomeLabel(flagged)).Inc()
	s.announce("transaction", record, flagged)
	return &record, nil
}

// Invoice uploads the document to the invoice service and logs the verdict.
func (s *Service) Invoice(ctx context.Context, account *accounts.Account, fileName string, file io.Reader) (*events.Invoice, error) {
	ctx, span := traces.StartSpan(ctx, "analyze.Invoice", traces.UserID(account.ID), traces.FileName(fileName))
	defer span.End()

	result, err := s.client.CheckInvoice(ctx, fileName, file)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("invoice", "upstream_error").Inc()
		return nil, err
	}

	record := events.Invoice{
		FileName:   fileName,
		Output:     result.Output,
		Fraudulent: result.Output == "Fraud",
		Details:    result.Details,
		Timestamp:  time.Now().UTC(),
		UserID:     account.ID,
	}
	if err := s.invoices.Append(ctx, record); err != nil {
		logging.L(ctx).Error("invoice verdict not recorded", "error", err, "fileName", fileName)
	}
	flagged := rules.InvoiceFlagged(record)
	metrics.AnalysesTotal.WithLabelValues("invoice", outcomeLabel(flagged)).Inc()
	s.announce("invoice", record, flagged)
	return &record, nil
}

// Spam sends the message to the classifier and logs the verdict.
func (s *Service) Spam(ctx context.Context, account *accounts.Account, content string) (*events.SpamEmail, error) {
	ctx, span := traces.StartSpan(ctx, "analyze.Spam", traces.UserID(account.ID))
	defer span.End()

	result, err := s.client.ClassifySpam(ctx, content)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("spam", "upstream_error").Inc()
		return nil, err
	}

	record := events.SpamEmail{
		Content:         content,
		Classification:  result.Classification,
		SimilarityScore: result.SimilarityScore,
		Timestamp:       time.Now().UTC(),
		UserID:          account.ID,
	}
	if err := s.spam.Append(ctx, record); err != nil {
		logging.L(ctx).Error("spam verdict not recorded", "error", err)
	}
	flagged := rules.SpamFlagged(record, s.spamRule)
	metrics.AnalysesTotal.WithLabelValues("spam", outcomeLabel(flagged)).Inc()
	s.announce("spam", record, flagged)
	return &record, nil
}
