// Package events provides the three append-only analysis logs.
//
// Each log is one JSON array under its own kv key (transactions, spamEmails,
// invoices). Records are appended once, after a prediction service responds,
// and never updated or deleted; their only identity is array position.
//
// Append is read-whole/push/write-whole and is deliberately not atomic:
// two overlapping appends to the same collection can lose one record
// (last writer wins). Callers accept this; do not add locking here without
// also changing the Postgres backend, which has the same semantics.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nvellore/fraudwatch/internal/kvstore"
)

// Transaction is a stored transaction-risk analysis. JSON field names match
// the prediction service's form vocabulary, which the stored records reuse.
type Transaction struct {
	Amount               string    `json:"Amount"`
	PaymentCurrency      string    `json:"Payment_currency"`
	PaymentType          string    `json:"Payment_type"`
	ReceivedCurrency     string    `json:"Received_currency"`
	ReceiverBankLocation string    `json:"Receiver_bank_location"`
	Prediction           string    `json:"prediction"`
	Timestamp            time.Time `json:"timestamp"`
	UserID               string    `json:"userId"`
}

// SpamEmail is a stored spam-classification result.
type SpamEmail struct {
	Content         string    `json:"content"`
	Classification  string    `json:"classification"`
	SimilarityScore float64   `json:"similarity_score"`
	Timestamp       time.Time `json:"timestamp"`
	UserID          string    `json:"userId"`
}

// Invoice is a stored invoice-fraud check.
type Invoice struct {
	FileName   string    `json:"fileName"`
	Output     string    `json:"output"`
	Fraudulent bool      `json:"fraudulent"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp"`
	UserID     string    `json:"userId"`
}

// TransactionStore manages the transactions collection.
type TransactionStore struct {
	kv kvstore.Store
}

// NewTransactionStore creates a transaction log over the given kv backend.
func NewTransactionStore(kv kvstore.Store) *TransactionStore {
	return &TransactionStore{kv: kv}
}

// Append adds one record to the end of the collection.
func (s *TransactionStore) Append(ctx context.Context, record Transaction) error {
	all, err := s.All(ctx)
	if err != nil {
		return err
	}
	all = append(all, record)
	return writeCollection(ctx, s.kv, kvstore.KeyTransactions, all)
}

// All returns the whole collection in insertion order. A missing key is an
// empty log; a corrupt document surfaces kvstore.ErrCorrupt.
func (s *TransactionStore) All(ctx context.Context) ([]Transaction, error) {
	var all []Transaction
	if err := readCollection(ctx, s.kv, kvstore.KeyTransactions, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = []Transaction{}
	}
	return all, nil
}

// SpamStore manages the spamEmails collection.
type SpamStore struct {
	kv kvstore.Store
}

// NewSpamStore creates a spam-check log over the given kv backend.
func NewSpamStore(kv kvstore.Store) *SpamStore {
	return &SpamStore{kv: kv}
}

// Append adds one record to the end of the collection.
func (s *SpamStore) Append(ctx context.Context, record SpamEmail) error {
	all, err := s.All(ctx)
	if err != nil {
		return err
	}
	all = append(all, record)
	return writeCollection(ctx, s.kv, kvstore.KeySpamEmails, all)
}

// All returns the whole collection in insertion order.
func (s *SpamStore) All(ctx context.Context) ([]SpamEmail, error) {
	var all []SpamEmail
	if err := readCollection(ctx, s.kv, kvstore.KeySpamEmails, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = []SpamEmail{}
	}
	return all, nil
}

// InvoiceStore manages the invoices collection.
type InvoiceStore struct {
	kv kvstore.Store
}

// NewInvoiceStore creates an invoice-check log over the given kv backend.
func NewInvoiceStore(kv kvstore.Store) *InvoiceStore {
	return &InvoiceStore{kv: kv}
}

// Append adds one record to the end of the collection.
func (s *InvoiceStore) Append(ctx context.Context, record Invoice) error {
	all, err := s.All(ctx)
	if err != nil {
		return err
	}
	all = append(all, record)
	return writeCollection(ctx, s.kv, kvstore.KeyInvoices, all)
}

// All returns the whole collection in insertion order.
func (s *InvoiceStore) All(ctx context.Context) ([]Invoice, error) {
	var all []Invoice
	if err := readCollection(ctx, s.kv, kvstore.KeyInvoices, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = []Invoice{}
	}
	return all, nil
}

func readCollection(ctx context.Context, kv kvstore.Store, key string, out interface{}) error {
	doc, err := kv.Get(ctx, key)
	if errors.Is(err, kvstore.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal(doc, out); err != nil {
		return fmt.Errorf("decode %s: %w", key, kvstore.ErrCorrupt)
	}
	return nil
}

func writeCollection(ctx context.Context, kv kvstore.Store, key string, collection interface{}) error {
	doc, err := json.Marshal(collection)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Set(ctx, key, doc); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
