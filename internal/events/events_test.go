package events

import (
	"context"
	"testing"
	"time"

	"github.com/nvellore/fraudwatch/internal/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionStore_RoundTrip(t *testing.T) {
	store := NewTransactionStore(kvstore.NewMemoryStore())
	ctx := context.Background()

	record := Transaction{
		Amount:               "2500",
		PaymentCurrency:      "US dollar",
		PaymentType:          "Credit Card",
		ReceivedCurrency:     "Euro",
		ReceiverBankLocation: "Germany",
		Prediction:           "Legitimate",
		Timestamp:            time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		UserID:               "acc_1",
	}
	require.NoError(t, store.Append(ctx, record))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, record, all[len(all)-1])
}

func TestTransactionStore_AppendPreservesOrder(t *testing.T) {
	store := NewTransactionStore(kvstore.NewMemoryStore())
	ctx := context.Background()

	for _, p := range []string{"Legitimate", "Suspicious", "Fraudulent"} {
		require.NoError(t, store.Append(ctx, Transaction{Prediction: p}))
	}

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Legitimate", all[0].Prediction)
	assert.Equal(t, "Fraudulent", all[2].Prediction)
}

func TestSpamStore_RoundTrip(t *testing.T) {
	store := NewSpamStore(kvstore.NewMemoryStore())
	ctx := context.Background()

	record := SpamEmail{
		Content:         "Claim your prize money",
		Classification:  "Spam",
		SimilarityScore: 0.93,
		Timestamp:       time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		UserID:          "acc_2",
	}
	require.NoError(t, store.Append(ctx, record))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, record, all[0])
}

func TestInvoiceStore_RoundTrip(t *testing.T) {
	store := NewInvoiceStore(kvstore.NewMemoryStore())
	ctx := context.Background()

	record := Invoice{
		FileName:   "REC-005.pdf",
		Output:     "Legit",
		Fraudulent: false,
		Details:    "No details provided",
		Timestamp:  time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		UserID:     "acc_3",
	}
	require.NoError(t, store.Append(ctx, record))

	all, err := store.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, record, all[0])
}

func TestAll_MissingCollectionIsEmpty(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	ctx := context.Background()

	txs, err := NewTransactionStore(kv).All(ctx)
	require.NoError(t, err)
	assert.Empty(t, txs)

	spam, err := NewSpamStore(kv).All(ctx)
	require.NoError(t, err)
	assert.Empty(t, spam)

	invoices, err := NewInvoiceStore(kv).All(ctx)
	require.NoError(t, err)
	assert.Empty(t, invoices)
}

func TestAll_CorruptCollection(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, kvstore.KeyInvoices, []byte(`"not an array`)))

	_, err := NewInvoiceStore(kv).All(ctx)
	assert.ErrorIs(t, err, kvstore.ErrCorrupt)
}

func TestAppend_CorruptCollectionDoesNotWrite(t *testing.T) {
	kv := kvstore.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, kvstore.KeySpamEmails, []byte(`{`)))

	err := NewSpamStore(kv).Append(ctx, SpamEmail{Content: "x"})
	assert.ErrorIs(t, err, kvstore.ErrCorrupt)

	// The corrupt document is left untouched for operators to inspect
	doc, err := kv.Get(ctx, kvstore.KeySpamEmails)
	require.NoError(t, err)
	assert.Equal(t, "{", string(doc))
}
