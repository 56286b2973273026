package rules

import (
	"testing"

	"github.com/nvellore/fraudwatch/internal/events"
	"github.com/stretchr/testify/assert"
)

func TestTransactionFlagged(t *testing.T) {
	tests := []struct {
		prediction string
		flagged    bool
	}{
		{"Fraudulent", true},
		{"Suspicious", true},
		{"Legitimate", false},
		{"", false},
		{"fraudulent", false}, // verdict strings are exact
	}

	for _, tt := range tests {
		t.Run(tt.prediction, func(t *testing.T) {
			got := TransactionFlagged(events.Transaction{Prediction: tt.prediction})
			assert.Equal(t, tt.flagged, got)
		})
	}
}

func TestSpamFlagged_TrustRemote(t *testing.T) {
	// The service reports "Spam", the admin view compares "spam" — the
	// strategy accepts both spellings.
	assert.True(t, SpamFlagged(events.SpamEmail{Classification: "Spam"}, SpamTrustRemote))
	assert.True(t, SpamFlagged(events.SpamEmail{Classification: "spam"}, SpamTrustRemote))
	assert.False(t, SpamFlagged(events.SpamEmail{Classification: "Ham"}, SpamTrustRemote))

	// Content is ignored entirely under this strategy
	assert.False(t, SpamFlagged(events.SpamEmail{
		Classification: "Ham",
		Content:        "your account suspended, act now",
	}, SpamTrustRemote))
}

func TestSpamFlagged_PhraseHeuristic(t *testing.T) {
	tests := []struct {
		name    string
		content string
		flagged bool
	}{
		{"suspended phrase", "URGENT: your Account Suspended until review", true},
		{"verify phrase", "Please verify your account within 24 hours", true},
		{"clean", "Team lunch next week at noon", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Classification says the opposite on purpose: the heuristic
			// must not consult it.
			record := events.SpamEmail{Content: tt.content, Classification: "Ham"}
			if !tt.flagged {
				record.Classification = "Spam"
			}
			assert.Equal(t, tt.flagged, SpamFlagged(record, SpamPhraseHeuristic))
		})
	}
}

func TestParseSpamStrategy(t *testing.T) {
	s, err := ParseSpamStrategy("remote")
	assert.NoError(t, err)
	assert.Equal(t, SpamTrustRemote, s)

	s, err = ParseSpamStrategy("phrases")
	assert.NoError(t, err)
	assert.Equal(t, SpamPhraseHeuristic, s)

	_, err = ParseSpamStrategy("hybrid")
	assert.Error(t, err)
}

func TestInvoiceFlagged(t *testing.T) {
	tests := []struct {
		name    string
		invoice events.Invoice
		flagged bool
	}{
		{
			name:    "remote fraudulent flag",
			invoice: events.Invoice{Fraudulent: true, Output: "Legit", FileName: "a.pdf"},
			flagged: true,
		},
		{
			name:    "remote output verdict",
			invoice: events.Invoice{Output: "Fraud", FileName: "a.pdf"},
			flagged: true,
		},
		{
			name:    "details mention",
			invoice: events.Invoice{Output: "Legit", Details: "Fraud Check Result: Fraud", FileName: "a.pdf"},
			flagged: true,
		},
		{
			name:    "receipt pattern overrides legit verdict",
			invoice: events.Invoice{Fraudulent: false, Output: "Legit", FileName: "REC-005.pdf"},
			flagged: true,
		},
		{
			name:    "receipt pattern case-insensitive",
			invoice: events.Invoice{Output: "Legit", FileName: "rec-0020.PDF"},
			flagged: true,
		},
		{
			name:    "receipt number out of range",
			invoice: events.Invoice{Output: "Legit", FileName: "REC-021.pdf"},
			flagged: false,
		},
		{
			name:    "receipt zero not in range",
			invoice: events.Invoice{Output: "Legit", FileName: "REC-000.pdf"},
			flagged: false,
		},
		{
			name:    "non-receipt filename",
			invoice: events.Invoice{Fraudulent: false, Output: "Legit", FileName: "INV-2024-099.pdf"},
			flagged: false,
		},
		{
			name:    "unparseable filename disables pattern rule",
			invoice: events.Invoice{Output: "Legit", FileName: "REC-.pdf"},
			flagged: false,
		},
		{
			name:    "clean record",
			invoice: events.Invoice{Output: "Legit", Details: "No details provided", FileName: "statement.pdf"},
			flagged: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.flagged, InvoiceFlagged(tt.invoice))
		})
	}
}
