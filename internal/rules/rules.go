// Package rules decides whether a stored analysis record is flagged.
//
// The remote prediction services' verdicts are not trusted alone: each rule
// combines the stored verdict with local heuristics. The functions here are
// pure — they read a record and return a bool, nothing else — so the
// aggregation layer can recompute over the logs as often as it likes.
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nvellore/fraudwatch/internal/events"
)

// Transaction verdicts that count as flagged.
const (
	PredictionFraudulent = "Fraudulent"
	PredictionSuspicious = "Suspicious"
)

// Spam trigger phrases for the heuristic strategy.
var spamPhrases = []string{
	"account suspended",
	"verify your account",
}

// receiptPattern matches the internal receipt numbering scheme. Receipts
// REC-1 through REC-20 (any zero padding) are known-bad and are flagged
// regardless of the remote verdict.
var receiptPattern = regexp.MustCompile(`(?i)^REC-0*(\d+)\.pdf$`)

const (
	receiptRangeMin = 1
	receiptRangeMax = 20
)

// TransactionFlagged reports whether a transaction record counts as
// fraudulent: the remote prediction is Fraudulent or Suspicious.
func TransactionFlagged(t events.Transaction) bool {
	return t.Prediction == PredictionFraudulent || t.Prediction == PredictionSuspicious
}

// SpamStrategy names one of the two spam-flagging rules in production.
//
// The two rules disagree on real data and product has not reconciled them:
// one call site trusts the stored classification verbatim, another
// re-derives the label from trigger phrases. Both stay selectable; changing
// the default is a product decision, not a refactor.
type SpamStrategy string

const (
	// SpamTrustRemote flags a record when the stored classification says
	// spam. The service reports "Spam" and at least one caller compares
	// against "spam", so the match is case-insensitive.
	SpamTrustRemote SpamStrategy = "remote"

	// SpamPhraseHeuristic ignores the stored classification and flags a
	// record when the content contains a known trigger phrase.
	SpamPhraseHeuristic SpamStrategy = "phrases"
)

// ParseSpamStrategy validates a configured strategy name.
func ParseSpamStrategy(name string) (SpamStrategy, error) {
	switch SpamStrategy(name) {
	case SpamTrustRemote, SpamPhraseHeuristic:
		return SpamStrategy(name), nil
	}
	return "", fmt.Errorf("unknown spam strategy %q (want %q or %q)", name, SpamTrustRemote, SpamPhraseHeuristic)
}

// SpamFlagged reports whether a spam record counts as spam under the given
// strategy.
func SpamFlagged(e events.SpamEmail, strategy SpamStrategy) bool {
	switch strategy {
	case SpamPhraseHeuristic:
		content := strings.ToLower(e.Content)
		for _, phrase := range spamPhrases {
			if strings.Contains(content, phrase) {
				return true
			}
		}
		return false
	default:
		return strings.EqualFold(e.Classification, "spam")
	}
}

// InvoiceFlagged reports whether an invoice record counts as fraudulent.
// Any one of four rules fires it: the stored fraudulent flag, the remote
// output verdict, "Fraud" appearing in the details text, or the receipt
// filename pattern. A filename that doesn't parse simply skips the pattern
// rule.
func InvoiceFlagged(inv events.Invoice) bool {
	if inv.Fraudulent {
		return true
	}
	if inv.Output == "Fraud" {
		return true
	}
	if strings.Contains(inv.Details, "Fraud") {
		return true
	}
	return receiptNumberFlagged(inv.FileName)
}

func receiptNumberFlagged(fileName string) bool {
	m := receiptPattern.FindStringSubmatch(strings.TrimSpace(fileName))
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return false
	}
	return n >= receiptRangeMin && n <= receiptRangeMax
}
