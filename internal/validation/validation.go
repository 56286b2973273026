// Package validation provides input validation for the FraudWatch API.
//
// The analysis forms submit from fixed dropdowns, so the server checks
// values against the same fixed vocabularies instead of free-text rules.
package validation

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size for JSON endpoints (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// MaxUploadSize is the maximum invoice upload size (10MB)
const MaxUploadSize = 10 << 20 // 10MB

// MaxStringLength is the maximum length for string fields
const MaxStringLength = 10000

// Currencies is the fixed currency vocabulary of the transaction form.
var Currencies = []string{
	"Albanian lek", "Dirham", "Euro", "Indian Rupee", "Mexican Peso",
	"Moroccan Dirham", "Naira", "Pakistani rupee", "Swiss franc",
	"Turkish lira", "UK pounds", "US dollar", "Yen",
}

// PaymentTypes is the fixed payment type vocabulary. "Cash Withdrawl"
// keeps the upstream model's spelling; the service rejects the corrected
// form.
var PaymentTypes = []string{
	"ACH", "Cash Deposit", "Cash Withdrawl", "Cheque",
	"Credit Card", "Cross-border", "Debit Card",
}

// Locations is the fixed receiver bank location vocabulary.
var Locations = []string{
	"Albania", "Austria", "France", "Germany", "India", "Italy",
	"Japan", "Mexico", "Morocco", "Netherlands", "Nigeria",
	"Pakistan", "Spain", "Switzerland", "Turkey", "UAE", "UK", "USA",
}

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// IsPDFFileName reports whether a file name looks like a PDF upload.
func IsPDFFileName(name string) bool {
	name = strings.TrimSpace(name)
	return len(name) > len(".pdf") && strings.HasSuffix(strings.ToLower(name), ".pdf")
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// OneOf checks if a field matches one of the allowed vocabulary values.
func OneOf(field, value string, allowed []string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		for _, candidate := range allowed {
			if value == candidate {
				return nil
			}
		}
		return &ValidationError{Field: field, Message: "is not an allowed value"}
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// ValidAmount checks if a value is a valid monetary amount (must be positive)
func ValidAmount(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil
		}
		// Positive decimal number with at most one decimal point.
		decimalCount := 0
		hasNonZero := false
		for i, c := range value {
			if c == '.' {
				decimalCount++
				if decimalCount > 1 {
					return &ValidationError{Field: field, Message: "invalid amount format"}
				}
				if i == 0 || i == len(value)-1 {
					return &ValidationError{Field: field, Message: "invalid amount format"}
				}
				continue
			}
			if c < '0' || c > '9' {
				return &ValidationError{Field: field, Message: "invalid amount format"}
			}
			if c != '0' {
				hasNonZero = true
			}
		}
		if !hasNonZero {
			return &ValidationError{Field: field, Message: "amount must be greater than zero"}
		}
		return nil
	}
}
