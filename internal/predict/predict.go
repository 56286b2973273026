// Package predict provides clients for the three remote prediction services.
//
// All three services sit behind a public CORS relay: the request URL is the
// relay prefix concatenated with the target URL, and any relay failure looks
// the same as a service failure. There is no retry anywhere — a failed call
// is reported once and the caller resubmits by hand.
package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nvellore/fraudwatch/internal/metrics"
	"github.com/nvellore/fraudwatch/internal/traces"
)

const maxResponseSize = 5 * 1024 * 1024 // 5MB

// Errors
var (
	// ErrUnavailable wraps transport-level failures (relay down, service
	// down, timeout).
	ErrUnavailable = errors.New("prediction service unavailable")

	// ErrBadResponse marks a reply that parsed but is missing the field
	// the caller needs.
	ErrBadResponse = errors.New("unexpected response from prediction service")
)

// Config holds the service endpoints.
type Config struct {
	// RelayURL is prepended to every target URL when set.
	RelayURL string

	TransactionURL string
	InvoiceURL     string
	SpamURL        string

	// Timeout for each call. Zero keeps the http.Client default
	// (no timeout), matching the inherited behavior.
	Timeout time.Duration
}

// Client calls the prediction services.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient creates a prediction client.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// TransactionInput is the form vocabulary of the transaction risk service.
type TransactionInput struct {
	Amount               string
	PaymentCurrency      string
	PaymentType          string
	ReceivedCurrency     string
	ReceiverBankLocation string
}

// AnalyzeTransaction posts the form fields and returns the prediction
// string (Legitimate, Suspicious, Fraudulent, ...).
func (c *Client) AnalyzeTransaction(ctx context.Context, input TransactionInput) (string, error) {
	ctx, span := traces.StartSpan(ctx, "predict.AnalyzeTransaction", traces.Service("transaction"))
	defer span.End()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	fields := map[string]string{
		"Amount":                 input.Amount,
		"Payment_currency":       input.PaymentCurrency,
		"Payment_type":           input.PaymentType,
		"Received_currency":      input.ReceivedCurrency,
		"Receiver_bank_location": input.ReceiverBankLocation,
	}
	for name, value := range fields {
		if err := form.WriteField(name, value); err != nil {
			return "", fmt.Errorf("build form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("build form: %w", err)
	}

	parsed, err := c.post(ctx, "transaction", c.cfg.TransactionURL, form.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}

	prediction, ok := parsed["prediction"].(string)
	if !ok || prediction == "" {
		return "", fmt.Errorf("%w: missing prediction field", ErrBadResponse)
	}
	return prediction, nil
}

// InvoiceResult is the invoice service's verdict.
type InvoiceResult struct {
	Output  string
	Details string
}

// CheckInvoice uploads one document and returns the service's verdict.
func (c *Client) CheckInvoice(ctx context.Context, fileName string, file io.Reader) (*InvoiceResult, error) {
	ctx, span := traces.StartSpan(ctx, "predict.CheckInvoice", traces.Service("invoice"), traces.FileName(fileName))
	defer span.End()

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	parsed, err := c.post(ctx, "invoice", c.cfg.InvoiceURL, form.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}

	output, ok := parsed["output"].(string)
	if !ok || output == "" {
		return nil, fmt.Errorf("%w: missing output field", ErrBadResponse)
	}
	details, _ := parsed["details"].(string)
	return &InvoiceResult{Output: output, Details: details}, nil
}

// SpamResult is the spam service's verdict.
type SpamResult struct {
	Classification  string
	SimilarityScore float64
}

// ClassifySpam sends the message text and returns the classification
// ("Spam"/"Ham") with the model's confidence.
func (c *Client) ClassifySpam(ctx context.Context, message string) (*SpamResult, error) {
	ctx, span := traces.StartSpan(ctx, "predict.ClassifySpam", traces.Service("spam"))
	defer span.End()

	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	parsed, err := c.post(ctx, "spam", c.cfg.SpamURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	classification, ok := parsed["classification"].(string)
	if !ok || classification == "" {
		return nil, fmt.Errorf("%w: missing classification field", ErrBadResponse)
	}
	score, _ := parsed["similarity_score"].(float64)
	return &SpamResult{Classification: classification, SimilarityScore: score}, nil
}

// post sends the request through the relay and decodes the JSON reply.
func (c *Client) post(ctx context.Context, service, target, contentType string, body io.Reader) (map[string]interface{}, error) {
	endpoint := c.cfg.RelayURL + target

	timer := prometheus.NewTimer(metrics.PredictionDuration.WithLabelValues(service))
	defer timer.ObserveDuration()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: not JSON", ErrBadResponse)
	}
	return parsed, nil
}
