package analyze

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvellore/fraudwatch/internal/kvstore"
	"github.com/nvellore/fraudwatch/internal/predict"
	"github.com/nvellore/fraudwatch/internal/rules"
	"github.com/nvellore/fraudwatch/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withTestAccount injects an admitted account the way the session
// middleware would.
func withTestAccount() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(session.ContextKeyAccount, testAccount)
		c.Next()
	}
}

func setupRouter(cfg predict.Config, kv kvstore.Store) *gin.Engine {
	service := newService(kv, cfg)
	handler := NewHandler(service, rules.SpamTrustRemote)

	router := gin.New()
	group := router.Group("/v1/analyze", withTestAccount())
	handler.RegisterRoutes(group)
	return router
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestTransactionEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"prediction":"Fraudulent"}`))
	}))
	defer srv.Close()

	router := setupRouter(predict.Config{TransactionURL: srv.URL}, kvstore.NewMemoryStore())

	w := postJSON(router, "/v1/analyze/transaction", gin.H{
		"Amount":                 "1500.00",
		"Payment_currency":       "UK pounds",
		"Payment_type":           "Credit Card",
		"Received_currency":      "US dollar",
		"Receiver_bank_location": "USA",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Flagged bool `json:"flagged"`
		Record  struct {
			Prediction string `json:"prediction"`
			UserID     string `json:"userId"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Flagged)
	assert.Equal(t, "Fraudulent", resp.Record.Prediction)
	assert.Equal(t, testAccount.ID, resp.Record.UserID)
}

func TestTransactionEndpointRejectsUnknownVocabulary(t *testing.T) {
	router := setupRouter(predict.Config{}, kvstore.NewMemoryStore())

	w := postJSON(router, "/v1/analyze/transaction", gin.H{
		"Amount":                 "100",
		"Payment_currency":       "Galleons",
		"Payment_type":           "Credit Card",
		"Received_currency":      "US dollar",
		"Receiver_bank_location": "USA",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_failed")
}

func TestTransactionEndpointUpstreamDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	router := setupRouter(predict.Config{TransactionURL: srv.URL}, kvstore.NewMemoryStore())

	w := postJSON(router, "/v1/analyze/transaction", gin.H{
		"Amount":                 "100",
		"Payment_currency":       "Euro",
		"Payment_type":           "ACH",
		"Received_currency":      "Euro",
		"Receiver_bank_location": "France",
	})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "service_unavailable")
}

func multipartUpload(t *testing.T, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, form.Close())
	return &body, form.FormDataContentType()
}

func TestInvoiceEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"output":"Not Fraud","details":""}`))
	}))
	defer srv.Close()

	router := setupRouter(predict.Config{InvoiceURL: srv.URL}, kvstore.NewMemoryStore())

	// Receipt numbering overrides the clean remote verdict.
	body, contentType := multipartUpload(t, "REC-007.pdf", "%PDF-1.4")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze/invoice", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Flagged bool `json:"flagged"`
		Record  struct {
			Output     string `json:"output"`
			Fraudulent bool   `json:"fraudulent"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Flagged)
	assert.False(t, resp.Record.Fraudulent)
	assert.Equal(t, "Not Fraud", resp.Record.Output)
}

func TestInvoiceEndpointRejectsNonPDF(t *testing.T) {
	router := setupRouter(predict.Config{}, kvstore.NewMemoryStore())

	body, contentType := multipartUpload(t, "invoice.docx", "data")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze/invoice", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_file_type")
}

func TestSpamEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"classification":"Ham","similarity_score":0.12}`))
	}))
	defer srv.Close()

	router := setupRouter(predict.Config{SpamURL: srv.URL}, kvstore.NewMemoryStore())

	w := postJSON(router, "/v1/analyze/spam", gin.H{"content": "Lunch at noon?"})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Flagged bool `json:"flagged"`
		Record  struct {
			Classification string `json:"classification"`
		} `json:"record"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Flagged)
	assert.Equal(t, "Ham", resp.Record.Classification)
}

func TestSpamEndpointEmptyContent(t *testing.T) {
	router := setupRouter(predict.Config{}, kvstore.NewMemoryStore())

	w := postJSON(router, "/v1/analyze/spam", gin.H{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndpointsRequireSession(t *testing.T) {
	service := newService(kvstore.NewMemoryStore(), predict.Config{})
	handler := NewHandler(service, rules.SpamTrustRemote)

	// No account-injecting middleware on this router.
	router := gin.New()
	handler.RegisterRoutes(router.Group("/v1/analyze"))

	w := postJSON(router, "/v1/analyze/spam", gin.H{"content": "hi"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	body, contentType := multipartUpload(t, "a.pdf", "x")
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/analyze/invoice", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnauthorized, w2.Code)
}
