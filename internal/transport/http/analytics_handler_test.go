package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"retailsight/internal/config"
	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
	"retailsight/internal/services"
)

func newTestRouter(t *testing.T) (chi.Router, *services.UploadStore) {
	t.Helper()

	logger := slog.Default()
	store, err := services.NewUploadStore(t.TempDir(), 1<<20, logger)
	require.NoError(t, err)

	svc, err := services.NewAnalyticsService(store, config.AnalyticsConfig{
		DefaultClusters:       3,
		DefaultPeriods:        30,
		DefaultChurnThreshold: 60,
	}, noop.NewMeterProvider().Meter("test"), logger)
	require.NoError(t, err)

	handler := NewAnalyticsHandler(svc, 1<<20, logger, apierrors.NewErrorHandler(logger))

	r := chi.NewRouter()
	r.Mount("/api", handler.Routes())
	r.Mount("/healthz", NewHealthHandler(logger).Routes())
	return r, store
}

func sampleToken(t *testing.T, store *services.UploadStore) string {
	t.Helper()
	token, err := store.SaveDataset(dataset.Sample())
	require.NoError(t, err)
	return token
}

func doJSON(t *testing.T, router chi.Router, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestUpload(t *testing.T) {
	router, _ := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "sales.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("Date,Product line,Total,Quantity,Unit price\n2023-01-01,Electronics,100,2,50\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, 1.0, body["rows"])
}

func TestUpload_NoFilePart(t *testing.T) {
	router, _ := newTestRouter(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("encoding", "utf-8"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
}

func TestLoadData_SampleFallback(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/load-data", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, 100.0, body["row_count"])
	assert.Contains(t, body["note"], "sample data")
}

func TestFilterData(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/filter-data", map[string]interface{}{
		"token":   token,
		"filters": map[string]interface{}{"category": "Electronics"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 20.0, decodeBody(t, rec)["filtered_row_count"])
}

func TestFilterData_EmptyResult(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/filter-data", map[string]interface{}{
		"token":   token,
		"filters": map[string]interface{}{"category": "Nonexistent"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	errObj := body["error"].(map[string]interface{})
	assert.Equal(t, "EMPTY_RESULT", errObj["error_code"])
}

func TestFilterData_InvalidJSON(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/filter-data", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateChart(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/generate-chart", map[string]interface{}{
		"token":      token,
		"chart_type": "category_sales",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	chart := decodeBody(t, rec)["chart_data"].(map[string]interface{})
	assert.Equal(t, "bar", chart["type"])
	assert.Equal(t, "Sales by Product Category", chart["title"])
}

func TestGenerateChart_MissingType(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/generate-chart", map[string]interface{}{
		"token": token,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCustomerSegmentation(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/customer-segmentation", map[string]interface{}{
		"token":      token,
		"n_clusters": 4,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, 4.0, body["n_clusters"])
	assert.Len(t, body["clusters"], 4)
}

func TestCustomerSegmentation_KOutOfRange(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/customer-segmentation", map[string]interface{}{
		"token":      token,
		"n_clusters": 21,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSalesForecast(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/sales-forecast", map[string]interface{}{
		"token":   token,
		"periods": 15,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, 15.0, body["periods"])
	fc := body["forecast"].(map[string]interface{})
	assert.Len(t, fc["ds"], 115)
	assert.Len(t, fc["yhat"], 115)
}

func TestChurnPrediction(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodPost, "/api/churn-prediction", map[string]interface{}{
		"token": token,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	churn := decodeBody(t, rec)["churn_data"].(map[string]interface{})
	assert.Equal(t, 100.0, churn["total_customers"])
	assert.Len(t, churn["importances"], 4)
}

func TestGenerateInsights_GET(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodGet, "/api/generate-insights?token="+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	insights := decodeBody(t, rec)["insights"].([]interface{})
	assert.NotEmpty(t, insights)
}

func TestExport_CSV(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodGet, "/api/export/csv?token="+token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "sales_data.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(t, lines, 101)
}

func TestExport_UnknownFormat(t *testing.T) {
	router, store := newTestRouter(t)
	token := sampleToken(t, store)

	rec := doJSON(t, router, http.MethodGet, "/api/export/pdf?token="+token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
