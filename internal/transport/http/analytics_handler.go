// Package http exposes the analytics pipeline over chi routes. Handlers
// decode and validate the request bundle, call the service, and render the
// {success, ...payload} envelope; all error mapping goes through the
// shared error handler.
package http

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	apierrors "retailsight/internal/errors"
	"retailsight/internal/forecast"
	"retailsight/internal/services"
)

// uploadFormField is the multipart field carrying the CSV file
const uploadFormField = "file"

// AnalyticsHandler handles the analytics pipeline HTTP requests
type AnalyticsHandler struct {
	service      *services.AnalyticsService
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	validate     *validator.Validate
	maxUpload    int64
}

// NewAnalyticsHandler creates the pipeline handler
func NewAnalyticsHandler(service *services.AnalyticsService, maxUpload int64, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalyticsHandler {
	return &AnalyticsHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "analytics_handler")),
		errorHandler: errorHandler,
		validate:     validator.New(),
		maxUpload:    maxUpload,
	}
}

// Routes returns the analytics routes
func (h *AnalyticsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/upload", h.Upload)
	r.Get("/load-data", h.LoadData)
	r.Post("/filter-data", h.FilterData)
	r.Post("/generate-chart", h.GenerateChart)
	r.Post("/customer-segmentation", h.CustomerSegmentation)
	r.Post("/sales-forecast", h.SalesForecast)
	r.Post("/churn-prediction", h.ChurnPrediction)
	r.Get("/generate-insights", h.GenerateInsights)
	r.Post("/generate-insights", h.GenerateInsights)
	r.Get("/export/{format}", h.Export)

	return r
}

// Upload handles POST /upload: a multipart CSV plus an optional encoding
// hint. Responds with the stored token and a cleaned-data preview.
func (h *AnalyticsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ErrUploadTooLarge)
		return
	}

	file, _, err := r.FormFile(uploadFormField)
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ValidationError("No file part in the request"))
		return
	}
	defer file.Close()

	encoding := r.FormValue("encoding")
	result, err := h.service.Upload(r.Context(), file, encoding)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, map[string]interface{}{
		"success": true,
		"token":   result.Token,
		"columns": result.Columns,
		"rows":    result.RowCount,
	})
}

// LoadData handles GET /load-data. With no token it falls back to the
// synthesized sample dataset.
func (h *AnalyticsHandler) LoadData(w http.ResponseWriter, r *http.Request) {
	req := queryBundle(r)

	result, err := h.service.LoadData(r.Context(), req.Token, req.Encoding)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	body := map[string]interface{}{
		"success":       true,
		"token":         result.Token,
		"columns":       result.Columns,
		"column_types":  result.ColumnTypes,
		"sample_data":   result.SampleData,
		"numeric_stats": result.Summary,
		"row_count":     result.RowCount,
	}
	if result.Note != "" {
		body["note"] = result.Note
	}
	h.respond(w, r, body)
}

// FilterData handles POST /filter-data
func (h *AnalyticsHandler) FilterData(w http.ResponseWriter, r *http.Request) {
	var req AnalyticsRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := h.service.FilterData(r.Context(), req.Token, req.Encoding, req.Filters.Criteria())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, map[string]interface{}{
		"success":            true,
		"token":              result.Token,
		"filtered_sample":    result.FilteredSample,
		"filtered_row_count": result.FilteredRowCount,
	})
}

// GenerateChart handles POST /generate-chart
func (h *AnalyticsHandler) GenerateChart(w http.ResponseWriter, r *http.Request) {
	var req ChartRequest
	if !h.decode(w, r, &req) {
		return
	}

	chart, token, err := h.service.Chart(r.Context(), req.Token, req.Encoding, req.Filters.Criteria(), req.ChartType)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, map[string]interface{}{
		"success":    true,
		"token":      token,
		"chart_data": chart,
	})
}

// CustomerSegmentation handles POST /customer-segmentation
func (h *AnalyticsHandler) CustomerSegmentation(w http.ResponseWriter, r *http.Request) {
	var req SegmentationRequest
	if !h.decode(w, r, &req) {
		return
	}

	payload, err := h.service.Segmentation(r.Context(), req.Token, req.Encoding, req.Filters.Criteria(), req.NClusters)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, map[string]interface{}{
		"success":    true,
		"token":      payload.Token,
		"n_clusters": payload.K,
		"clusters":   payload.Clusters,
		"profiles":   payload.Profiles,
	})
}

// SalesForecast handles POST /sales-forecast
func (h *AnalyticsHandler) SalesForecast(w http.ResponseWriter, r *http.Request) {
	var req ForecastRequest
	if !h.decode(w, r, &req) {
		return
	}

	opts := forecast.DefaultOptions()
	opts.Periods = req.Periods
	if req.YearlySeasonality != nil {
		opts.YearlySeasonality = *req.YearlySeasonality
	}
	if req.WeeklySeasonality != nil {
		opts.WeeklySeasonality = *req.WeeklySeasonality
	}
	if req.DailySeasonality != nil {
		opts.DailySeasonality = *req.DailySeasonality
	}
	opts.Multiplicative = req.Multiplicative

	payload, err := h.service.ForecastSales(r.Context(), req.Token, req.Encoding, req.Filters.Criteria(), opts)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, map[string]interface{}{
		"success":    true,
		"token":      payload.Token,
		"forecast":   payload.Forecast,
		"components": payload.Components,
		"periods":    payload.Periods,
	})
}

// ChurnPrediction handles POST /churn-prediction
func (h *AnalyticsHandler) ChurnPrediction(w http.ResponseWriter, r *http.Request) {
	var req ChurnRequest
	if !h.decode(w, r, &req) {
		return
	}

	payload, err := h.service.Churn(r.Context(), req.Token, req.Encoding, req.Filters.Criteria(), req.ThresholdDays)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, map[string]interface{}{
		"success":    true,
		"token":      payload.Token,
		"churn_data": payload.ChurnData,
	})
}

// GenerateInsights handles GET and POST /generate-insights
func (h *AnalyticsHandler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	var req AnalyticsRequest
	if r.Method == http.MethodGet {
		req = queryBundle(r)
	} else if !h.decode(w, r, &req) {
		return
	}

	payload, err := h.service.Insights(r.Context(), req.Token, req.Encoding, req.Filters.Criteria())
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.respond(w, r, map[string]interface{}{
		"success":  true,
		"token":    payload.Token,
		"insights": payload.Insights,
	})
}

// Export handles GET /export/{format}: streams the filtered dataset as a
// CSV or XLSX download.
func (h *AnalyticsHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "format")
	req := queryBundle(r)

	var contentType string
	switch format {
	case "csv":
		contentType = "text/csv; charset=utf-8"
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		h.errorHandler.HandleError(w, r, apierrors.ValidationError("unsupported export format: "+format))
		return
	}

	// buffer the export so a failure can still render a clean error body
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), req.Token, req.Encoding, req.Filters.Criteria(), format, &buf); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="sales_data.%s"`, format))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Error("export write failed", slog.String("format", format), slog.String("error", err.Error()))
	}
}

// decode reads and validates a JSON request body
func (h *AnalyticsHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := render.DecodeJSON(r.Body, req); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.ValidationError("Invalid JSON request body"))
		return false
	}
	if err := checkRequest(h.validate, req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

func (h *AnalyticsHandler) respond(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, body)
}
