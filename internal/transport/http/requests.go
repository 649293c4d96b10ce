package http

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
)

// Filters is the wire shape of the dataset filter criteria
type Filters struct {
	Category     string   `json:"category"`
	CustomerType string   `json:"customer_type"`
	Gender       string   `json:"gender"`
	DateRange    []string `json:"date_range" validate:"omitempty,len=2"`
}

// Criteria converts the wire filters into pipeline criteria. An invalid
// date range deactivates the date filter instead of failing the request.
func (f Filters) Criteria() dataset.Criteria {
	return dataset.Criteria{
		Category:     f.Category,
		CustomerType: f.CustomerType,
		Gender:       f.Gender,
		DateRange:    dataset.ParseDateRange(f.DateRange),
	}
}

// AnalyticsRequest is the parameter bundle shared by the pipeline
// endpoints: which upload, how to decode it, and which rows to keep.
type AnalyticsRequest struct {
	Token    string  `json:"token"`
	Encoding string  `json:"encoding"`
	Filters  Filters `json:"filters"`
}

// ChartRequest selects a chart over the filtered dataset
type ChartRequest struct {
	AnalyticsRequest
	ChartType string `json:"chart_type" validate:"required"`
}

// SegmentationRequest configures the clustering run
type SegmentationRequest struct {
	AnalyticsRequest
	NClusters int `json:"n_clusters" validate:"omitempty,min=1,max=20"`
}

// ForecastRequest configures the forecasting run. Nil seasonality flags
// take the engine defaults (yearly and weekly on, daily off).
type ForecastRequest struct {
	AnalyticsRequest
	Periods           int   `json:"periods" validate:"omitempty,min=1,max=365"`
	YearlySeasonality *bool `json:"yearly_seasonality"`
	WeeklySeasonality *bool `json:"weekly_seasonality"`
	DailySeasonality  *bool `json:"daily_seasonality"`
	Multiplicative    bool  `json:"multiplicative"`
}

// ChurnRequest configures the churn classifier run
type ChurnRequest struct {
	AnalyticsRequest
	ThresholdDays int `json:"threshold_days" validate:"omitempty,min=1,max=3650"`
}

// queryBundle reads the shared parameters from the query string, for the
// GET variants of the pipeline endpoints.
func queryBundle(r *http.Request) AnalyticsRequest {
	q := r.URL.Query()
	req := AnalyticsRequest{
		Token:    q.Get("token"),
		Encoding: q.Get("encoding"),
		Filters: Filters{
			Category:     q.Get("category"),
			CustomerType: q.Get("customer_type"),
			Gender:       q.Get("gender"),
		},
	}
	if start, end := q.Get("start_date"), q.Get("end_date"); start != "" && end != "" {
		req.Filters.DateRange = []string{start, end}
	}
	return req
}

// validationMessage flattens validator errors into one readable line
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, "invalid value for "+fe.Field())
	}
	return strings.Join(parts, "; ")
}

// checkRequest validates a decoded request struct
func checkRequest(v *validator.Validate, req interface{}) error {
	if err := v.Struct(req); err != nil {
		return apierrors.ValidationError(validationMessage(err))
	}
	return nil
}
