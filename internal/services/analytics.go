// Package services orchestrates the analytics pipeline over stored
// uploads: parse, clean, filter, derive features, then hand off to the
// model engines. Handlers call these methods and shape the HTTP response;
// no HTTP concerns live here.
package services

import (
	"context"
	"io"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"retailsight/internal/analytics"
	"retailsight/internal/charts"
	"retailsight/internal/config"
	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
	"retailsight/internal/exporter"
	"retailsight/internal/forecast"
	"retailsight/internal/insights"
)

const sampleRecordLimit = 50

// AnalyticsService runs each pipeline stage synchronously on the calling
// goroutine. Every method is stateless given its inputs; the only shared
// resource is the upload store.
type AnalyticsService struct {
	store    *UploadStore
	defaults config.AnalyticsConfig
	logger   *slog.Logger

	pipelineRuns metric.Int64Counter
	rowsRead     metric.Int64Counter
}

// NewAnalyticsService wires the pipeline to its storage and telemetry
func NewAnalyticsService(store *UploadStore, defaults config.AnalyticsConfig, meter metric.Meter, logger *slog.Logger) (*AnalyticsService, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pipelineRuns, err := meter.Int64Counter("retailsight.pipeline.runs",
		metric.WithDescription("Pipeline stage invocations by stage and outcome"))
	if err != nil {
		return nil, err
	}
	rowsRead, err := meter.Int64Counter("retailsight.dataset.rows",
		metric.WithDescription("Rows parsed from stored uploads"))
	if err != nil {
		return nil, err
	}

	return &AnalyticsService{
		store:        store,
		defaults:     defaults,
		logger:       logger,
		pipelineRuns: pipelineRuns,
		rowsRead:     rowsRead,
	}, nil
}

// LoadResult is the data preview returned after loading an upload
type LoadResult struct {
	Token       string                           `json:"token"`
	Columns     []string                         `json:"columns"`
	ColumnTypes map[string]string                `json:"column_types"`
	SampleData  []map[string]interface{}         `json:"sample_data"`
	Summary     map[string]dataset.ColumnSummary `json:"numeric_stats,omitempty"`
	RowCount    int                              `json:"row_count"`
	Note        string                           `json:"note,omitempty"`
}

// FilterResult is the preview of a filtered dataset
type FilterResult struct {
	Token            string                   `json:"token"`
	FilteredSample   []map[string]interface{} `json:"filtered_sample"`
	FilteredRowCount int                      `json:"filtered_row_count"`
}

// SegmentationPayload is the segmentation response body
type SegmentationPayload struct {
	Token    string                     `json:"token"`
	K        int                        `json:"n_clusters"`
	Clusters []analytics.ClusterStat    `json:"clusters"`
	Profiles []analytics.ClusterProfile `json:"profiles"`
}

// ForecastPayload carries the forecast series in the columnar shape chart
// front ends consume, with component series for secondary plots.
type ForecastPayload struct {
	Token      string              `json:"token"`
	Forecast   ForecastColumns     `json:"forecast"`
	Components *ForecastComponents `json:"components,omitempty"`
	Periods    int                 `json:"periods"`
}

// ForecastColumns is the column-oriented forecast frame. Unobserved y
// values render as 0 to stay JSON-friendly.
type ForecastColumns struct {
	DS        []string  `json:"ds"`
	Y         []float64 `json:"y"`
	Yhat      []float64 `json:"yhat"`
	YhatLower []float64 `json:"yhat_lower"`
	YhatUpper []float64 `json:"yhat_upper"`
}

// ForecastComponents exposes the fitted model's component series
type ForecastComponents struct {
	Trend  ComponentSeries `json:"trend"`
	Weekly ComponentSeries `json:"weekly"`
	Yearly ComponentSeries `json:"yearly"`
}

// ComponentSeries is one named component plot
type ComponentSeries struct {
	X    []interface{} `json:"x"`
	Y    []float64     `json:"y"`
	Name string        `json:"name"`
}

// ChurnPayload is the churn response body
type ChurnPayload struct {
	Token     string                 `json:"token"`
	ChurnData *analytics.ChurnResult `json:"churn_data"`
}

// InsightsPayload is the ordered insight list
type InsightsPayload struct {
	Token    string   `json:"token"`
	Insights []string `json:"insights"`
}

// Upload stores a raw CSV stream and verifies it parses, returning the
// token and a preview of the cleaned data.
func (s *AnalyticsService) Upload(ctx context.Context, r io.Reader, encoding string) (*LoadResult, error) {
	token, err := s.store.Save(r)
	if err != nil {
		s.recordRun(ctx, "upload", err)
		return nil, err
	}

	result, err := s.LoadData(ctx, token, encoding)
	if err != nil {
		s.recordRun(ctx, "upload", err)
		return nil, err
	}
	s.recordRun(ctx, "upload", nil)
	return result, nil
}

// LoadData parses and cleans a stored upload and returns its preview.
// With no usable token it synthesizes the demo dataset, stores it, and
// previews that instead, so every downstream call has data to work with.
func (s *AnalyticsService) LoadData(ctx context.Context, token, encoding string) (*LoadResult, error) {
	d, token, note, err := s.loadClean(ctx, token, encoding)
	if err != nil {
		s.recordRun(ctx, "load", err)
		return nil, err
	}
	s.recordRun(ctx, "load", nil)

	return &LoadResult{
		Token:       token,
		Columns:     d.Columns,
		ColumnTypes: d.ColumnTypes(),
		SampleData:  d.Records(sampleRecordLimit),
		Summary:     d.Summary(),
		RowCount:    d.Len(),
		Note:        note,
	}, nil
}

// FilterData applies the criteria and previews the surviving rows
func (s *AnalyticsService) FilterData(ctx context.Context, token, encoding string, criteria dataset.Criteria) (*FilterResult, error) {
	d, token, err := s.loadFiltered(ctx, token, encoding, criteria)
	if err != nil {
		s.recordRun(ctx, "filter", err)
		return nil, err
	}
	s.recordRun(ctx, "filter", nil)

	return &FilterResult{
		Token:            token,
		FilteredSample:   d.Records(sampleRecordLimit),
		FilteredRowCount: d.Len(),
	}, nil
}

// Chart builds the requested chart over the filtered dataset. The result
// is either *charts.Chart or *charts.ProductAnalysis.
func (s *AnalyticsService) Chart(ctx context.Context, token, encoding string, criteria dataset.Criteria, chartType string) (interface{}, string, error) {
	d, token, err := s.loadFiltered(ctx, token, encoding, criteria)
	if err != nil {
		s.recordRun(ctx, "chart", err)
		return nil, "", err
	}

	chart, err := charts.Build(d, chartType)
	s.recordRun(ctx, "chart", err)
	if err != nil {
		return nil, "", err
	}
	return chart, token, nil
}

// Segmentation clusters the filtered dataset into k groups. k falls back
// to the configured default when not positive in the request.
func (s *AnalyticsService) Segmentation(ctx context.Context, token, encoding string, criteria dataset.Criteria, k int) (*SegmentationPayload, error) {
	if k == 0 {
		k = s.defaults.DefaultClusters
	}

	d, token, err := s.loadFiltered(ctx, token, encoding, criteria)
	if err != nil {
		s.recordRun(ctx, "segmentation", err)
		return nil, err
	}

	result, err := analytics.Segment(d, k, s.logger)
	s.recordRun(ctx, "segmentation", err)
	if err != nil {
		return nil, err
	}

	return &SegmentationPayload{
		Token:    token,
		K:        result.K,
		Clusters: result.Stats,
		Profiles: result.Profiles,
	}, nil
}

// ForecastSales fits the forecasting model over the filtered dataset and
// returns the full series plus component plots.
func (s *AnalyticsService) ForecastSales(ctx context.Context, token, encoding string, criteria dataset.Criteria, opts forecast.Options) (*ForecastPayload, error) {
	if opts.Periods == 0 {
		opts.Periods = s.defaults.DefaultPeriods
	}

	d, token, err := s.loadFiltered(ctx, token, encoding, criteria)
	if err != nil {
		s.recordRun(ctx, "forecast", err)
		return nil, err
	}

	series, model, err := forecast.Forecast(d, dataset.ColDate, dataset.ColTotal, opts, s.logger)
	s.recordRun(ctx, "forecast", err)
	if err != nil {
		return nil, err
	}

	return &ForecastPayload{
		Token:      token,
		Forecast:   columnarForecast(series),
		Components: componentPayload(series, model),
		Periods:    opts.Periods,
	}, nil
}

// Churn labels and trains the churn classifier over the filtered dataset.
// thresholdDays falls back to the configured default when not positive.
func (s *AnalyticsService) Churn(ctx context.Context, token, encoding string, criteria dataset.Criteria, thresholdDays int) (*ChurnPayload, error) {
	if thresholdDays == 0 {
		thresholdDays = s.defaults.DefaultChurnThreshold
	}

	d, token, err := s.loadFiltered(ctx, token, encoding, criteria)
	if err != nil {
		s.recordRun(ctx, "churn", err)
		return nil, err
	}

	features, err := analytics.PrepareChurnFeatures(d, thresholdDays, time.Now().UTC(), s.logger)
	if err != nil {
		s.recordRun(ctx, "churn", err)
		return nil, err
	}

	result, err := analytics.TrainChurn(features, s.logger)
	if err != nil {
		s.recordRun(ctx, "churn", err)
		return nil, err
	}
	if result == nil {
		err = apierrors.ModelFitError("churn model training could not proceed: no usable rows after feature preparation")
		s.recordRun(ctx, "churn", err)
		return nil, err
	}

	s.recordRun(ctx, "churn", nil)
	return &ChurnPayload{Token: token, ChurnData: result}, nil
}

// Insights runs the probe battery over the filtered dataset. Segmentation
// and forecasting are attempted best-effort to enrich the cluster and
// shortfall probes; their failures degrade to placeholders rather than
// failing the request.
func (s *AnalyticsService) Insights(ctx context.Context, token, encoding string, criteria dataset.Criteria) (*InsightsPayload, error) {
	d, token, err := s.loadFiltered(ctx, token, encoding, criteria)
	if err != nil {
		s.recordRun(ctx, "insights", err)
		return nil, err
	}

	if seg, segErr := analytics.Segment(d, s.defaults.DefaultClusters, s.logger); segErr == nil {
		d = seg.Dataset
	} else {
		s.logger.Debug("insights running without cluster assignments", slog.String("reason", segErr.Error()))
	}

	var fc forecast.Series
	fcOpts := forecast.DefaultOptions()
	fcOpts.Periods = s.defaults.DefaultPeriods
	if series, _, fcErr := forecast.Forecast(d, dataset.ColDate, dataset.ColTotal, fcOpts, s.logger); fcErr == nil {
		fc = series
	} else {
		s.logger.Debug("insights running without a forecast", slog.String("reason", fcErr.Error()))
	}

	s.recordRun(ctx, "insights", nil)
	return &InsightsPayload{
		Token:    token,
		Insights: insights.Generate(d, fc, s.logger),
	}, nil
}

// Export formats the filtered dataset. Format is "csv" or "xlsx".
func (s *AnalyticsService) Export(ctx context.Context, token, encoding string, criteria dataset.Criteria, format string, w io.Writer) error {
	d, _, err := s.loadFiltered(ctx, token, encoding, criteria)
	if err != nil {
		s.recordRun(ctx, "export", err)
		return err
	}

	switch format {
	case "csv":
		err = exporter.WriteCSV(d, w)
	case "xlsx":
		err = exporter.WriteXLSX(d, w)
	default:
		err = apierrors.ValidationError("unsupported export format: " + format)
	}
	s.recordRun(ctx, "export", err)
	return err
}

// loadClean resolves the token (synthesizing sample data when needed),
// parses with encoding fallbacks, cleans, and derives the profit columns.
func (s *AnalyticsService) loadClean(ctx context.Context, token, encoding string) (*dataset.Dataset, string, string, error) {
	note := ""
	if token == "" || !s.store.Exists(token) {
		sample := dataset.Sample()
		newToken, err := s.store.SaveDataset(sample)
		if err != nil {
			return nil, "", "", err
		}
		token = newToken
		note = "Using sample data. Upload a file for custom data analysis."
		s.logger.Info("no upload available, synthesized sample data", slog.String("token", token))
	}

	raw, err := s.store.Read(token)
	if err != nil {
		return nil, "", "", err
	}

	d, err := dataset.ParseCSV(raw, encoding)
	if err != nil {
		return nil, "", "", err
	}
	s.rowsRead.Add(ctx, int64(d.Len()))

	d = dataset.Clean(d, s.logger)
	d = dataset.DeriveFeatures(d, s.logger)
	return d, token, note, nil
}

// loadFiltered is loadClean plus the filter stage. An empty post-filter
// dataset is the distinct empty-result condition, not an internal fault.
func (s *AnalyticsService) loadFiltered(ctx context.Context, token, encoding string, criteria dataset.Criteria) (*dataset.Dataset, string, error) {
	d, token, _, err := s.loadClean(ctx, token, encoding)
	if err != nil {
		return nil, "", err
	}

	filtered := dataset.Filter(d, criteria)
	if filtered.Empty() && !d.Empty() {
		return nil, "", apierrors.EmptyResultError()
	}
	return filtered, token, nil
}

func (s *AnalyticsService) recordRun(ctx context.Context, stage string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.pipelineRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

// columnarForecast flattens the series into parallel columns; unobserved
// y becomes 0.
func columnarForecast(series forecast.Series) ForecastColumns {
	cols := ForecastColumns{
		DS:        make([]string, len(series)),
		Y:         make([]float64, len(series)),
		Yhat:      make([]float64, len(series)),
		YhatLower: make([]float64, len(series)),
		YhatUpper: make([]float64, len(series)),
	}
	for i, pt := range series {
		cols.DS[i] = pt.DS.Format("2006-01-02")
		if !math.IsNaN(pt.Y) {
			cols.Y[i] = pt.Y
		}
		cols.Yhat[i] = pt.Yhat
		cols.YhatLower[i] = pt.YhatLower
		cols.YhatUpper[i] = pt.YhatUpper
	}
	return cols
}

func componentPayload(series forecast.Series, model *forecast.Model) *ForecastComponents {
	if model == nil {
		return nil
	}

	trend := ComponentSeries{Name: "Trend", Y: model.Trend}
	for _, pt := range series {
		trend.X = append(trend.X, pt.DS.Format("2006-01-02"))
	}

	weekly := ComponentSeries{Name: "Weekly Seasonality", Y: model.WeeklyByDay}
	for _, day := range dataset.Weekdays {
		weekly.X = append(weekly.X, day)
	}

	yearly := ComponentSeries{Name: "Yearly Seasonality", Y: model.YearlyByMonth}
	for m := 1; m <= 12; m++ {
		yearly.X = append(yearly.X, m)
	}

	return &ForecastComponents{Trend: trend, Weekly: weekly, Yearly: yearly}
}
