// Package forecast fits an additive (optionally multiplicative) time-series
// model over a daily-aggregated date+value series: linear trend plus
// configurable Fourier seasonal components, solved by ridge-regularized
// least squares. The fitted model is an explicit return value; nothing is
// retained between calls.
package forecast

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
)

const (
	// z80 is the normal quantile backing the 80% uncertainty interval
	z80 = 1.28

	// monthlySpanDays gates the extra monthly-periodic component
	monthlySpanDays = 60

	// ridgeLambda keeps the seasonal solve stable on short histories
	ridgeLambda = 1e-3
)

// Seasonal component shapes
const (
	yearlyPeriod  = 365.25
	yearlyOrder   = 10
	weeklyPeriod  = 7.0
	weeklyOrder   = 3
	dailyPeriod   = 1.0
	dailyOrder    = 4
	monthlyPeriod = 30.5
	monthlyOrder  = 5
)

// Options configures a forecast fit
type Options struct {
	Periods           int
	YearlySeasonality bool
	WeeklySeasonality bool
	DailySeasonality  bool
	Multiplicative    bool
}

// DefaultOptions mirrors the request defaults: 30 periods, yearly and
// weekly seasonality on, daily off, additive.
func DefaultOptions() Options {
	return Options{
		Periods:           30,
		YearlySeasonality: true,
		WeeklySeasonality: true,
	}
}

// Point is one row of the forecast output. Y is NaN for future dates.
type Point struct {
	DS        time.Time
	Y         float64
	Yhat      float64
	YhatLower float64
	YhatUpper float64
	Observed  bool
}

// Series is the date-ascending forecast output
type Series []Point

// Model carries the fitted state a caller may inspect after the fact:
// residual scale and the component series used for component plots.
type Model struct {
	Mode  string
	Sigma float64

	Trend         []float64
	WeeklyByDay   []float64
	YearlyByMonth []float64

	coeffs []float64
	blocks []seasonalBlock
	origin time.Time
}

// seasonalBlock is one Fourier component of the design matrix
type seasonalBlock struct {
	period float64
	order  int
}

// Forecast aggregates the named date and value columns to one row per
// calendar day (summing same-day records), fits the model, and produces
// point predictions with uncertainty bands for every observed date plus
// opts.Periods future days at daily granularity. Observed values are
// left-joined back onto the output. Fails with a validation error when a
// column is absent or periods < 1, and a model-fit error when fewer than
// two distinct dates remain.
func Forecast(d *dataset.Dataset, dateCol, valueCol string, opts Options, logger *slog.Logger) (Series, *Model, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Periods < 1 {
		return nil, nil, apierrors.ValidationError("periods must be at least 1")
	}
	if missing := d.MissingColumns(dateCol, valueCol); len(missing) > 0 {
		return nil, nil, apierrors.MissingColumns(missing...)
	}

	dates, values := aggregateDaily(d, dateCol, valueCol)
	if len(dates) < 2 {
		return nil, nil, apierrors.ModelFitError("insufficient signal to fit a trend: need at least 2 distinct dates")
	}

	model := newModel(dates, opts)
	y := values
	if opts.Multiplicative {
		y = make([]float64, len(values))
		for i, v := range values {
			y[i] = math.Log1p(math.Max(v, 0))
		}
	}
	if err := model.fit(dates, y); err != nil {
		return nil, nil, apierrors.ModelFitError(err.Error())
	}

	series := model.extend(dates, values, opts.Periods)
	model.fillComponents(series)

	logger.Info("forecast fitted",
		slog.Int("observed_days", len(dates)),
		slog.Int("periods", opts.Periods),
		slog.String("mode", model.Mode),
	)

	return series, model, nil
}

// aggregateDaily sums the value column per calendar day, date-ascending.
// Rows with a missing date or non-numeric value are skipped.
func aggregateDaily(d *dataset.Dataset, dateCol, valueCol string) ([]time.Time, []float64) {
	sums := make(map[time.Time]float64)
	for _, row := range d.Rows {
		dv := row[dateCol]
		vv := row[valueCol]
		if dv.Kind != dataset.KindDate || vv.Kind != dataset.KindNumber {
			continue
		}
		day := dv.Time.Truncate(24 * time.Hour)
		sums[day] += vv.Num
	}

	dates := make([]time.Time, 0, len(sums))
	for day := range sums {
		dates = append(dates, day)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	values := make([]float64, len(dates))
	for i, day := range dates {
		values[i] = sums[day]
	}
	return dates, values
}

// newModel assembles the seasonal blocks for the observed span
func newModel(dates []time.Time, opts Options) *Model {
	m := &Model{
		Mode:   "additive",
		origin: dates[0],
	}
	if opts.Multiplicative {
		m.Mode = "multiplicative"
	}

	if opts.YearlySeasonality {
		m.blocks = append(m.blocks, seasonalBlock{yearlyPeriod, yearlyOrder})
	}
	if opts.WeeklySeasonality {
		m.blocks = append(m.blocks, seasonalBlock{weeklyPeriod, weeklyOrder})
	}
	if opts.DailySeasonality {
		m.blocks = append(m.blocks, seasonalBlock{dailyPeriod, dailyOrder})
	}

	span := dates[len(dates)-1].Sub(dates[0]).Hours() / 24
	if span > monthlySpanDays {
		m.blocks = append(m.blocks, seasonalBlock{monthlyPeriod, monthlyOrder})
	}

	return m
}

// width is the design-matrix column count: intercept, trend, Fourier pairs
func (m *Model) width() int {
	w := 2
	for _, b := range m.blocks {
		w += 2 * b.order
	}
	return w
}

// designRow builds the regression features for one date
func (m *Model) designRow(t float64) []float64 {
	row := make([]float64, 0, m.width())
	row = append(row, 1, t)
	for _, b := range m.blocks {
		for k := 1; k <= b.order; k++ {
			angle := 2 * math.Pi * float64(k) * t / b.period
			row = append(row, math.Sin(angle), math.Cos(angle))
		}
	}
	return row
}

// daysSince converts a date to the model's time coordinate
func (m *Model) daysSince(date time.Time) float64 {
	return date.Sub(m.origin).Hours() / 24
}

// fit solves the ridge-regularized normal equations for the coefficients
// and records the residual scale. The intercept and trend columns are left
// unpenalized so the trend is never shrunk toward flat.
func (m *Model) fit(dates []time.Time, y []float64) error {
	n, p := len(dates), m.width()

	A := mat.NewDense(n, p, nil)
	for i, date := range dates {
		A.SetRow(i, m.designRow(m.daysSince(date)))
	}
	b := mat.NewVecDense(n, append([]float64(nil), y...))

	var ata mat.Dense
	ata.Mul(A.T(), A)
	for j := 2; j < p; j++ {
		ata.Set(j, j, ata.At(j, j)+ridgeLambda*float64(n))
	}
	var atb mat.VecDense
	atb.MulVec(A.T(), b)

	var coeffs mat.VecDense
	if err := coeffs.SolveVec(&ata, &atb); err != nil {
		return err
	}
	m.coeffs = append([]float64(nil), coeffs.RawVector().Data...)

	residuals := make([]float64, n)
	for i, date := range dates {
		residuals[i] = y[i] - m.predictRaw(m.daysSince(date))
	}
	m.Sigma = stat.StdDev(residuals, nil)
	if math.IsNaN(m.Sigma) {
		m.Sigma = 0
	}

	return nil
}

// predictRaw evaluates the linear model in fit space
func (m *Model) predictRaw(t float64) float64 {
	row := m.designRow(t)
	var sum float64
	for j, c := range m.coeffs {
		sum += c * row[j]
	}
	return sum
}

// predict returns the point estimate and interval in data space
func (m *Model) predict(t float64) (yhat, lower, upper float64) {
	raw := m.predictRaw(t)
	lower = raw - z80*m.Sigma
	upper = raw + z80*m.Sigma
	if m.Mode == "multiplicative" {
		return math.Expm1(raw), math.Expm1(lower), math.Expm1(upper)
	}
	return raw, lower, upper
}

// extend produces the output series: every observed date plus periods
// contiguous future days, all with predictions and bands, observed values
// joined back on.
func (m *Model) extend(dates []time.Time, values []float64, periods int) Series {
	series := make(Series, 0, len(dates)+periods)
	for i, date := range dates {
		yhat, lower, upper := m.predict(m.daysSince(date))
		series = append(series, Point{
			DS: date, Y: values[i],
			Yhat: yhat, YhatLower: lower, YhatUpper: upper,
			Observed: true,
		})
	}

	last := dates[len(dates)-1]
	for i := 1; i <= periods; i++ {
		date := last.AddDate(0, 0, i)
		yhat, lower, upper := m.predict(m.daysSince(date))
		series = append(series, Point{
			DS: date, Y: math.NaN(),
			Yhat: yhat, YhatLower: lower, YhatUpper: upper,
		})
	}

	return series
}

// fillComponents derives the component series exposed for component plots:
// the trend line over the output index, mean weekly contribution per
// weekday, and mean yearly contribution per calendar month.
func (m *Model) fillComponents(series Series) {
	m.Trend = make([]float64, len(series))
	weekSums := make([]float64, 7)
	weekCounts := make([]int, 7)
	monthSums := make([]float64, 12)
	monthCounts := make([]int, 12)

	for i, pt := range series {
		t := m.daysSince(pt.DS)
		m.Trend[i] = m.coeffs[0] + m.coeffs[1]*t

		offset := 2
		for _, b := range m.blocks {
			var contrib float64
			for k := 1; k <= b.order; k++ {
				angle := 2 * math.Pi * float64(k) * t / b.period
				contrib += m.coeffs[offset]*math.Sin(angle) + m.coeffs[offset+1]*math.Cos(angle)
				offset += 2
			}
			switch b.period {
			case weeklyPeriod:
				w := dataset.WeekdayIndex(pt.DS.Weekday().String())
				if w >= 0 {
					weekSums[w] += contrib
					weekCounts[w]++
				}
			case yearlyPeriod:
				mo := int(pt.DS.Month()) - 1
				monthSums[mo] += contrib
				monthCounts[mo]++
			}
		}
	}

	m.WeeklyByDay = averages(weekSums, weekCounts)
	m.YearlyByMonth = averages(monthSums, monthCounts)
}

func averages(sums []float64, counts []int) []float64 {
	out := make([]float64, len(sums))
	for i := range sums {
		if counts[i] > 0 {
			out[i] = sums[i] / float64(counts[i])
		}
	}
	return out
}
