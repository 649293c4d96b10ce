package charts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
)

func chartFixture() *dataset.Dataset {
	d := dataset.New(
		dataset.ColDate, dataset.ColProductLine, dataset.ColPayment,
		dataset.ColGender, dataset.ColCustomerType, dataset.ColTotal,
		dataset.ColUnitPrice, dataset.ColQuantity, dataset.ColHour,
	)
	monday := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	add := func(dayOffset int, line, payment, gender, ctype string, total, price, qty, hour float64) {
		d.Rows = append(d.Rows, dataset.Row{
			dataset.ColDate:         dataset.Date(monday.AddDate(0, 0, dayOffset)),
			dataset.ColProductLine:  dataset.String(line),
			dataset.ColPayment:      dataset.String(payment),
			dataset.ColGender:       dataset.String(gender),
			dataset.ColCustomerType: dataset.String(ctype),
			dataset.ColTotal:        dataset.Number(total),
			dataset.ColUnitPrice:    dataset.Number(price),
			dataset.ColQuantity:     dataset.Number(qty),
			dataset.ColHour:         dataset.Number(hour),
		})
	}
	add(0, "Electronics", "Cash", "Female", "Member", 100, 25, 4, 9)
	add(0, "Electronics", "Card", "Male", "Normal", 200, 50, 4, 14)
	add(1, "Groceries", "Cash", "Female", "Member", 50, 5, 10, 9)
	return d
}

func TestBuild_CategorySales(t *testing.T) {
	c, err := Build(chartFixture(), TypeCategorySales)
	require.NoError(t, err)

	chart := c.(*Chart)
	assert.Equal(t, "bar", chart.Type)
	assert.Equal(t, []interface{}{"Electronics", "Groceries"}, chart.X)
	assert.Equal(t, []interface{}{300.0, 50.0}, chart.Y)
}

func TestBuild_PaymentMethod(t *testing.T) {
	c, err := Build(chartFixture(), TypePaymentMethod)
	require.NoError(t, err)

	chart := c.(*Chart)
	assert.Equal(t, []interface{}{"Card", "Cash"}, chart.X)
	assert.Equal(t, []interface{}{200.0, 150.0}, chart.Y)
}

func TestBuild_PieCharts(t *testing.T) {
	tests := []struct {
		chartType string
		labels    []string
		values    []float64
	}{
		{TypeGenderSplit, []string{"Female", "Male"}, []float64{150, 200}},
		{TypeCustomerType, []string{"Member", "Normal"}, []float64{150, 200}},
	}
	for _, tt := range tests {
		t.Run(tt.chartType, func(t *testing.T) {
			c, err := Build(chartFixture(), tt.chartType)
			require.NoError(t, err)

			chart := c.(*Chart)
			assert.Equal(t, "pie", chart.Type)
			assert.Equal(t, tt.labels, chart.Labels)
			assert.Equal(t, tt.values, chart.Values)
		})
	}
}

func TestTimeSeries(t *testing.T) {
	chart, err := TimeSeries(chartFixture())
	require.NoError(t, err)

	assert.Equal(t, "line", chart.Type)
	assert.Equal(t, []interface{}{"2023-01-02", "2023-01-03"}, chart.X)
	assert.Equal(t, []interface{}{300.0, 50.0}, chart.Y)
}

func TestSalesHeatmap(t *testing.T) {
	chart, err := SalesHeatmap(chartFixture())
	require.NoError(t, err)

	assert.Equal(t, "heatmap", chart.Type)
	require.Len(t, chart.Z, 7)
	require.Len(t, chart.Z[0], 24)

	// Monday 9:00 holds one sale, Monday 14:00 the other, Tuesday 9:00 the third
	assert.Equal(t, 100.0, chart.Z[0][9])
	assert.Equal(t, 200.0, chart.Z[0][14])
	assert.Equal(t, 50.0, chart.Z[1][9])
	assert.Equal(t, 0.0, chart.Z[3][12])
}

func TestBuildProductAnalysis(t *testing.T) {
	pa, err := BuildProductAnalysis(chartFixture())
	require.NoError(t, err)

	assert.Equal(t, []interface{}{"Electronics", "Groceries"}, pa.Price.X)
	assert.Equal(t, []interface{}{37.5, 5.0}, pa.Price.Y)
	assert.Equal(t, []interface{}{8.0, 10.0}, pa.Quantity.Y)
}

func TestBuild_MissingColumns(t *testing.T) {
	d := dataset.New(dataset.ColTotal)

	for _, chartType := range []string{
		TypeCategorySales, TypePaymentMethod, TypeGenderSplit,
		TypeCustomerType, TypeTimeSeries, TypeSalesHeatmap, TypeProductAnalysis,
	} {
		t.Run(chartType, func(t *testing.T) {
			_, err := Build(d, chartType)
			require.Error(t, err)
			assert.True(t, apierrors.IsValidation(err))
		})
	}
}

func TestBuild_UnknownType(t *testing.T) {
	_, err := Build(chartFixture(), "sparkline")
	require.Error(t, err)
	assert.True(t, apierrors.IsValidation(err))
	assert.Contains(t, err.Error(), "sparkline")
}
