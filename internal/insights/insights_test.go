package insights

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retailsight/internal/dataset"
	"retailsight/internal/forecast"
)

func salesRow(date time.Time, line string, total, qty float64) dataset.Row {
	return dataset.Row{
		dataset.ColDate:        dataset.Date(date),
		dataset.ColProductLine: dataset.String(line),
		dataset.ColTotal:       dataset.Number(total),
		dataset.ColQuantity:    dataset.Number(qty),
	}
}

func TestProductRanking_DominantCategoryFirst(t *testing.T) {
	day := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	d := dataset.New(dataset.ColDate, dataset.ColProductLine, dataset.ColTotal, dataset.ColQuantity)
	// one category holds 90% of total sales
	d.Rows = append(d.Rows,
		salesRow(day, "Electronics", 900, 3),
		salesRow(day, "Groceries", 60, 2),
		salesRow(day, "Apparel", 40, 1),
	)

	msgs := productRanking(d)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Top-selling categories: Electronics, Groceries, Apparel")
	assert.Contains(t, msgs[1], "Low-performing categories: Apparel")
}

func TestProductRanking_MissingColumns(t *testing.T) {
	d := dataset.New(dataset.ColTotal)
	msgs := productRanking(d)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "unavailable")
}

func TestWeekOverWeek(t *testing.T) {
	// two full weeks: Mon Jan 2 and Mon Jan 9 of 2023
	week1 := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	week2 := time.Date(2023, 1, 9, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		prev, last float64
		want       string
	}{
		{"large increase", 100, 150, "Sales are up 50.0%"},
		{"large decrease", 200, 100, "Sales are down 50.0%"},
		{"small move stays quiet", 100, 103, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := dataset.New(dataset.ColDate, dataset.ColTotal)
			d.Rows = append(d.Rows,
				dataset.Row{dataset.ColDate: dataset.Date(week1), dataset.ColTotal: dataset.Number(tt.prev)},
				dataset.Row{dataset.ColDate: dataset.Date(week2), dataset.ColTotal: dataset.Number(tt.last)},
			)

			msgs := weekOverWeek(d)
			if tt.want == "" {
				assert.Empty(t, msgs)
				return
			}
			require.Len(t, msgs, 1)
			assert.Contains(t, msgs[0], tt.want)
		})
	}
}

func TestWeekOverWeek_SingleWeekStaysQuiet(t *testing.T) {
	d := dataset.New(dataset.ColDate, dataset.ColTotal)
	d.Rows = append(d.Rows, dataset.Row{
		dataset.ColDate:  dataset.Date(time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)),
		dataset.ColTotal: dataset.Number(100),
	})
	assert.Empty(t, weekOverWeek(d))
}

func TestTimePeaks(t *testing.T) {
	d := dataset.New(dataset.ColDay, dataset.ColHour, dataset.ColTotal)
	d.Rows = append(d.Rows,
		dataset.Row{dataset.ColDay: dataset.String("Monday"), dataset.ColHour: dataset.Number(9), dataset.ColTotal: dataset.Number(500)},
		dataset.Row{dataset.ColDay: dataset.String("Tuesday"), dataset.ColHour: dataset.Number(14), dataset.ColTotal: dataset.Number(50)},
		dataset.Row{dataset.ColDay: dataset.String("Monday"), dataset.ColHour: dataset.Number(9), dataset.ColTotal: dataset.Number(300)},
	)

	msgs := timePeaks(d)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Busiest period: Monday at 9:00")
	assert.Contains(t, msgs[1], "Slowest period: Tuesday at 14:00")
}

func TestTimePeaks_NoUsableRows(t *testing.T) {
	d := dataset.New(dataset.ColDay, dataset.ColHour, dataset.ColTotal)
	d.Rows = append(d.Rows, dataset.Row{
		dataset.ColDay:   dataset.Missing(),
		dataset.ColHour:  dataset.Missing(),
		dataset.ColTotal: dataset.Number(10),
	})

	msgs := timePeaks(d)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Insufficient time data")
}

func TestCorrelations(t *testing.T) {
	d := dataset.New(dataset.ColTotal, dataset.ColQuantity)
	// perfectly correlated pair
	for i := 1; i <= 10; i++ {
		d.Rows = append(d.Rows, dataset.Row{
			dataset.ColTotal:    dataset.Number(float64(i * 10)),
			dataset.ColQuantity: dataset.Number(float64(i)),
		})
	}

	msgs := correlations(d)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Total and Quantity are positively correlated (r = 1.00)")
}

func TestCorrelations_InsufficientColumns(t *testing.T) {
	d := dataset.New(dataset.ColTotal)
	for i := 0; i < 5; i++ {
		d.Rows = append(d.Rows, dataset.Row{dataset.ColTotal: dataset.Number(float64(i))})
	}

	msgs := correlations(d)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Insufficient numeric data")
}

func TestClusterTargeting(t *testing.T) {
	d := dataset.New(dataset.ColCluster, dataset.ColTotal, dataset.ColQuantity)
	// cluster 0 spends far above the mean, cluster 1 buys tiny baskets
	for i := 0; i < 5; i++ {
		d.Rows = append(d.Rows, dataset.Row{
			dataset.ColCluster:  dataset.Number(0),
			dataset.ColTotal:    dataset.Number(1000),
			dataset.ColQuantity: dataset.Number(10),
		})
		d.Rows = append(d.Rows, dataset.Row{
			dataset.ColCluster:  dataset.Number(1),
			dataset.ColTotal:    dataset.Number(100),
			dataset.ColQuantity: dataset.Number(1),
		})
	}

	msgs := clusterTargeting(d)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "Cluster 0 are your top spenders")
	assert.Contains(t, msgs[1], "Cluster 1 buys in small quantities")
}

func TestClusterTargeting_NoClusterColumn(t *testing.T) {
	d := dataset.New(dataset.ColTotal, dataset.ColQuantity)
	msgs := clusterTargeting(d)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Cluster profiles unavailable")
}

func TestForecastShortfall(t *testing.T) {
	base := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	fc := forecast.Series{
		{DS: base, Yhat: 100},
		{DS: base.AddDate(0, 0, 1), Yhat: 100},
		{DS: base.AddDate(0, 0, 2), Yhat: 100},
		{DS: base.AddDate(0, 0, 3), Yhat: 10}, // well below 0.8x mean
	}

	msgs := forecastShortfall(fc)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Forecast alert")
	assert.Contains(t, msgs[0], "2023-05-04")
}

func TestForecastShortfall_NilSeries(t *testing.T) {
	assert.Empty(t, forecastShortfall(nil))
}

func TestForecastShortfall_CapsNamedDates(t *testing.T) {
	base := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	fc := forecast.Series{{DS: base, Yhat: 1000}}
	for i := 1; i <= 6; i++ {
		fc = append(fc, forecast.Point{DS: base.AddDate(0, 0, i), Yhat: 1})
	}

	msgs := forecastShortfall(fc)
	require.Len(t, msgs, 1)
	assert.Equal(t, shortfallMaxDates, strings.Count(msgs[0], "2023-05-"))
}

func TestGenerate_ProbeOrderAndIsolation(t *testing.T) {
	d := dataset.Clean(dataset.Sample(), nil)
	d = dataset.DeriveFeatures(d, nil)

	msgs := Generate(d, nil, nil)
	require.NotEmpty(t, msgs)

	// product ranking always leads on a dataset with product lines
	assert.Contains(t, msgs[0], "Top-selling categories")

	// cluster placeholder shows up because no segmentation ran
	found := false
	for _, m := range msgs {
		if strings.Contains(m, "Cluster profiles unavailable") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGenerate_EmptyDataset(t *testing.T) {
	d := dataset.New()
	msgs := Generate(d, nil, nil)
	// placeholders only, nothing fatal
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[0], "unavailable")
}
