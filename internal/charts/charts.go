// Package charts turns a cleaned dataset into generic chart payloads
// consumable by any charting front end: bar and line charts as {x, y},
// pie charts as {labels, values}, heatmaps as a z grid.
package charts

import (
	"sort"
	"time"

	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
)

// Chart type identifiers accepted by Build
const (
	TypeCategorySales   = "category_sales"
	TypePaymentMethod   = "payment_method"
	TypeGenderSplit     = "gender_distribution"
	TypeCustomerType    = "customer_type"
	TypeTimeSeries      = "time_series"
	TypeSalesHeatmap    = "sales_heatmap"
	TypeProductAnalysis = "product_analysis"
)

// Chart is a single renderable series. Fields are populated per Type:
// bar and line use X/Y, pie uses Labels/Values, heatmap uses X/Y/Z.
type Chart struct {
	X      []interface{} `json:"x,omitempty"`
	Y      []interface{} `json:"y,omitempty"`
	Z      [][]float64   `json:"z,omitempty"`
	Labels []string      `json:"labels,omitempty"`
	Values []float64     `json:"values,omitempty"`
	Type   string        `json:"type"`
	Title  string        `json:"title"`
}

// ProductAnalysis pairs the two bar charts of the product deep-dive
type ProductAnalysis struct {
	Price    *Chart `json:"price"`
	Quantity *Chart `json:"quantity"`
}

// Build dispatches a chart type identifier to its builder. The returned
// value is either *Chart or *ProductAnalysis depending on the type.
// Unknown types fail with a validation error.
func Build(d *dataset.Dataset, chartType string) (interface{}, error) {
	switch chartType {
	case TypeCategorySales:
		return groupedBar(d, dataset.ColProductLine, "Sales by Product Category")
	case TypePaymentMethod:
		return groupedBar(d, dataset.ColPayment, "Sales by Payment Method")
	case TypeGenderSplit:
		return groupedPie(d, dataset.ColGender, "Sales by Gender")
	case TypeCustomerType:
		return groupedPie(d, dataset.ColCustomerType, "Sales by Customer Type")
	case TypeTimeSeries:
		return TimeSeries(d)
	case TypeSalesHeatmap:
		return SalesHeatmap(d)
	case TypeProductAnalysis:
		return BuildProductAnalysis(d)
	default:
		return nil, apierrors.ValidationError("Invalid chart type: " + chartType)
	}
}

// groupedBar sums Total per distinct value of the grouping column
func groupedBar(d *dataset.Dataset, groupCol, title string) (*Chart, error) {
	labels, values, err := sumTotalBy(d, groupCol)
	if err != nil {
		return nil, err
	}

	c := &Chart{Type: "bar", Title: title}
	for i, label := range labels {
		c.X = append(c.X, label)
		c.Y = append(c.Y, values[i])
	}
	return c, nil
}

// groupedPie sums Total per distinct value, rendered as shares
func groupedPie(d *dataset.Dataset, groupCol, title string) (*Chart, error) {
	labels, values, err := sumTotalBy(d, groupCol)
	if err != nil {
		return nil, err
	}
	return &Chart{Type: "pie", Title: title, Labels: labels, Values: values}, nil
}

// sumTotalBy aggregates summed Total per distinct string value of the
// grouping column, label-ascending for a stable output order.
func sumTotalBy(d *dataset.Dataset, groupCol string) ([]string, []float64, error) {
	if missing := d.MissingColumns(groupCol, dataset.ColTotal); len(missing) > 0 {
		return nil, nil, apierrors.MissingColumns(missing...)
	}

	sums := make(map[string]float64)
	for _, row := range d.Rows {
		group := row[groupCol]
		total := row[dataset.ColTotal]
		if group.Kind != dataset.KindString || total.Kind != dataset.KindNumber {
			continue
		}
		sums[group.Str] += total.Num
	}

	labels := make([]string, 0, len(sums))
	for label := range sums {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	values := make([]float64, len(labels))
	for i, label := range labels {
		values[i] = sums[label]
	}
	return labels, values, nil
}

// TimeSeries sums Total per calendar day, date-ascending, dates rendered
// as YYYY-MM-DD strings.
func TimeSeries(d *dataset.Dataset) (*Chart, error) {
	if missing := d.MissingColumns(dataset.ColDate, dataset.ColTotal); len(missing) > 0 {
		return nil, apierrors.MissingColumns(missing...)
	}

	sums := make(map[time.Time]float64)
	for _, row := range d.Rows {
		date := row[dataset.ColDate]
		total := row[dataset.ColTotal]
		if date.Kind != dataset.KindDate || total.Kind != dataset.KindNumber {
			continue
		}
		sums[date.Time.Truncate(24*time.Hour)] += total.Num
	}

	days := make([]time.Time, 0, len(sums))
	for day := range sums {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	c := &Chart{Type: "line", Title: "Daily Sales Trend"}
	for _, day := range days {
		c.X = append(c.X, day.Format("2006-01-02"))
		c.Y = append(c.Y, sums[day])
	}
	return c, nil
}

// SalesHeatmap builds a 7x24 grid of summed Total per (weekday, hour).
// Rows follow Monday..Sunday, columns 0..23; empty cells stay zero.
func SalesHeatmap(d *dataset.Dataset) (*Chart, error) {
	if missing := d.MissingColumns(dataset.ColDate, dataset.ColTotal); len(missing) > 0 {
		return nil, apierrors.MissingColumns(missing...)
	}

	z := make([][]float64, len(dataset.Weekdays))
	for i := range z {
		z[i] = make([]float64, 24)
	}

	hasHour := d.HasColumn(dataset.ColHour)
	for _, row := range d.Rows {
		date := row[dataset.ColDate]
		total := row[dataset.ColTotal]
		if date.Kind != dataset.KindDate || total.Kind != dataset.KindNumber {
			continue
		}
		dayIdx := dataset.WeekdayIndex(date.Time.Weekday().String())
		if dayIdx < 0 {
			continue
		}
		hour := date.Time.Hour()
		if hasHour {
			if v := row[dataset.ColHour]; v.Kind == dataset.KindNumber {
				hour = int(v.Num)
			}
		}
		if hour < 0 || hour > 23 {
			continue
		}
		z[dayIdx][hour] += total.Num
	}

	c := &Chart{Type: "heatmap", Title: "Sales Heatmap by Day and Hour", Z: z}
	for h := 0; h < 24; h++ {
		c.X = append(c.X, h)
	}
	for _, day := range dataset.Weekdays {
		c.Y = append(c.Y, day)
	}
	return c, nil
}

// BuildProductAnalysis pairs mean unit price and summed quantity per
// product line as two bar charts.
func BuildProductAnalysis(d *dataset.Dataset) (*ProductAnalysis, error) {
	if missing := d.MissingColumns(dataset.ColProductLine, dataset.ColUnitPrice, dataset.ColQuantity); len(missing) > 0 {
		return nil, apierrors.MissingColumns(missing...)
	}

	type agg struct {
		priceSum float64
		count    int
		qtySum   float64
	}
	groups := make(map[string]*agg)
	for _, row := range d.Rows {
		line := row[dataset.ColProductLine]
		price := row[dataset.ColUnitPrice]
		qty := row[dataset.ColQuantity]
		if line.Kind != dataset.KindString || price.Kind != dataset.KindNumber || qty.Kind != dataset.KindNumber {
			continue
		}
		g := groups[line.Str]
		if g == nil {
			g = &agg{}
			groups[line.Str] = g
		}
		g.priceSum += price.Num
		g.count++
		g.qtySum += qty.Num
	}

	lines := make([]string, 0, len(groups))
	for line := range groups {
		lines = append(lines, line)
	}
	sort.Strings(lines)

	price := &Chart{Type: "bar", Title: "Average Unit Price by Product Category"}
	qty := &Chart{Type: "bar", Title: "Quantity Sold by Product Category"}
	for _, line := range lines {
		g := groups[line]
		price.X = append(price.X, line)
		price.Y = append(price.Y, g.priceSum/float64(g.count))
		qty.X = append(qty.X, line)
		qty.Y = append(qty.Y, g.qtySum)
	}

	return &ProductAnalysis{Price: price, Quantity: qty}, nil
}
