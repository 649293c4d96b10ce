// Package insights runs a fixed battery of statistical probes over a
// cleaned dataset and renders the findings as ranked natural-language
// strings. Probes fail independently: a probe that cannot run reports a
// placeholder or is skipped, it never aborts the battery.
package insights

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"retailsight/internal/dataset"
	"retailsight/internal/forecast"
)

const (
	// topN product lines reported at each end of the ranking
	topN = 3

	// weekChangeThreshold is the percentage move that makes the
	// week-over-week probe speak up
	weekChangeThreshold = 5.0

	// correlationFloor drops weak pairwise correlations
	correlationFloor = 0.1

	// correlationTopPairs caps how many pairs get reported
	correlationTopPairs = 2

	// topSpenderRatio and smallBasketRatio gate the cluster messages
	topSpenderRatio  = 1.2
	smallBasketRatio = 0.8

	// shortfallRatio flags forecast dates below this share of the mean
	shortfallRatio = 0.8

	// shortfallMaxDates caps how many dates the alert names
	shortfallMaxDates = 3
)

// Generate runs every probe in its fixed order and collects the messages.
// The forecast series is optional; passing nil skips the shortfall probe.
func Generate(d *dataset.Dataset, fc forecast.Series, logger *slog.Logger) []string {
	if logger == nil {
		logger = slog.Default()
	}

	var out []string
	probes := []struct {
		name string
		run  func() []string
	}{
		{"product_ranking", func() []string { return productRanking(d) }},
		{"week_over_week", func() []string { return weekOverWeek(d) }},
		{"time_peaks", func() []string { return timePeaks(d) }},
		{"correlations", func() []string { return correlations(d) }},
		{"cluster_targeting", func() []string { return clusterTargeting(d) }},
		{"forecast_shortfall", func() []string { return forecastShortfall(fc) }},
	}

	for _, p := range probes {
		out = append(out, runProbe(logger, p.name, p.run)...)
	}
	return out
}

// runProbe isolates a single probe so a panic inside one cannot take the
// rest of the battery down with it.
func runProbe(logger *slog.Logger, name string, fn func() []string) (msgs []string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("insight probe panicked",
				slog.String("probe", name),
				slog.Any("panic", r),
			)
			msgs = nil
		}
	}()
	return fn()
}

// productRanking names the top and bottom product lines by summed Total
func productRanking(d *dataset.Dataset) []string {
	if len(d.MissingColumns(dataset.ColProductLine, dataset.ColTotal)) > 0 {
		return []string{"Product line ranking unavailable: required columns are missing."}
	}

	sums := make(map[string]float64)
	for _, row := range d.Rows {
		line := row[dataset.ColProductLine]
		total := row[dataset.ColTotal]
		if line.Kind != dataset.KindString || total.Kind != dataset.KindNumber {
			continue
		}
		sums[line.Str] += total.Num
	}
	if len(sums) == 0 {
		return []string{"Product line ranking unavailable: required columns are missing."}
	}

	lines := make([]string, 0, len(sums))
	for line := range sums {
		lines = append(lines, line)
	}
	sort.Slice(lines, func(i, j int) bool {
		if sums[lines[i]] != sums[lines[j]] {
			return sums[lines[i]] > sums[lines[j]]
		}
		return lines[i] < lines[j]
	})

	n := topN
	if n > len(lines) {
		n = len(lines)
	}
	top := lines[:n]
	bottom := make([]string, 0, n)
	for i := len(lines) - 1; i >= len(lines)-n; i-- {
		bottom = append(bottom, lines[i])
	}

	return []string{
		fmt.Sprintf("Top-selling categories: %s. Consider expanding these lines.", strings.Join(top, ", ")),
		fmt.Sprintf("Low-performing categories: %s. Consider promotions or discounts.", strings.Join(bottom, ", ")),
	}
}

// weekOverWeek compares the last two weekly sales buckets and only speaks
// up on a move beyond the threshold.
func weekOverWeek(d *dataset.Dataset) []string {
	if len(d.MissingColumns(dataset.ColDate, dataset.ColTotal)) > 0 {
		return []string{"Unable to compute week-over-week sales change."}
	}

	buckets := make(map[time.Time]float64)
	for _, row := range d.Rows {
		date := row[dataset.ColDate]
		total := row[dataset.ColTotal]
		if date.Kind != dataset.KindDate || total.Kind != dataset.KindNumber {
			continue
		}
		buckets[weekEnd(date.Time)] += total.Num
	}
	if len(buckets) < 2 {
		return nil
	}

	weeks := make([]time.Time, 0, len(buckets))
	for w := range buckets {
		weeks = append(weeks, w)
	}
	sort.Slice(weeks, func(i, j int) bool { return weeks[i].Before(weeks[j]) })

	prev := buckets[weeks[len(weeks)-2]]
	last := buckets[weeks[len(weeks)-1]]
	if prev == 0 {
		return []string{"Unable to compute week-over-week sales change."}
	}

	change := (last - prev) / prev * 100
	switch {
	case change > weekChangeThreshold:
		return []string{fmt.Sprintf("Sales are up %.1f%% week-over-week. Maintain current promotions.", change)}
	case change < -weekChangeThreshold:
		return []string{fmt.Sprintf("Sales are down %.1f%% week-over-week. Investigate pricing or stock issues.", -change)}
	}
	return nil
}

// weekEnd maps a date onto the Sunday closing its week, so each bucket is
// a calendar week ending Sunday.
func weekEnd(t time.Time) time.Time {
	day := t.Truncate(24 * time.Hour)
	offset := (7 - int(day.Weekday())) % 7
	return day.AddDate(0, 0, offset)
}

// timePeaks finds the busiest and slowest (day, hour) bucket by summed
// Total over the derived Day and Hour columns.
func timePeaks(d *dataset.Dataset) []string {
	if len(d.MissingColumns(dataset.ColDay, dataset.ColHour, dataset.ColTotal)) > 0 {
		return []string{"Insufficient time data to determine busiest and slowest periods."}
	}

	type slot struct {
		day  string
		hour int
	}
	sums := make(map[slot]float64)
	for _, row := range d.Rows {
		day := row[dataset.ColDay]
		hour := row[dataset.ColHour]
		total := row[dataset.ColTotal]
		if day.Kind != dataset.KindString || hour.Kind != dataset.KindNumber || total.Kind != dataset.KindNumber {
			continue
		}
		sums[slot{day.Str, int(hour.Num)}] += total.Num
	}
	if len(sums) == 0 {
		return []string{"Insufficient time data to determine busiest and slowest periods."}
	}

	slots := make([]slot, 0, len(sums))
	for s := range sums {
		slots = append(slots, s)
	}
	sort.Slice(slots, func(i, j int) bool {
		di, dj := dataset.WeekdayIndex(slots[i].day), dataset.WeekdayIndex(slots[j].day)
		if di != dj {
			return di < dj
		}
		return slots[i].hour < slots[j].hour
	})

	busiest, slowest := slots[0], slots[0]
	for _, s := range slots[1:] {
		if sums[s] > sums[busiest] {
			busiest = s
		}
		if sums[s] < sums[slowest] {
			slowest = s
		}
	}

	return []string{
		fmt.Sprintf("Busiest period: %s at %d:00. Ensure adequate staffing then.", busiest.day, busiest.hour),
		fmt.Sprintf("Slowest period: %s at %d:00. Consider off-peak discounts.", slowest.day, slowest.hour),
	}
}

// correlations reports the strongest pairwise Pearson correlations among
// numeric columns, at most correlationTopPairs of them.
func correlations(d *dataset.Dataset) []string {
	cols := usableNumericColumns(d)
	if len(cols) < 2 {
		return []string{"Insufficient numeric data for correlation analysis."}
	}

	type pair struct {
		a, b string
		r    float64
	}
	var pairs []pair
	for i := 0; i < len(cols); i++ {
		for j := i + 1; j < len(cols); j++ {
			r, ok := pairwiseCorrelation(d, cols[i], cols[j])
			if !ok || math.Abs(r) < correlationFloor {
				continue
			}
			pairs = append(pairs, pair{cols[i], cols[j], r})
		}
	}
	if len(pairs) == 0 {
		return []string{"No significant correlations found between numeric variables."}
	}

	sort.Slice(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].r), math.Abs(pairs[j].r)
		if ai != aj {
			return ai > aj
		}
		if pairs[i].a != pairs[j].a {
			return pairs[i].a < pairs[j].a
		}
		return pairs[i].b < pairs[j].b
	})
	if len(pairs) > correlationTopPairs {
		pairs = pairs[:correlationTopPairs]
	}

	msgs := make([]string, 0, len(pairs))
	for _, p := range pairs {
		direction := "positively"
		if p.r < 0 {
			direction = "negatively"
		}
		msgs = append(msgs, fmt.Sprintf(
			"%s and %s are %s correlated (r = %.2f). Consider exploring this relationship.",
			p.a, p.b, direction, p.r,
		))
	}
	return msgs
}

// usableNumericColumns keeps numeric columns with nonzero variance
func usableNumericColumns(d *dataset.Dataset) []string {
	var cols []string
	for _, col := range d.NumericColumns() {
		vals := finiteValues(d.Floats(col))
		if len(vals) < 2 {
			continue
		}
		if stat.StdDev(vals, nil) > 0 {
			cols = append(cols, col)
		}
	}
	return cols
}

// pairwiseCorrelation computes Pearson r over rows where both columns hold
// a numeric value.
func pairwiseCorrelation(d *dataset.Dataset, a, b string) (float64, bool) {
	var xs, ys []float64
	for _, row := range d.Rows {
		va, vb := row[a], row[b]
		if va.Kind != dataset.KindNumber || vb.Kind != dataset.KindNumber {
			continue
		}
		xs = append(xs, va.Num)
		ys = append(ys, vb.Num)
	}
	if len(xs) < 2 {
		return 0, false
	}
	if stat.StdDev(xs, nil) == 0 || stat.StdDev(ys, nil) == 0 {
		return 0, false
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) {
		return 0, false
	}
	return r, true
}

func finiteValues(vals []float64) []float64 {
	out := vals[:0:0]
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

// clusterTargeting emits a targeting message per cluster whose spend or
// basket size stands out against the overall means.
func clusterTargeting(d *dataset.Dataset) []string {
	if len(d.MissingColumns(dataset.ColCluster, dataset.ColTotal, dataset.ColQuantity)) > 0 {
		return []string{"Cluster profiles unavailable: no cluster assignments in the dataset."}
	}

	overallTotal := d.MeanOf(dataset.ColTotal)
	overallQty := d.MeanOf(dataset.ColQuantity)

	type agg struct {
		totalSum, qtySum float64
		count            int
	}
	groups := make(map[int]*agg)
	for _, row := range d.Rows {
		cl := row[dataset.ColCluster]
		total := row[dataset.ColTotal]
		qty := row[dataset.ColQuantity]
		if cl.Kind != dataset.KindNumber || total.Kind != dataset.KindNumber || qty.Kind != dataset.KindNumber {
			continue
		}
		g := groups[int(cl.Num)]
		if g == nil {
			g = &agg{}
			groups[int(cl.Num)] = g
		}
		g.totalSum += total.Num
		g.qtySum += qty.Num
		g.count++
	}
	if len(groups) == 0 {
		return []string{"Cluster profiles unavailable: no cluster assignments in the dataset."}
	}

	clusters := make([]int, 0, len(groups))
	for cl := range groups {
		clusters = append(clusters, cl)
	}
	sort.Ints(clusters)

	var msgs []string
	for _, cl := range clusters {
		g := groups[cl]
		avgSpend := g.totalSum / float64(g.count)
		avgQty := g.qtySum / float64(g.count)
		switch {
		case avgSpend > overallTotal*topSpenderRatio:
			msgs = append(msgs, fmt.Sprintf(
				"Cluster %d are your top spenders (avg spend %.0f). Consider VIP loyalty rewards.",
				cl, avgSpend,
			))
		case avgQty < overallQty*smallBasketRatio:
			msgs = append(msgs, fmt.Sprintf(
				"Cluster %d buys in small quantities (avg quantity %.1f). Offer bundle deals to increase basket size.",
				cl, avgQty,
			))
		}
	}
	return msgs
}

// forecastShortfall flags forecast dates whose prediction falls well below
// the forecast mean, naming at most shortfallMaxDates of them.
func forecastShortfall(fc forecast.Series) []string {
	if len(fc) == 0 {
		return nil
	}

	var sum float64
	for _, pt := range fc {
		sum += pt.Yhat
	}
	threshold := sum / float64(len(fc)) * shortfallRatio

	var dates []string
	for _, pt := range fc {
		if pt.Yhat < threshold {
			dates = append(dates, pt.DS.Format("2006-01-02"))
			if len(dates) == shortfallMaxDates {
				break
			}
		}
	}
	if len(dates) == 0 {
		return nil
	}

	return []string{fmt.Sprintf(
		"Forecast alert: sales may drop below %.0f on %s. Plan promotions for these periods.",
		threshold, strings.Join(dates, ", "),
	)}
}
