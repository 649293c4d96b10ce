// Package dataset holds the in-memory tabular model every analytics stage
// operates on, together with the cleaning, filtering and feature-derivation
// stages of the pipeline. A Dataset is built once per request from uploaded
// CSV bytes, transformed in memory, and discarded at the end of the request.
package dataset

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Recognized column names. All are optional except where a stage requires
// them; stage contracts name the columns they need.
const (
	ColInvoiceID    = "Invoice ID"
	ColDate         = "Date"
	ColTime         = "Time"
	ColTotal        = "Total"
	ColQuantity     = "Quantity"
	ColUnitPrice    = "Unit price"
	ColProductLine  = "Product line"
	ColPayment      = "Payment"
	ColGender       = "Gender"
	ColCustomerType = "Customer type"

	// Derived columns
	ColDay          = "Day"
	ColHour         = "Hour"
	ColProfit       = "Profit"
	ColProfitMargin = "Profit Margin (%)"
	ColCluster      = "Cluster"
	ColChurn        = "Churn"
)

// Kind discriminates the value stored in a cell
type Kind int

const (
	KindMissing Kind = iota
	KindString
	KindNumber
	KindDate
)

// Value is a single typed cell. Missing values carry KindMissing.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Time time.Time
}

// Missing returns the missing-value sentinel
func Missing() Value { return Value{Kind: KindMissing} }

// String builds a string cell
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number builds a numeric cell
func Number(f float64) Value { return Value{Kind: KindNumber, Num: f} }

// Date builds a calendar-date cell
func Date(t time.Time) Value { return Value{Kind: KindDate, Time: t} }

// IsMissing reports whether the cell holds no value
func (v Value) IsMissing() bool { return v.Kind == KindMissing }

// Row is one record keyed by column name
type Row map[string]Value

// Dataset is an ordered tabular collection of rows with named columns
type Dataset struct {
	Columns []string
	Rows    []Row
}

// New creates an empty dataset with the given column order
func New(columns ...string) *Dataset {
	return &Dataset{Columns: columns}
}

// Len returns the number of rows
func (d *Dataset) Len() int { return len(d.Rows) }

// Empty reports whether the dataset has no rows
func (d *Dataset) Empty() bool { return len(d.Rows) == 0 }

// HasColumn reports whether the named column exists
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// MissingColumns returns the subset of names absent from the dataset
func (d *Dataset) MissingColumns(names ...string) []string {
	var missing []string
	for _, n := range names {
		if !d.HasColumn(n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// AddColumn registers a column name if not already present
func (d *Dataset) AddColumn(name string) {
	if !d.HasColumn(name) {
		d.Columns = append(d.Columns, name)
	}
}

// Clone returns a deep copy; stages never mutate their input
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{Columns: append([]string(nil), d.Columns...)}
	out.Rows = make([]Row, len(d.Rows))
	for i, row := range d.Rows {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.Rows[i] = cp
	}
	return out
}

// Floats extracts a column as float64s, NaN where the cell is missing or
// non-numeric. The slice length always equals the row count.
func (d *Dataset) Floats(col string) []float64 {
	out := make([]float64, len(d.Rows))
	for i, row := range d.Rows {
		v := row[col]
		if v.Kind == KindNumber {
			out[i] = v.Num
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// NumericColumns returns the columns holding at least one numeric value,
// in dataset column order.
func (d *Dataset) NumericColumns() []string {
	var cols []string
	for _, c := range d.Columns {
		for _, row := range d.Rows {
			if row[c].Kind == KindNumber {
				cols = append(cols, c)
				break
			}
		}
	}
	return cols
}

// ColumnTypes infers a coarse type label per column for API payloads
func (d *Dataset) ColumnTypes() map[string]string {
	types := make(map[string]string, len(d.Columns))
	for _, c := range d.Columns {
		types[c] = "object"
		for _, row := range d.Rows {
			switch row[c].Kind {
			case KindNumber:
				types[c] = "float64"
			case KindDate:
				types[c] = "datetime64"
			case KindString:
				types[c] = "object"
			default:
				continue
			}
			break
		}
	}
	return types
}

// Records renders up to limit rows as JSON-friendly maps. Dates format as
// YYYY-MM-DD, missing cells as nil. limit <= 0 means all rows.
func (d *Dataset) Records(limit int) []map[string]interface{} {
	n := len(d.Rows)
	if limit > 0 && limit < n {
		n = limit
	}
	records := make([]map[string]interface{}, n)
	for i := 0; i < n; i++ {
		rec := make(map[string]interface{}, len(d.Columns))
		for _, c := range d.Columns {
			rec[c] = cellValue(d.Rows[i][c])
		}
		records[i] = rec
	}
	return records
}

func cellValue(v Value) interface{} {
	switch v.Kind {
	case KindNumber:
		if math.IsNaN(v.Num) || math.IsInf(v.Num, 0) {
			return nil
		}
		return v.Num
	case KindDate:
		return v.Time.Format("2006-01-02")
	case KindString:
		return v.Str
	default:
		return nil
	}
}

// ColumnSummary holds per-column summary statistics
type ColumnSummary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Summary computes count/mean/std/min/max for every numeric column,
// skipping missing and non-finite cells.
func (d *Dataset) Summary() map[string]ColumnSummary {
	out := make(map[string]ColumnSummary)
	for _, c := range d.NumericColumns() {
		var vals []float64
		for _, f := range d.Floats(c) {
			if !math.IsNaN(f) && !math.IsInf(f, 0) {
				vals = append(vals, f)
			}
		}
		if len(vals) == 0 {
			continue
		}
		sorted := append([]float64(nil), vals...)
		sort.Float64s(sorted)
		out[c] = ColumnSummary{
			Count: len(vals),
			Mean:  stat.Mean(vals, nil),
			Std:   stat.StdDev(vals, nil),
			Min:   sorted[0],
			Max:   sorted[len(sorted)-1],
		}
	}
	return out
}

// MeanOf averages the finite numeric values of a column, NaN when none exist
func (d *Dataset) MeanOf(col string) float64 {
	var vals []float64
	for _, f := range d.Floats(col) {
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}
