package dataset

import (
	"time"
)

// AllValues is the sentinel meaning "do not filter on this criterion"
const AllValues = "All"

// DateRange is an inclusive calendar-date interval
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Criteria is the declarative filter set applied to a cleaned dataset.
// Zero-value and "All" criteria are identity; composition is conjunctive.
type Criteria struct {
	Category     string     `json:"category,omitempty"`
	CustomerType string     `json:"customer_type,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	DateRange    *DateRange `json:"-"`
}

// ParseDateRange converts a [start, end] string pair into a DateRange.
// Invalid or incomplete bounds yield nil: the date filter is skipped, never
// a request failure.
func ParseDateRange(bounds []string) *DateRange {
	if len(bounds) != 2 || bounds[0] == "" || bounds[1] == "" {
		return nil
	}
	start, okStart := parseDate(bounds[0])
	end, okEnd := parseDate(bounds[1])
	if !okStart || !okEnd || end.Before(start) {
		return nil
	}
	return &DateRange{Start: start, End: end}
}

// Active reports whether any criterion would restrict rows
func (c Criteria) Active() bool {
	return isActive(c.Category) || isActive(c.CustomerType) || isActive(c.Gender) || c.DateRange != nil
}

func isActive(v string) bool { return v != "" && v != AllValues }

// Filter applies the criteria to the dataset, producing a sub-view. Each
// active criterion restricts rows by exact match on its column; a criterion
// whose column is absent is skipped silently. Date comparison always uses
// the parsed date representation, inclusive on both bounds. With no active
// criteria the input is returned unchanged (same backing rows). The result
// may be empty; callers treat that as a distinct reportable condition.
func Filter(d *Dataset, c Criteria) *Dataset {
	if d.Empty() || !c.Active() {
		return d
	}

	out := &Dataset{Columns: append([]string(nil), d.Columns...)}
	for _, row := range d.Rows {
		if !matches(d, row, c) {
			continue
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func matches(d *Dataset, row Row, c Criteria) bool {
	if isActive(c.Category) && d.HasColumn(ColProductLine) {
		if !stringEquals(row[ColProductLine], c.Category) {
			return false
		}
	}
	if isActive(c.CustomerType) && d.HasColumn(ColCustomerType) {
		if !stringEquals(row[ColCustomerType], c.CustomerType) {
			return false
		}
	}
	if isActive(c.Gender) && d.HasColumn(ColGender) {
		if !stringEquals(row[ColGender], c.Gender) {
			return false
		}
	}
	if c.DateRange != nil && d.HasColumn(ColDate) {
		v := row[ColDate]
		if v.Kind != KindDate {
			return false
		}
		if v.Time.Before(c.DateRange.Start) || v.Time.After(c.DateRange.End) {
			return false
		}
	}
	return true
}

func stringEquals(v Value, want string) bool {
	return v.Kind == KindString && v.Str == want
}
