package dataset

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order when parsing the Date column
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"02-01-2006",
}

// Clean runs the cleaning stage: removes exact-duplicate rows, forward-fills
// missing values per column (no back-fill; a leading gap stays missing),
// parses the Date column into calendar dates with unparseable values coerced
// to missing, and derives Day (weekday name) and Hour (from HH:MM-style Time
// values). Clean never fails: a column that cannot be processed is left
// alone and every other column still goes through. Idempotent.
func Clean(d *Dataset, logger *slog.Logger) *Dataset {
	if logger == nil {
		logger = slog.Default()
	}
	out := d.Clone()

	before := out.Len()
	dropDuplicates(out)
	if dropped := before - out.Len(); dropped > 0 {
		logger.Debug("removed duplicate rows", slog.Int("dropped", dropped))
	}

	forwardFill(out)

	if out.HasColumn(ColDate) {
		parseDates(out, logger)
		deriveDay(out)
	}
	if out.HasColumn(ColTime) {
		deriveHour(out)
	}

	return out
}

// dropDuplicates removes rows whose every cell matches an earlier row
func dropDuplicates(d *Dataset) {
	seen := make(map[string]bool, len(d.Rows))
	kept := d.Rows[:0]
	for _, row := range d.Rows {
		key := rowFingerprint(d.Columns, row)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, row)
	}
	d.Rows = kept
}

// rowFingerprint builds a stable key over all cells of a row
func rowFingerprint(columns []string, row Row) string {
	var b strings.Builder
	for _, c := range columns {
		v := row[c]
		switch v.Kind {
		case KindNumber:
			b.WriteString("n:")
			b.WriteString(strconv.FormatFloat(v.Num, 'g', -1, 64))
		case KindDate:
			b.WriteString("d:")
			b.WriteString(v.Time.Format("2006-01-02"))
		case KindString:
			b.WriteString("s:")
			b.WriteString(v.Str)
		default:
			b.WriteString("_")
		}
		b.WriteByte('\x1f')
	}
	return b.String()
}

// forwardFill propagates the last valid value down each column. A missing
// value before any valid one remains missing.
func forwardFill(d *Dataset) {
	for _, col := range d.Columns {
		var last Value
		haveLast := false
		for _, row := range d.Rows {
			v := row[col]
			if v.IsMissing() {
				if haveLast {
					row[col] = last
				}
				continue
			}
			last = v
			haveLast = true
		}
	}
}

// parseDates coerces the Date column to calendar dates, missing on failure
func parseDates(d *Dataset, logger *slog.Logger) {
	failures := 0
	for _, row := range d.Rows {
		v := row[ColDate]
		switch v.Kind {
		case KindDate:
			// already parsed by an earlier clean
		case KindString:
			if t, ok := parseDate(v.Str); ok {
				row[ColDate] = Date(t)
			} else {
				row[ColDate] = Missing()
				failures++
			}
		case KindNumber:
			row[ColDate] = Missing()
			failures++
		}
	}
	if failures > 0 {
		logger.Warn("coerced unparseable dates to missing", slog.Int("rows", failures))
	}
}

// parseDate tries the known layouts
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// deriveDay sets the weekday name for every row with a parsed date
func deriveDay(d *Dataset) {
	d.AddColumn(ColDay)
	for _, row := range d.Rows {
		if v := row[ColDate]; v.Kind == KindDate {
			row[ColDay] = String(v.Time.Weekday().String())
		} else if _, ok := row[ColDay]; !ok {
			row[ColDay] = Missing()
		}
	}
}

// deriveHour parses HH:MM-style Time values into an Hour column in [0,23].
// Failures coerce to missing; later stages default missing hours to 0 where
// they need a bucket.
func deriveHour(d *Dataset) {
	d.AddColumn(ColHour)
	for _, row := range d.Rows {
		v := row[ColTime]
		if v.Kind != KindString {
			if _, ok := row[ColHour]; !ok {
				row[ColHour] = Missing()
			}
			continue
		}
		if h, ok := parseHour(v.Str); ok {
			row[ColHour] = Number(float64(h))
		} else {
			row[ColHour] = Missing()
		}
	}
}

// parseHour extracts the hour from "HH:MM" or "HH:MM:SS" style strings
func parseHour(s string) (int, bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) < 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

// Weekdays in calendar order, used for stable day bucketing
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayIndex returns the position of a weekday name, -1 if unknown
func WeekdayIndex(day string) int {
	for i, d := range Weekdays {
		if d == day {
			return i
		}
	}
	return -1
}

// SortRowsByDate orders rows date-ascending, missing dates last. Used by
// stages that need a chronological view without re-sorting cell maps.
func SortRowsByDate(d *Dataset) {
	sort.SliceStable(d.Rows, func(i, j int) bool {
		vi, vj := d.Rows[i][ColDate], d.Rows[j][ColDate]
		if vi.Kind != KindDate {
			return false
		}
		if vj.Kind != KindDate {
			return true
		}
		return vi.Time.Before(vj.Time)
	})
}

// FormatHour renders an hour bucket like "13:00"
func FormatHour(h int) string {
	return fmt.Sprintf("%d:00", h)
}
