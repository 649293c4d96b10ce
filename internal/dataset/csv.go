package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// fallbackEncodings are tried in order when the requested encoding fails to
// produce valid UTF-8. Mirrors the upload contract: utf-8 first, then the
// common Latin single-byte encodings.
var fallbackEncodings = []string{"latin1", "iso-8859-1", "cp1252"}

// ParseCSV decodes raw CSV bytes into a Dataset. encodingHint names the
// expected text encoding (default utf-8); when decoding fails the Latin
// fallbacks are tried before giving up. Numeric-looking cells are typed as
// numbers, empty cells as missing, everything else as strings. Dates stay
// textual until the cleaning stage parses them.
func ParseCSV(raw []byte, encodingHint string) (*Dataset, error) {
	decoded, err := decodeBytes(raw, encodingHint)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv has no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	d := New(columns...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if i >= len(record) {
				row[col] = Missing()
				continue
			}
			row[col] = parseCell(record[i])
		}
		d.Rows = append(d.Rows, row)
	}

	return d, nil
}

// parseCell types a raw CSV cell
func parseCell(raw string) Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Missing()
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Number(f)
	}
	return String(s)
}

// decodeBytes converts raw bytes to UTF-8 using the hint, then fallbacks
func decodeBytes(raw []byte, encodingHint string) ([]byte, error) {
	hint := strings.ToLower(strings.TrimSpace(encodingHint))
	if hint == "" {
		hint = "utf-8"
	}

	tried := append([]string{hint}, fallbackEncodings...)
	for _, name := range tried {
		if name == "utf-8" || name == "utf8" {
			if utf8.Valid(raw) {
				return raw, nil
			}
			continue
		}
		enc := lookupEncoding(name)
		if enc == nil {
			continue
		}
		decoded, _, err := transform.Bytes(enc.NewDecoder(), raw)
		if err == nil {
			return decoded, nil
		}
	}

	return nil, fmt.Errorf("could not decode csv bytes with encoding %q or fallbacks", encodingHint)
}

// lookupEncoding maps the supported encoding hints to decoders
func lookupEncoding(name string) encoding.Encoding {
	switch name {
	case "latin1", "iso-8859-1", "iso8859-1":
		return charmap.ISO8859_1
	case "cp1252", "windows-1252":
		return charmap.Windows1252
	default:
		return nil
	}
}

// WriteCSV writes the dataset as UTF-8 CSV with a header row, one row per
/// record. An identity transform for export: values render exactly as the
// Records view does, with missing cells as empty fields.
func WriteCSV(d *Dataset, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(d.Columns); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	record := make([]string, len(d.Columns))
	for _, row := range d.Rows {
		for i, col := range d.Columns {
			record[i] = cellString(row[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// cellString renders a cell for CSV output
func cellString(v Value) string {
	switch v.Kind {
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case KindDate:
		return v.Time.Format("2006-01-02")
	case KindString:
		return v.Str
	default:
		return ""
	}
}
