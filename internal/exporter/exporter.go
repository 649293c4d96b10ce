// Package exporter renders a dataset as downloadable bytes: UTF-8 CSV or
// an XLSX workbook. Both are identity transforms over the current rows,
// header included, no analytics applied.
package exporter

import (
	"bytes"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"retailsight/internal/dataset"
	apierrors "retailsight/internal/errors"
)

const xlsxSheetName = "Sales Data"

// WriteCSV streams the dataset as CSV
func WriteCSV(d *dataset.Dataset, w io.Writer) error {
	if err := dataset.WriteCSV(d, w); err != nil {
		return apierrors.InternalError(fmt.Errorf("csv export: %w", err))
	}
	return nil
}

// WriteXLSX builds a single-sheet workbook from the dataset and streams
// it to the writer. Numbers and dates keep their native cell types so the
// sheet sorts and filters correctly.
func WriteXLSX(d *dataset.Dataset, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(xlsxSheetName)
	if err != nil {
		return apierrors.InternalError(fmt.Errorf("xlsx export: %w", err))
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return apierrors.InternalError(fmt.Errorf("xlsx export: %w", err))
	}

	for i, col := range d.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return apierrors.InternalError(fmt.Errorf("xlsx export: %w", err))
		}
		if err := f.SetCellValue(xlsxSheetName, cell, col); err != nil {
			return apierrors.InternalError(fmt.Errorf("xlsx export: %w", err))
		}
	}

	for r, row := range d.Rows {
		for i, col := range d.Columns {
			v := row[col]
			if v.IsMissing() {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(i+1, r+2)
			if err != nil {
				return apierrors.InternalError(fmt.Errorf("xlsx export: %w", err))
			}
			if err := f.SetCellValue(xlsxSheetName, cell, cellValue(v)); err != nil {
				return apierrors.InternalError(fmt.Errorf("xlsx export: %w", err))
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return apierrors.InternalError(fmt.Errorf("xlsx export: %w", err))
	}
	if _, err := io.Copy(w, bytes.NewReader(buf.Bytes())); err != nil {
		return apierrors.InternalError(fmt.Errorf("xlsx export: %w", err))
	}
	return nil
}

// cellValue maps a dataset cell onto an excelize-native value
func cellValue(v dataset.Value) interface{} {
	switch v.Kind {
	case dataset.KindNumber:
		return v.Num
	case dataset.KindDate:
		return v.Time.Format("2006-01-02")
	default:
		return v.Str
	}
}
