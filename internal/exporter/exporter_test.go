package exporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"retailsight/internal/dataset"
)

func exportFixture() *dataset.Dataset {
	d := dataset.New(dataset.ColDate, dataset.ColProductLine, dataset.ColTotal)
	d.Rows = append(d.Rows,
		dataset.Row{
			dataset.ColDate:        dataset.Date(time.Date(2023, 4, 15, 0, 0, 0, 0, time.UTC)),
			dataset.ColProductLine: dataset.String("Electronics"),
			dataset.ColTotal:       dataset.Number(123.45),
		},
		dataset.Row{
			dataset.ColDate:        dataset.Missing(),
			dataset.ColProductLine: dataset.String("Groceries"),
			dataset.ColTotal:       dataset.Number(50),
		},
	)
	return d
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(exportFixture(), &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Product line,Total", lines[0])
	assert.Equal(t, "2023-04-15,Electronics,123.45", lines[1])
	assert.Equal(t, ",Groceries,50", lines[2])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(exportFixture(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{xlsxSheetName}, f.GetSheetList())

	header, err := f.GetCellValue(xlsxSheetName, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Product line", header)

	total, err := f.GetCellValue(xlsxSheetName, "C2")
	require.NoError(t, err)
	assert.Equal(t, "123.45", total)

	// missing cells stay empty
	missing, err := f.GetCellValue(xlsxSheetName, "A3")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestWriteXLSX_EmptyDataset(t *testing.T) {
	d := dataset.New(dataset.ColTotal)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(d, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(xlsxSheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, dataset.ColTotal, header)
}
