package dataset

import (
	"log/slog"
	"strings"
)

// DeriveFeatures runs the feature-derivation stage. Profit and Profit
// Margin (%) are computed from Total, Quantity and Unit price; when any of
// those columns is absent the stage logs which ones and returns the input
// unchanged. A zero Total makes the margin undefined: the cell is left
// missing so downstream aggregates exclude it instead of dividing by zero.
func DeriveFeatures(d *Dataset, logger *slog.Logger) *Dataset {
	if logger == nil {
		logger = slog.Default()
	}

	missing := d.MissingColumns(ColTotal, ColQuantity, ColUnitPrice)
	if len(missing) > 0 {
		logger.Warn("skipping feature derivation, columns missing",
			slog.String("columns", strings.Join(missing, ", ")))
		return d
	}

	out := d.Clone()
	out.AddColumn(ColProfit)
	out.AddColumn(ColProfitMargin)

	for _, row := range out.Rows {
		total := row[ColTotal]
		qty := row[ColQuantity]
		price := row[ColUnitPrice]
		if total.Kind != KindNumber || qty.Kind != KindNumber || price.Kind != KindNumber {
			row[ColProfit] = Missing()
			row[ColProfitMargin] = Missing()
			continue
		}

		profit := total.Num - qty.Num*price.Num
		row[ColProfit] = Number(profit)

		if total.Num == 0 {
			row[ColProfitMargin] = Missing()
			continue
		}
		row[ColProfitMargin] = Number(profit / total.Num * 100)
	}

	return out
}
