package dataset

import (
	"fmt"
	"time"
)

// Sample data shape: deterministic, so the demo experience and the tests see
// identical numbers on every run.
var (
	sampleProductLines  = []string{"Electronics", "Food and beverages", "Health and beauty", "Sports and travel", "Home and lifestyle"}
	samplePayments      = []string{"Cash", "Credit card", "Ewallet"}
	sampleGenders       = []string{"Male", "Female"}
	sampleCustomerTypes = []string{"Member", "Normal"}
)

// SampleSize is the row count of the synthesized dataset
const SampleSize = 100

// Sample synthesizes the deterministic demo dataset used when no upload
// exists: 100 rows of consecutive days from 2023-01-01, Total rising
// linearly 100 to 1000, Quantity cycling 1..10, and evenly cycled
// categorical columns. Supplied by the data service as the pipeline's
// no-active-dataset fallback; the pipeline core itself never synthesizes
// data.
func Sample() *Dataset {
	d := New(
		ColInvoiceID, ColDate, ColTime, ColTotal, ColQuantity,
		ColUnitPrice, ColProductLine, ColPayment, ColGender, ColCustomerType,
	)

	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	n := SampleSize
	for i := 0; i < n; i++ {
		hour := 8 + i%12
		minute := (i * 5) % 60
		row := Row{
			ColInvoiceID:    String(fmt.Sprintf("INV-%d", i+1)),
			ColDate:         String(start.AddDate(0, 0, i).Format("2006-01-02")),
			ColTime:         String(fmt.Sprintf("%d:%02d", hour, minute)),
			ColTotal:        Number(round2(100 + 900*float64(i)/float64(n-1))),
			ColQuantity:     Number(float64(i%10 + 1)),
			ColUnitPrice:    Number(round2(10 + 90*float64(i)/float64(n-1))),
			ColProductLine:  String(sampleProductLines[i%len(sampleProductLines)]),
			ColPayment:      String(samplePayments[i%len(samplePayments)]),
			ColGender:       String(sampleGenders[i%len(sampleGenders)]),
			ColCustomerType: String(sampleCustomerTypes[i%len(sampleCustomerTypes)]),
		}
		d.Rows = append(d.Rows, row)
	}

	return d
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
