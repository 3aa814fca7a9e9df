// Package reporting builds read-side aggregations over the billing ledger.
package reporting

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dentpm/dentpm/internal/domain/ledger"
)

// Bucket labels, ordered youngest to oldest.
const (
	BucketCurrent = "0-30"
	Bucket3160    = "31-60"
	Bucket6190    = "61-90"
	BucketOver90  = "90+"
)

var bucketOrder = []string{BucketCurrent, Bucket3160, Bucket6190, BucketOver90}

// AgingBucket is one column of the report.
type AgingBucket struct {
	Label string          `json:"label"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// AgingReport summarizes receivables by how long charges have been
// outstanding as of a reference date.
type AgingReport struct {
	AsOf    time.Time       `json:"as_of"`
	Buckets []AgingBucket   `json:"buckets"`
	Total   decimal.Decimal `json:"total"`
}

// AccountAgingReport is the per-account variant.
type AccountAgingReport struct {
	AccountID uuid.UUID `json:"account_id"`
	AgingReport
}

// BuildAgingReport buckets unpaid invoice lines by age. Age is the count of
// whole days from the service date to asOf, both truncated to midnight; a
// service date on or after asOf counts as current. Lines marked paid are
// excluded; partially paid lines age at full amount, since per-line paid
// portions are not tracked.
func BuildAgingReport(lines []*ledger.InvoiceLine, asOf time.Time) AgingReport {
	totals := make(map[string]*AgingBucket, len(bucketOrder))
	for _, label := range bucketOrder {
		totals[label] = &AgingBucket{Label: label, Total: decimal.Zero}
	}

	asOfDay := truncateToDay(asOf)
	grand := decimal.Zero
	for _, line := range lines {
		if line.Status == ledger.LineStatusPaid {
			continue
		}
		ageDays := int(asOfDay.Sub(truncateToDay(line.ServiceDate)).Hours() / 24)
		bucket := totals[bucketFor(ageDays)]
		bucket.Total = bucket.Total.Add(line.Amount)
		bucket.Count++
		grand = grand.Add(line.Amount)
	}

	buckets := make([]AgingBucket, 0, len(bucketOrder))
	for _, label := range bucketOrder {
		buckets = append(buckets, *totals[label])
	}
	return AgingReport{AsOf: asOfDay, Buckets: buckets, Total: grand}
}

func bucketFor(ageDays int) string {
	switch {
	case ageDays <= 30:
		return BucketCurrent
	case ageDays <= 60:
		return Bucket3160
	case ageDays <= 90:
		return Bucket6190
	default:
		return BucketOver90
	}
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
