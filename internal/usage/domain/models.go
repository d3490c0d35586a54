// Package domain contains the raw billable-usage rows read from the legacy
// billing database.
package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Period is one monthly billing window.
type Period struct {
	Year  int
	Month time.Month
}

// PeriodOf returns the billing period containing t.
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

// Bounds returns the half-open [start, end) interval of the period in UTC.
func (p Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func (p Period) String() string {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

// UsageRow is one denormalized row from the customer/product/traffic join.
// Product and traffic columns are nil when the joined table contributed
// nothing for that row.
type UsageRow struct {
	SystemID           int64
	OrganizationNo     string
	ProductNr          *int64
	ProductDescription string
	ProductQuantity    *float64
	ProductPrice       *float64
	TrafficPrice       *float64
	TrafficQuantity    *float64
}

// Repository reads billable usage for a period. Rows for customers without
// an organization number are excluded in SQL, not downstream.
type Repository interface {
	FetchRows(ctx context.Context, db *gorm.DB, period Period) ([]UsageRow, error)
	FetchRowsForCustomer(ctx context.Context, db *gorm.DB, systemID int64, period Period) ([]UsageRow, error)
	MarkInvoiced(ctx context.Context, db *gorm.DB, systemID int64, period Period) error
}
