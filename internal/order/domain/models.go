// Package domain contains the aggregated per-customer billing records and
// the sales-order documents submitted to PowerOffice GO.
package domain

import (
	"errors"
	"time"
)

var (
	// ErrNoBillableLines means the customer had nothing to invoice this period.
	ErrNoBillableLines = errors.New("no_billable_lines")
	// ErrMissingCustomerNo means the customer lacks the provider-facing
	// organization number, so the order cannot be addressed.
	ErrMissingCustomerNo = errors.New("missing_customer_no")
)

// CustomerInfo identifies one customer across both systems.
type CustomerInfo struct {
	SystemID       int64
	OrganizationNo string
	Name           string
}

// ProductLine is one subscribed product. Quantity and UnitPrice stay nil
// when the source row had no value; zero-fallback happens at mapping time.
type ProductLine struct {
	Nr          int64
	Description string
	Quantity    *float64
	UnitPrice   *float64
}

// TrafficInfo is the monthly metered-usage aggregate. At most one per
// customer per period.
type TrafficInfo struct {
	Price    *float64
	Quantity *float64
}

// CustomerRecord is the aggregated view of one customer's billable usage:
// identity, deduplicated subscribed products in first-seen order, and the
// optional traffic aggregate.
type CustomerRecord struct {
	Customer CustomerInfo
	Products []ProductLine
	Traffic  *TrafficInfo
}

// SalesOrderLine is one line of the submitted order. UnitPrice is omitted
// from the wire payload when nil; PowerOffice then derives the price from
// the product code.
type SalesOrderLine struct {
	ProductCode string   `json:"productCode"`
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	UnitPrice   *float64 `json:"unitPrice,omitempty"`
}

// SalesOrder is the document submitted to PowerOffice, one per customer.
type SalesOrder struct {
	CustomerNo   string           `json:"customerNo"`
	OrderDate    time.Time        `json:"orderDate"`
	DeliveryDate time.Time        `json:"deliveryDate"`
	Reference    string           `json:"reference,omitempty"`
	Lines        []SalesOrderLine `json:"lines"`
}

// Total sums quantity times unit price over the priced lines. Lines whose
// price the provider computes server-side contribute nothing.
func (o *SalesOrder) Total() float64 {
	var total float64
	for _, line := range o.Lines {
		if line.UnitPrice != nil {
			total += line.Quantity * *line.UnitPrice
		}
	}
	return total
}
