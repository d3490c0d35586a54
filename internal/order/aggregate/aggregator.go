// Package aggregate folds denormalized usage rows into one record per customer.
package aggregate

import (
	"fmt"

	orderdomain "github.com/nordial/invoicerun/internal/order/domain"
	usagedomain "github.com/nordial/invoicerun/internal/usage/domain"
	"go.uber.org/zap"
)

type Aggregator struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Aggregator {
	return &Aggregator{log: log.Named("order.aggregate")}
}

// Customers groups rows by system id into CustomerRecords, in first-seen
// order. Rows are not assumed pre-sorted. Per customer: products are unique
// by product number with the first occurrence winning, and the traffic
// aggregate is set once from the first row carrying traffic data and never
// overwritten.
func (a *Aggregator) Customers(rows []usagedomain.UsageRow) []orderdomain.CustomerRecord {
	byID := make(map[int64]*customerState)
	var ids []int64

	for _, row := range rows {
		if row.SystemID == 0 {
			// Upstream filtering should prevent this; drop the row rather
			// than invent a customer.
			a.log.Warn("skipping usage row without system id")
			continue
		}

		state, ok := byID[row.SystemID]
		if !ok {
			state = &customerState{
				record: orderdomain.CustomerRecord{
					Customer: orderdomain.CustomerInfo{
						SystemID:       row.SystemID,
						OrganizationNo: row.OrganizationNo,
						Name:           customerName(row.OrganizationNo),
					},
				},
				seen: make(map[int64]struct{}),
			}
			byID[row.SystemID] = state
			ids = append(ids, row.SystemID)
		}

		if row.ProductNr != nil {
			if _, dup := state.seen[*row.ProductNr]; !dup {
				state.seen[*row.ProductNr] = struct{}{}
				state.record.Products = append(state.record.Products, orderdomain.ProductLine{
					Nr:          *row.ProductNr,
					Description: row.ProductDescription,
					Quantity:    row.ProductQuantity,
					UnitPrice:   row.ProductPrice,
				})
			}
		}

		if state.record.Traffic == nil && (row.TrafficPrice != nil || row.TrafficQuantity != nil) {
			state.record.Traffic = &orderdomain.TrafficInfo{
				Price:    row.TrafficPrice,
				Quantity: row.TrafficQuantity,
			}
		}
	}

	records := make([]orderdomain.CustomerRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, byID[id].record)
	}
	return records
}

type customerState struct {
	record orderdomain.CustomerRecord
	seen   map[int64]struct{}
}

func customerName(organizationNo string) string {
	if organizationNo == "" {
		return "Customer (Org No: unknown)"
	}
	return fmt.Sprintf("Customer (Org No: %s)", organizationNo)
}
