// Package mapper turns an aggregated customer record into a PowerOffice
// sales order, applying the provider billing rules.
package mapper

import (
	"github.com/nordial/invoicerun/internal/clock"
	"github.com/nordial/invoicerun/internal/config"
	orderdomain "github.com/nordial/invoicerun/internal/order/domain"
	"go.uber.org/zap"
)

type Mapper struct {
	cfg config.MappingConfig
	clk clock.Clock
	log *zap.Logger
}

func New(cfg config.MappingConfig, clk clock.Clock, log *zap.Logger) *Mapper {
	return &Mapper{
		cfg: cfg,
		clk: clk,
		log: log.Named("order.mapper"),
	}
}

// Map builds the sales order for one customer. Expected business conditions
// never abort the batch: an unmapped product skips that line with a warning,
// and a customer with nothing billable or no organization number yields
// ErrNoBillableLines / ErrMissingCustomerNo instead of a document.
func (m *Mapper) Map(rec orderdomain.CustomerRecord) (*orderdomain.SalesOrder, error) {
	var (
		lines     []orderdomain.SalesOrderLine
		hasDialer bool
	)

	for _, product := range rec.Products {
		if product.Nr == m.cfg.DialerProductNr {
			hasDialer = true
		}

		code, ok := m.cfg.CodeFor(product.Nr)
		if !ok || code == "" {
			m.log.Warn("no product code mapping, skipping line",
				zap.Int64("system_id", rec.Customer.SystemID),
				zap.Int64("product_nr", product.Nr),
				zap.String("description", product.Description),
			)
			continue
		}

		// The predictive dialer is billed by metered traffic, not by its
		// subscription quantity.
		quantity := deref(product.Quantity)
		if product.Nr == m.cfg.DialerProductNr && rec.Traffic != nil && rec.Traffic.Price != nil {
			quantity = deref(rec.Traffic.Quantity)
		}

		var unitPrice *float64
		if !m.cfg.OmitPrice(code) {
			unitPrice = product.UnitPrice
		}

		lines = append(lines, orderdomain.SalesOrderLine{
			ProductCode: code,
			Description: product.Description,
			Quantity:    quantity,
			UnitPrice:   unitPrice,
		})
	}

	// Customers with metered traffic but no dialer subscription still get a
	// dialer line, priced server-side from the product code.
	if !hasDialer && rec.Traffic != nil && deref(rec.Traffic.Quantity) > 0 {
		lines = append(lines, orderdomain.SalesOrderLine{
			ProductCode: m.cfg.FallbackDialerCode,
			Description: m.cfg.FallbackDialerDescription,
			Quantity:    deref(rec.Traffic.Quantity),
		})
	}

	// Traffic is billed as a lump sum: one line, quantity 1.
	if rec.Traffic != nil && rec.Traffic.Price != nil {
		price := *rec.Traffic.Price
		lines = append(lines, orderdomain.SalesOrderLine{
			ProductCode: m.cfg.TrafficCode,
			Description: m.cfg.TrafficDescription,
			Quantity:    1,
			UnitPrice:   &price,
		})
	}

	if len(lines) == 0 {
		return nil, orderdomain.ErrNoBillableLines
	}
	if rec.Customer.OrganizationNo == "" {
		return nil, orderdomain.ErrMissingCustomerNo
	}

	now := m.clk.Now()
	return &orderdomain.SalesOrder{
		CustomerNo:   rec.Customer.OrganizationNo,
		OrderDate:    now,
		DeliveryDate: now,
		Lines:        lines,
	}, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
