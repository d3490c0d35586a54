// Package batch drives one monthly invoicing run: fetch usage, aggregate,
// map, confirm, submit. One customer's failure never stops the rest.
package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/nordial/invoicerun/internal/clock"
	"github.com/nordial/invoicerun/internal/config"
	"github.com/nordial/invoicerun/internal/order/aggregate"
	orderdomain "github.com/nordial/invoicerun/internal/order/domain"
	"github.com/nordial/invoicerun/internal/order/mapper"
	"github.com/nordial/invoicerun/internal/poweroffice"
	usagedomain "github.com/nordial/invoicerun/internal/usage/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Submitter is the slice of the PowerOffice client the runner needs.
type Submitter interface {
	CreateSalesOrder(ctx context.Context, order *orderdomain.SalesOrder) (*poweroffice.CreateOrderResult, error)
	SendOrderEmail(ctx context.Context, orderID int64, recipient string) error
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     config.Config
	Repo       usagedomain.Repository
	Aggregator *aggregate.Aggregator
	Mapper     *mapper.Mapper
	Submitter  Submitter
	Confirm    ConfirmFunc
}

type Runner struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clk        clock.Clock
	cfg        config.Config
	repo       usagedomain.Repository
	aggregator *aggregate.Aggregator
	mapper     *mapper.Mapper
	submitter  Submitter
	confirm    ConfirmFunc
}

func New(p Params) *Runner {
	return &Runner{
		db:         p.DB,
		log:        p.Log.Named("batch.runner"),
		genID:      p.GenID,
		clk:        p.Clock,
		cfg:        p.Config,
		repo:       p.Repo,
		aggregator: p.Aggregator,
		mapper:     p.Mapper,
		submitter:  p.Submitter,
		confirm:    p.Confirm,
	}
}

// Run executes one invoicing pass over the current billing period. Only a
// run-level failure (the usage fetch) is returned as an error; per-customer
// problems are logged and counted.
func (r *Runner) Run(ctx context.Context) error {
	runID := r.genID.Generate()
	period := usagedomain.PeriodOf(r.clk.Now())
	log := r.log.With(
		zap.String("run_id", runID.String()),
		zap.String("period", period.String()),
	)

	rows, err := r.repo.FetchRows(ctx, r.db, period)
	if err != nil {
		return fmt.Errorf("fetch usage rows: %w", err)
	}

	records := r.aggregator.Customers(rows)
	if len(records) == 0 {
		log.Info("no customers to invoice")
		return nil
	}
	log.Info("starting invoicing run", zap.Int("customers", len(records)))

	var submitted, skipped, failed int
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			log.Warn("run cancelled",
				zap.Int("submitted", submitted),
				zap.Int("skipped", skipped),
				zap.Int("failed", failed),
			)
			return err
		}

		clog := log.With(
			zap.Int64("system_id", rec.Customer.SystemID),
			zap.String("customer_no", rec.Customer.OrganizationNo),
		)

		order, err := r.mapper.Map(rec)
		switch {
		case errors.Is(err, orderdomain.ErrNoBillableLines):
			clog.Info("nothing to invoice, skipping customer")
			skipped++
			continue
		case errors.Is(err, orderdomain.ErrMissingCustomerNo):
			clog.Warn("customer has no organization number, skipping customer")
			skipped++
			continue
		case err != nil:
			clog.Error("mapping failed", zap.Error(err))
			failed++
			continue
		}

		order.Reference = "invoicerun-" + runID.String()

		clog.Info("sales order preview",
			zap.String("customer", rec.Customer.Name),
			zap.Int("lines", len(order.Lines)),
			zap.Float64("total", order.Total()),
		)

		if !r.confirm(rec.Customer, order) {
			clog.Info("submission declined, skipping customer")
			skipped++
			continue
		}

		result, err := r.submitter.CreateSalesOrder(ctx, order)
		if err != nil {
			clog.Error("sales order submission failed", zap.Error(err))
			failed++
			continue
		}
		submitted++

		if err := r.repo.MarkInvoiced(ctx, r.db, rec.Customer.SystemID, period); err != nil {
			// The order is already with the provider; flag loudly but keep going.
			clog.Error("could not mark usage as invoiced", zap.Error(err))
		}

		if r.cfg.OrderEmailTo != "" && result.ID != 0 {
			if err := r.submitter.SendOrderEmail(ctx, result.ID, r.cfg.OrderEmailTo); err != nil {
				clog.Warn("could not send order email", zap.Error(err))
			}
		}
	}

	log.Info("invoicing run finished",
		zap.Int("submitted", submitted),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
	return nil
}
