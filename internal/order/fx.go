package order

import (
	"github.com/nordial/invoicerun/internal/order/aggregate"
	"github.com/nordial/invoicerun/internal/order/mapper"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(
		aggregate.New,
		mapper.New,
	),
)
