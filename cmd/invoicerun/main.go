package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/nordial/invoicerun/internal/batch"
	"github.com/nordial/invoicerun/internal/clock"
	"github.com/nordial/invoicerun/internal/config"
	"github.com/nordial/invoicerun/internal/logger"
	"github.com/nordial/invoicerun/internal/order"
	"github.com/nordial/invoicerun/internal/poweroffice"
	"github.com/nordial/invoicerun/internal/usage"
	"github.com/nordial/invoicerun/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,

		usage.Module,
		order.Module,
		poweroffice.Module,
		batch.Module,

		fx.Invoke(RunBatch),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// RunBatch executes one invoicing pass and shuts the app down when it
// completes. This is a batch job, not a service.
func RunBatch(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *batch.Runner, log *zap.Logger) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				defer func() { _ = shutdowner.Shutdown() }()
				if err := runner.Run(runCtx); err != nil {
					log.Error("invoicing run aborted", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}
