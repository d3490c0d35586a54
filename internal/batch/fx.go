package batch

import (
	"github.com/nordial/invoicerun/internal/config"
	"github.com/nordial/invoicerun/internal/poweroffice"
	"go.uber.org/fx"
)

func provideSubmitter(c *poweroffice.Client) Submitter {
	return c
}

func provideConfirm(cfg config.Config) ConfirmFunc {
	if cfg.BatchAutoConfirm {
		return AutoConfirm
	}
	return NewStdinConfirm()
}

var Module = fx.Module("batch.runner",
	fx.Provide(
		provideSubmitter,
		provideConfirm,
		New,
	),
)
