package poweroffice

import "go.uber.org/fx"

var Module = fx.Module("poweroffice.client",
	fx.Provide(New),
)
