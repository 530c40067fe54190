package admin

import (
	"github.com/tradecore/leadengine/internal/admin/service"
	"go.uber.org/fx"
)

var Module = fx.Module("admin",
	fx.Provide(service.NewService),
)
