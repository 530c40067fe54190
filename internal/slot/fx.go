package slot

import (
	"github.com/tradecore/leadengine/internal/slot/service"
	"go.uber.org/fx"
)

var Module = fx.Module("slot",
	fx.Provide(service.NewService),
)
