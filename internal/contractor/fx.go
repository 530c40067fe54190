package contractor

import (
	"github.com/tradecore/leadengine/internal/contractor/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("contractor",
	fx.Provide(repository.Provide),
)
