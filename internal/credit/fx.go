package credit

import (
	"github.com/tradecore/leadengine/internal/credit/repository"
	"github.com/tradecore/leadengine/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
