package access

import (
	"github.com/tradecore/leadengine/internal/access/repository"
	"github.com/tradecore/leadengine/internal/access/service"
	"go.uber.org/fx"
)

var Module = fx.Module("access",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
