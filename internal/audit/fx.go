package audit

import (
	"github.com/tradecore/leadengine/internal/audit/repository"
	"github.com/tradecore/leadengine/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
