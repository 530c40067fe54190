package job

import (
	"github.com/tradecore/leadengine/internal/job/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("job",
	fx.Provide(repository.Provide),
)
