package main

import (
	"os"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/tradecore/leadengine/internal/access"
	"github.com/tradecore/leadengine/internal/admin"
	"github.com/tradecore/leadengine/internal/audit"
	"github.com/tradecore/leadengine/internal/clock"
	"github.com/tradecore/leadengine/internal/config"
	"github.com/tradecore/leadengine/internal/contractor"
	"github.com/tradecore/leadengine/internal/credit"
	"github.com/tradecore/leadengine/internal/job"
	"github.com/tradecore/leadengine/internal/lock"
	"github.com/tradecore/leadengine/internal/logger"
	"github.com/tradecore/leadengine/internal/migration"
	obsmetrics "github.com/tradecore/leadengine/internal/observability/metrics"
	"github.com/tradecore/leadengine/internal/payment"
	"github.com/tradecore/leadengine/internal/scheduler"
	"github.com/tradecore/leadengine/internal/server"
	"github.com/tradecore/leadengine/internal/settlement"
	"github.com/tradecore/leadengine/internal/slot"
	"github.com/tradecore/leadengine/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		clock.Module,
		obsmetrics.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
		lock.Module,

		job.Module,
		contractor.Module,
		audit.Module,
		credit.Module,
		slot.Module,
		payment.Module,
		access.Module,
		settlement.Module,
		admin.Module,

		scheduler.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	nodeID := int64(1)
	if raw := os.Getenv("SNOWFLAKE_NODE_ID"); raw != "" {
		if parsed, err := strconv.ParseInt(raw, 10, 64); err == nil {
			nodeID = parsed
		}
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		panic(err)
	}
	return node
}
