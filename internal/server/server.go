package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	accessdomain "github.com/tradecore/leadengine/internal/access/domain"
	admindomain "github.com/tradecore/leadengine/internal/admin/domain"
	"github.com/tradecore/leadengine/internal/config"
	creditdomain "github.com/tradecore/leadengine/internal/credit/domain"
	paymentdomain "github.com/tradecore/leadengine/internal/payment/domain"
	settlementdomain "github.com/tradecore/leadengine/internal/settlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config        config.Config
	Log           *zap.Logger
	AccessSvc     accessdomain.Service
	CreditSvc     creditdomain.Service
	AdminSvc      admindomain.Service
	SettlementSvc settlementdomain.Service
	Gateway       paymentdomain.Gateway
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	accessSvc     accessdomain.Service
	creditSvc     creditdomain.Service
	adminSvc      admindomain.Service
	settlementSvc settlementdomain.Service
	gateway       paymentdomain.Gateway
}

func New(p Params) *Server {
	if p.Config.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		engine:        gin.New(),
		cfg:           p.Config,
		log:           p.Log.Named("server"),
		accessSvc:     p.AccessSvc,
		creditSvc:     p.CreditSvc,
		adminSvc:      p.AdminSvc,
		settlementSvc: p.SettlementSvc,
		gateway:       p.Gateway,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.engine
	r.Use(gin.Recovery())
	r.Use(RequestContextMiddleware())
	r.Use(RequestLoggingMiddleware(s.log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/access/purchase", s.PurchaseAccess)
		v1.GET("/access/check", s.CheckAccess)
		v1.POST("/access/intent", s.CreatePaymentIntent)
		v1.GET("/jobs/:id/lead", s.GetLead)
		v1.POST("/jobs/:id/complete", s.CompleteJob)
		v1.POST("/jobs/:id/confirm", s.ConfirmJob)
		v1.GET("/contractors/:id/credits", s.GetCredits)

		admin := v1.Group("/admin")
		{
			admin.POST("/credits/adjust", s.AdminAdjustCredits)
			admin.POST("/jobs/:id/price", s.AdminOverrideLeadPrice)
			admin.POST("/jobs/:id/limit", s.AdminSetContractorLimit)
			admin.POST("/jobs/:id/lock", s.AdminLockJob)
			admin.POST("/jobs/:id/unlock", s.AdminUnlockJob)
			admin.POST("/jobs/:id/approve", s.AdminForceApproveWinner)
			admin.POST("/jobs/:id/settle", s.AdminForceSettle)
		}
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func run(lc fx.Lifecycle, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Module("http.server",
	fx.Provide(New),
	fx.Invoke(run),
)
