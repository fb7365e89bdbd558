package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/agencyops/renewd/internal/asset"
	assetdomain "github.com/agencyops/renewd/internal/asset/domain"
	"github.com/agencyops/renewd/internal/client"
	clientdomain "github.com/agencyops/renewd/internal/client/domain"
	"github.com/agencyops/renewd/internal/clock"
	"github.com/agencyops/renewd/internal/cloudmetrics"
	"github.com/agencyops/renewd/internal/config"
	"github.com/agencyops/renewd/internal/dispatch"
	dispatchdomain "github.com/agencyops/renewd/internal/dispatch/domain"
	"github.com/agencyops/renewd/internal/escalation"
	escalationdomain "github.com/agencyops/renewd/internal/escalation/domain"
	"github.com/agencyops/renewd/internal/observability"
	obsmiddleware "github.com/agencyops/renewd/internal/observability/logger"
	obsmetrics "github.com/agencyops/renewd/internal/observability/metrics"
	obstracing "github.com/agencyops/renewd/internal/observability/tracing"
	"github.com/agencyops/renewd/internal/providers"
	"github.com/agencyops/renewd/internal/renewal"
	renewaldomain "github.com/agencyops/renewd/internal/renewal/domain"
	"github.com/agencyops/renewd/internal/scheduler"
)

var Module = fx.Module("http.server",
	config.Module,
	cloudmetrics.Module,
	clock.Module,
	fx.Provide(registerGin),
	asset.Module,
	client.Module,
	dispatch.Module,
	escalation.Module,
	renewal.Module,
	providers.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	clk           clock.Clock
	policy        *config.PolicyHolder
	assetSvc      assetdomain.Service
	assetRepo     assetdomain.Repository
	clientSvc     clientdomain.Service
	dispatchSvc   dispatchdomain.Service
	escalationSvc escalationdomain.Service
	renewalSvc    renewaldomain.Service
	scheduler     *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	Clock         clock.Clock
	Policy        *config.PolicyHolder
	AssetSvc      assetdomain.Service
	AssetRepo     assetdomain.Repository
	ClientSvc     clientdomain.Service
	DispatchSvc   dispatchdomain.Service
	EscalationSvc escalationdomain.Service
	RenewalSvc    renewaldomain.Service

	Scheduler *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		clk:           p.Clock,
		policy:        p.Policy,
		assetSvc:      p.AssetSvc,
		assetRepo:     p.AssetRepo,
		clientSvc:     p.ClientSvc,
		dispatchSvc:   p.DispatchSvc,
		escalationSvc: p.EscalationSvc,
		renewalSvc:    p.RenewalSvc,
		scheduler:     p.Scheduler,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.OrgContext())

	v1.POST("/assets", s.CreateAsset)
	v1.GET("/assets", s.ListAssets)
	v1.GET("/assets/expiring", s.ListExpiringAssets)
	v1.GET("/assets/data-quality", s.AssetDataQuality)
	v1.GET("/assets/:id", s.GetAssetByID)

	v1.POST("/clients", s.CreateClient)
	v1.GET("/clients", s.ListClients)
	v1.GET("/clients/:id", s.GetClientByID)
	v1.GET("/clients/:id/preferences", s.GetClientPreferences)
	v1.PUT("/clients/:id/preferences", s.UpdateClientPreferences)

	v1.POST("/renewals", s.RenewAssets)
	v1.GET("/renewal-alerts", s.RenewalAlerts)
	v1.POST("/notifications/send", s.SendDueNotifications)

	v1.GET("/dispatches", s.ListDispatches)
	v1.POST("/dispatches/:id/ack", s.AcknowledgeDispatch)

	v1.GET("/escalations", s.ListEscalations)
	v1.POST("/escalations/:id/resolve", s.ResolveEscalation)

	v1.GET("/settings/reminder-policy", s.GetReminderPolicy)
	v1.PUT("/settings/reminder-policy", s.UpdateReminderPolicy)
}
