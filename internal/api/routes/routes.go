package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/safecli/safecli/internal/api/handlers"
	"github.com/safecli/safecli/internal/api/middleware"
	"github.com/safecli/safecli/internal/config"
	"github.com/safecli/safecli/internal/metrics"
	"github.com/safecli/safecli/internal/services"
)

// Services bundles the domain services shared by the HTTP layer and background jobs.
type Services struct {
	Auth          *services.AuthService
	Endpoints     *services.EndpointService
	Blacklist     *services.BlacklistService
	Approvals     *services.ApprovalService
	Gate          *services.GateService
	Audit         *services.AuditService
	Notifications *services.NotificationService
}

// NewServices builds the service graph over db.
func NewServices(db *gorm.DB, cfg config.Config) *Services {
	s := &Services{
		Auth:          services.NewAuthService(db, cfg),
		Endpoints:     services.NewEndpointService(db),
		Blacklist:     services.NewBlacklistService(db),
		Approvals:     services.NewApprovalService(db),
		Audit:         services.NewAuditService(db),
		Notifications: services.NewNotificationService(db),
	}
	s.Gate = services.NewGateService(s.Blacklist, s.Endpoints, s.Approvals, s.Notifications)
	return s
}

// Register wires up API routes. registry may be nil, in which case /metrics is not served.
func Register(router *gin.Engine, db *gorm.DB, cfg config.Config, svc *Services, registry *prometheus.Registry) {
	router.GET("/api/v1/health", handlers.HealthHandler(db))
	if registry != nil {
		router.GET("/metrics", gin.WrapH(metrics.Handler(registry)))
	}

	api := router.Group("/api/v1")

	authHandler := handlers.NewAuthHandler(svc.Auth, cfg.IsProduction())
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/register", authHandler.Register)

	session := api.Group("/auth")
	session.Use(middleware.AuthMiddleware(svc.Auth))
	{
		session.POST("/logout", authHandler.Logout)
		session.GET("/me", authHandler.Me)
	}

	// Agents carry their own ids; there is no session on these routes.
	agentHandler := handlers.NewAgentHandler(svc.Gate, svc.Approvals, svc.Endpoints, svc.Blacklist, cfg.RequireEndpointToken)
	agent := api.Group("/agent")
	{
		agent.POST("/check_command", agentHandler.CheckCommand)
		agent.GET("/check_approval/:id", agentHandler.CheckApproval)
		agent.POST("/register", agentHandler.Register)
		agent.POST("/deregister", agentHandler.Deregister)
		agent.GET("/blacklist", agentHandler.Blacklist)
	}

	approvalHandler := handlers.NewApprovalHandler(svc.Approvals)
	api.GET("/requests", middleware.OptionalAccount(svc.Auth, cfg.AllowAccountParam), approvalHandler.List)

	operator := api.Group("/")
	operator.Use(middleware.ResolveAccount(svc.Auth, cfg.AllowAccountParam))
	{
		operator.POST("/requests/:id/approve", approvalHandler.Approve)
		operator.POST("/requests/:id/deny", approvalHandler.Deny)

		blacklistHandler := handlers.NewBlacklistHandler(svc.Blacklist)
		operator.GET("/blacklist", blacklistHandler.Get)
		operator.PUT("/blacklist", blacklistHandler.Replace)
		operator.POST("/blacklist", blacklistHandler.Replace)

		endpointHandler := handlers.NewEndpointHandler(svc.Endpoints, svc.Audit)
		operator.GET("/endpoints", endpointHandler.List)
		operator.POST("/endpoints/:id/activate", endpointHandler.Activate)
		operator.POST("/endpoints/:id/deactivate", endpointHandler.Deactivate)
		operator.POST("/endpoints/:id/uninstall", endpointHandler.Uninstall)
		operator.DELETE("/endpoints/:id", endpointHandler.Delete)

		auditHandler := handlers.NewAuditHandler(svc.Audit)
		operator.GET("/audit", auditHandler.List)

		providerHandler := handlers.NewNotificationProviderHandler(svc.Notifications)
		operator.GET("/notifications/providers", providerHandler.List)
		operator.POST("/notifications/providers", providerHandler.Create)
		operator.POST("/notifications/providers/test", providerHandler.Test)
		operator.DELETE("/notifications/providers/:id", providerHandler.Delete)
	}
}
