// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/agentvault/av-backend/internal/config"
	"github.com/agentvault/av-backend/internal/handlers"
	"github.com/agentvault/av-backend/internal/middleware"
	"github.com/agentvault/av-backend/internal/services"
	"github.com/agentvault/av-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	logger := logrus.StandardLogger()

	// Initialize services
	eventService := services.NewEventService(db, logger)
	bankService := services.NewTokenService(db)
	registryService := services.NewRegistryService(db, cfg, eventService, logger)
	issuerService := services.NewIssuerService(db, registryService, bankService, eventService, logger)
	custodyService := services.NewCustodyService(db, registryService, issuerService, bankService, eventService, logger)

	authService := services.NewAuthService(db, cfg)
	adminService := services.NewAdminService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	registryHandler := handlers.NewRegistryHandler(registryService)
	classHandler := handlers.NewClassHandler(registryService, issuerService, bankService)
	custodyHandler := handlers.NewCustodyHandler(custodyService, issuerService, bankService)
	bankHandler := handlers.NewBankHandler(bankService)
	adminHandler := handlers.NewAdminHandler(adminService, eventService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.I18nMiddleware())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Registry routes
		registry := v1.Group("/registry")
		{
			registry.GET("", registryHandler.GetState)
			registry.GET("/classes", registryHandler.ListClasses)
			registry.GET("/payments", registryHandler.ListPayments)
			registry.GET("/payments/:token", registryHandler.IsPayable)
			registry.GET("/resolve", registryHandler.GetIssuer)

			protected := registry.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/initialize", middleware.AdminRequired(), registryHandler.Initialize)
				protected.POST("/classes", registryHandler.RegisterClass)
				protected.POST("/payments", registryHandler.SetPayments)
				protected.DELETE("/payments", registryHandler.RemovePayments)
			}
		}

		// Class (issuer) routes
		classes := v1.Group("/classes/:address")
		{
			classes.GET("", classHandler.GetClass)
			classes.GET("/licenses", classHandler.ListLicenses)
			classes.GET("/licenses/:id", classHandler.GetLicense)
			classes.GET("/licenses/:id/metadata", classHandler.RenderMetadata)
			classes.GET("/balance/:token", classHandler.BalanceOf)

			protected := classes.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/issue", classHandler.Issue)
				protected.PUT("/licenses/:id/traits", classHandler.UpdateTraits)
				protected.PUT("/base-locator", classHandler.UpdateBaseLocator)
				protected.POST("/withdraw", classHandler.Withdraw)
				protected.POST("/transfer-ownership", classHandler.TransferOwnership)
			}
		}

		// Custody (escrow) routes
		custody := v1.Group("/custody")
		{
			custody.GET("", custodyHandler.GetState)
			custody.GET("/deployments", custodyHandler.ListDeployments)
			custody.GET("/deployments/:address/:id", custodyHandler.GetDeployInfo)
			custody.GET("/claimants/:claimant/:address", custodyHandler.GetClaimantLicenses)
			custody.GET("/balance/:token", custodyHandler.BalanceOf)
			custody.GET("/held/:address", custodyHandler.HeldCount)

			protected := custody.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/initialize", middleware.AdminRequired(), custodyHandler.Initialize)
				protected.POST("/deploy", middleware.EscrowRateLimit(), custodyHandler.Deploy)
				protected.POST("/stop", middleware.EscrowRateLimit(), custodyHandler.Stop)
				protected.PUT("/fee", custodyHandler.SetFee)
				protected.POST("/withdraw", custodyHandler.WithdrawFees)
			}
		}

		// Token bank routes
		bank := v1.Group("/bank")
		{
			bank.GET("/balance/:token/:account", bankHandler.Balance)
			bank.GET("/allowance/:token/:owner/:spender", bankHandler.Allowance)

			protected := bank.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("/transfer", bankHandler.Transfer)
				protected.POST("/approve", bankHandler.Approve)
				protected.POST("/transfer-from", bankHandler.TransferFrom)
				protected.POST("/mint", middleware.AdminRequired(), bankHandler.Mint)
			}
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.GET("/stats", adminHandler.GetPlatformStats)
			admin.GET("/audit-logs", adminHandler.ListAuditLogs)
			admin.GET("/events", adminHandler.ListEvents)
		}
	}

	return r
}
