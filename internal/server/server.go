// Package server assembles the services, handlers and routes of the Tally
// HTTP API. cmd/api and the integration tests share it.
package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"tally/internal/clock"
	"tally/internal/handlers"
	"tally/internal/middleware"
	"tally/internal/services"

	_ "tally/internal/docs" // Import swagger docs
)

// Services holds every ledger service built on one database handle.
type Services struct {
	Accounts     services.AccountServicer
	Categories   services.CategoryServicer
	Transactions services.TransactionServicer
	Recurring    services.RecurringServicer
	Positions    services.PositionServicer
	Snapshots    services.SnapshotServicer
	Audit        services.AuditServicer
}

// NewServices wires the services together. workers bounds how many due
// templates are materialized at once.
func NewServices(db *gorm.DB, clk clock.Clock, workers int) *Services {
	accountService := services.NewAccountService(db)
	return &Services{
		Accounts:     accountService,
		Categories:   services.NewCategoryService(db),
		Transactions: services.NewTransactionService(db, accountService, clk),
		Recurring:    services.NewRecurringService(db, accountService, clk, workers),
		Positions:    services.NewPositionService(db, clk),
		Snapshots:    services.NewSnapshotService(db, clk),
		Audit:        services.NewAuditService(db),
	}
}

// Options controls the optional parts of the router.
type Options struct {
	// Pipeline routes answer 503 while this is empty
	PipelineAPIKey string
	// Default horizon for GET /recurring/upcoming
	ReminderHorizonDays int
	// Zone for plain YYYY-MM-DD request dates; nil means UTC
	Location       *time.Location
	RequestLogging bool
	Swagger        bool
}

// NewRouter builds the gin engine with all API routes.
func NewRouter(svc *Services, opts Options) *gin.Engine {
	accountHandler := handlers.NewAccountHandler(svc.Accounts, svc.Audit)
	categoryHandler := handlers.NewCategoryHandler(svc.Categories, svc.Audit)
	transactionHandler := handlers.NewTransactionHandler(svc.Transactions, svc.Audit, opts.Location)
	recurringHandler := handlers.NewRecurringHandler(svc.Recurring, svc.Audit, opts.ReminderHorizonDays, opts.Location)
	positionHandler := handlers.NewPositionHandler(svc.Positions, svc.Audit, opts.Location)
	snapshotHandler := handlers.NewSnapshotHandler(svc.Snapshots, svc.Audit, opts.Location)
	pipelineHandler := handlers.NewPipelineHandler(svc.Recurring, svc.Snapshots, svc.Positions, svc.Audit)

	router := gin.New()
	router.Use(gin.Recovery())
	if opts.RequestLogging {
		router.Use(middleware.RequestLogging())
	}
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Actor, X-API-Key")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	if opts.Swagger {
		router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.ActorMiddleware())

	accounts := v1.Group("/accounts")
	accounts.POST("", accountHandler.CreateAccount)
	accounts.GET("", accountHandler.GetAccounts)
	accounts.GET("/:id", accountHandler.GetAccountByID)
	accounts.PUT("/:id", accountHandler.UpdateAccount)
	accounts.GET("/:id/transactions", transactionHandler.GetAccountTransactions)

	categories := v1.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	transactions := v1.Group("/transactions")
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.POST("/parsed", transactionHandler.CreateParsedTransactions)
	transactions.GET("", transactionHandler.GetTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	recurring := v1.Group("/recurring")
	recurring.POST("", recurringHandler.CreateTemplate)
	recurring.GET("", recurringHandler.GetTemplates)
	recurring.GET("/due", recurringHandler.GetDue)
	recurring.GET("/upcoming", recurringHandler.GetUpcoming)
	recurring.POST("/process", recurringHandler.ProcessDue)
	recurring.GET("/:id", recurringHandler.GetTemplateByID)
	recurring.PUT("/:id", recurringHandler.UpdateTemplate)
	recurring.DELETE("/:id", recurringHandler.DeleteTemplate)
	recurring.PUT("/:id/active", recurringHandler.SetActive)
	recurring.POST("/:id/executed", recurringHandler.MarkExecuted)
	recurring.POST("/:id/reschedule", recurringHandler.Reschedule)

	positions := v1.Group("/positions")
	positions.POST("/buy", positionHandler.Buy)
	positions.GET("", positionHandler.GetPositions)
	positions.GET("/summary", positionHandler.GetSummary)
	positions.GET("/:id", positionHandler.GetPositionByID)
	positions.POST("/:id/sell", positionHandler.Sell)
	positions.PUT("/:id/price", positionHandler.UpdatePrice)
	positions.GET("/:id/trades", positionHandler.GetTrades)
	positions.GET("/:id/prices", positionHandler.GetPrices)

	snapshots := v1.Group("/snapshots")
	snapshots.POST("", snapshotHandler.CreateSnapshot)
	snapshots.GET("", snapshotHandler.GetSnapshots)
	snapshots.GET("/:year/:month", snapshotHandler.GetSnapshot)

	// Pipeline routes (API key auth)
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(opts.PipelineAPIKey))
	pipeline.POST("/recurring/process", pipelineHandler.ProcessRecurring)
	pipeline.POST("/snapshots", pipelineHandler.TakeSnapshot)
	pipeline.POST("/prices", pipelineHandler.SyncPrices)

	return router
}
