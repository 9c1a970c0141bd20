package http

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())
	router.Use(cors.New(corsConfig(cfg.AllowedOrigins)))

	health := NewHealthController(cfg.Database, cfg.Version)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	api := router.Group("/api")

	if cfg.Books != nil {
		books := NewBooksController(cfg.Books)
		api.GET("/books", books.ListBooks)
		api.GET("/books/:id", books.GetBook)
		api.POST("/books", books.CreateBook)
		api.PUT("/books/:id", books.UpdateBook)
		api.DELETE("/books/:id", books.DeleteBook)
	}

	if cfg.Users != nil {
		users := NewUsersController(cfg.Users)
		api.GET("/users", users.ListUsers)
		api.GET("/users/:id", users.GetUser)
		api.POST("/users", users.CreateUser)
		api.PUT("/users/:id", users.UpdateUser)
		api.DELETE("/users/:id", users.DeleteUser)
	}

	if cfg.Loans != nil {
		loans := NewLoansController(cfg.Loans)
		api.GET("/loans", loans.ListLoans)
		api.GET("/loans/active", loans.ListActiveLoans)
		api.GET("/loans/:id", loans.GetLoan)
		api.POST("/loans", loans.CreateLoan)
		api.PUT("/loans/:id", loans.UpdateLoan)
		api.PUT("/loans/:id/return", loans.ReturnLoan)
		api.DELETE("/loans/:id", loans.DeleteLoan)
	}

	// Audit endpoints
	if cfg.Audit != nil {
		auditController := NewAuditController(cfg.Audit)
		api.GET("/audit", auditController.GetAuditEvents)
		api.GET("/loans/:id/history", auditController.GetLoanHistory)
	}

	// Availability reconciliation
	if cfg.Availability != nil {
		admin := NewAdminController(cfg.Availability, cfg.TaskQueue)
		api.GET("/admin/availability", admin.CheckAvailability)
		api.POST("/admin/availability/reconcile", admin.Reconcile)
	}

	// Task management endpoints
	if cfg.TaskQueue != nil {
		tasksController := NewTasksController(cfg.TaskQueue)
		api.GET("/tasks/:id", tasksController.GetTaskStatus)
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", RequestIDHeader},
		ExposeHeaders: []string{RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
