package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mrlokans/lending/internal/audit"
	"github.com/mrlokans/lending/internal/config"
	"github.com/mrlokans/lending/internal/database"
	auditrepo "github.com/mrlokans/lending/internal/database/audit"
	"github.com/mrlokans/lending/internal/database/books"
	"github.com/mrlokans/lending/internal/database/loans"
	"github.com/mrlokans/lending/internal/database/users"
	http_controllers "github.com/mrlokans/lending/internal/http"
	"github.com/mrlokans/lending/internal/scheduler"
	"github.com/mrlokans/lending/internal/services"
	"github.com/mrlokans/lending/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then drains in-flight
// requests before calling onShutdown.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	log.Printf("Shutdown Server, waiting %v before killing", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if onShutdown != nil {
		onShutdown(ctx)
	}
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Println("Server exiting")
	return nil
}

// OpenDatabase opens the configured store and runs migrations.
func OpenDatabase(cfg *config.Config) (*database.Database, error) {
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// Migrate opens the database, which applies the schema, and closes it.
func Migrate(cfg *config.Config) error {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	log.Printf("Schema is up to date")
	return nil
}

// CheckAvailability runs the reconciler once and returns the drifted books.
func CheckAvailability(ctx context.Context, cfg *config.Config, repair bool) ([]loans.Drift, error) {
	db, err := OpenDatabase(cfg)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	defer auditService.Wait()

	loanService := services.NewLoanService(loans.NewRepository(db.DB), auditService)
	return tasks.Reconcile(ctx, loanService, repair)
}

func Run(cfg *config.Config, version string) error {
	log.Printf("Starting Lending v%s", version)

	db, err := OpenDatabase(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))

	bookService := services.NewBookService(books.NewRepository(db.DB), auditService)
	userService := services.NewUserService(users.NewRepository(db.DB), auditService)
	loanService := services.NewLoanService(loans.NewRepository(db.DB), auditService)

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.FromSettings(cfg.Tasks))
		if err != nil {
			return fmt.Errorf("failed to initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewReconcileAvailabilityQueue(loanService),
			tasks.NewCleanupAuditEventsQueue(auditService),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	var queue scheduler.Enqueuer
	if taskClient != nil {
		queue = taskClient
	}
	maintenance := scheduler.NewMaintenanceScheduler(scheduler.Config{
		ReconcileEnabled:   cfg.Reconcile.Enabled,
		ReconcileSchedule:  cfg.Reconcile.Schedule,
		Repair:             cfg.Reconcile.Repair,
		AuditRetentionDays: cfg.Audit.RetentionDays,
	}, loanService, auditService, queue)

	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	if err := maintenance.Start(schedCtx); err != nil {
		log.Printf("WARNING: Maintenance scheduler not started: %v", err)
	}

	routerCfg := http_controllers.RouterConfig{
		Database:       db,
		Books:          bookService,
		Users:          userService,
		Loans:          loanService,
		Availability:   loanService,
		Audit:          auditService,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Version:        version,
	}
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		maintenance.Stop()
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
		auditService.Wait()
	}

	return Serve(router, cfg, onShutdown)
}
