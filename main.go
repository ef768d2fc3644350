package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"clinic-management-server/internal/config"
	"clinic-management-server/internal/handlers"
	"clinic-management-server/internal/jobs"
	"clinic-management-server/internal/middleware"
	"clinic-management-server/internal/routes"
	"clinic-management-server/internal/services"
	"clinic-management-server/internal/store"
)

func main() {
	// Load environment variables; a missing .env is fine in containers
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Initialize database connection
	db, err := store.Open(cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	identity := services.NewIdentity(cfg.IdentityTokenSecret)
	mailer := services.NewMailer(cfg.Mailer, logger)
	storage := services.NewLocalStorage(cfg.Storage)

	auth := services.NewAuthService(db, cfg, identity, mailer, logger)
	invitations := services.NewInvitationService(db, cfg, identity, mailer, logger)
	invoices := services.NewInvoiceService(db, logger)

	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(auth),
		Staff:        handlers.NewStaffHandler(services.NewStaffService(db, logger)),
		Invitations:  handlers.NewInvitationHandler(invitations),
		Clinic:       handlers.NewClinicHandler(services.NewClinicService(db, logger), services.NewCatalogService(db, logger)),
		Patients:     handlers.NewPatientHandler(services.NewPatientService(db, storage, logger)),
		Medicines:    handlers.NewMedicineHandler(services.NewMedicineService(db, logger)),
		Appointments: handlers.NewAppointmentHandler(services.NewAppointmentService(db, logger)),
		Visits:       handlers.NewVisitHandler(services.NewVisitService(db, storage, logger)),
		Invoices:     handlers.NewInvoiceHandler(invoices),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := jobs.NewScheduler(logger)
	if err := jobs.Register(scheduler, cfg.Jobs, auth, invoices, invitations); err != nil {
		return err
	}
	scheduler.Start()

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit)
	go limiter.Cleanup(ctx, time.Minute)

	// Initialize Gin router
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(
		middleware.RequestLogger(logger, 2*time.Second),
		middleware.ErrorHandler(logger),
		middleware.Recovery(),
	)

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, h, cfg, limiter)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server running", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if sqlDB, err := db.Shared(shutdownCtx).DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
