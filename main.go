package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"go.uber.org/zap"

	"github.com/digikawsay/kawsay-engine/pkg/audit"
	"github.com/digikawsay/kawsay-engine/pkg/auth"
	"github.com/digikawsay/kawsay-engine/pkg/config"
	"github.com/digikawsay/kawsay-engine/pkg/crypto"
	"github.com/digikawsay/kawsay-engine/pkg/database"
	"github.com/digikawsay/kawsay-engine/pkg/detect"
	"github.com/digikawsay/kawsay-engine/pkg/handlers"
	"github.com/digikawsay/kawsay-engine/pkg/middleware"
	"github.com/digikawsay/kawsay-engine/pkg/repositories"
	"github.com/digikawsay/kawsay-engine/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.Int("min_group_size", cfg.Privacy.MinGroupSize),
		zap.Int("required_approvals", cfg.Privacy.RequiredApprovals))

	ctx := context.Background()

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal("Failed to open migration connection", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}
	_ = sqlDB.Close()

	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		// Only derived suppression counts are cached; the engine runs fine
		// without Redis.
		logger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	encryptor, err := crypto.NewIdentityEncryptor(cfg.Privacy.VaultEncryptionKey)
	if err != nil {
		logger.Fatal("Failed to create vault encryptor", zap.Error(err))
	}

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
	})
	if err != nil {
		logger.Fatal("Failed to create JWKS client", zap.Error(err))
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	tenantMiddleware := database.WithTenantContext(db, logger)
	protect := func(next http.HandlerFunc) http.HandlerFunc {
		return authMiddleware.RequireAuth(tenantMiddleware(next))
	}

	// Repositories
	vaultRepo := repositories.NewVaultRepository()
	auditRepo := repositories.NewAuditRepository()
	reidentificationRepo := repositories.NewReidentificationRepository()
	insightRepo := repositories.NewInsightRepository()
	transcriptRepo := repositories.NewTranscriptRepository()

	// Services
	detectors := detect.DefaultDetectors()
	securityAuditor := audit.NewSecurityAuditor(logger)
	vaultService := services.NewVaultService(vaultRepo, auditRepo, encryptor, securityAuditor, logger)
	pseudonymizationService := services.NewPseudonymizationService(detectors, vaultService, transcriptRepo, logger)
	suppressionService := services.NewSuppressionService(cfg.Privacy.MinGroupSize, insightRepo, auditRepo, redisClient, logger)
	reidentificationService := services.NewReidentificationService(
		cfg.Privacy.RequiredApprovals, cfg.Privacy.ApprovalTTL(),
		reidentificationRepo, auditRepo, vaultService, detectors, securityAuditor, logger)
	auditService := services.NewAuditService(auditRepo, logger)

	// HTTP surface
	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, logger).RegisterRoutes(mux)
	handlers.NewPrivacyHandler(pseudonymizationService, suppressionService, vaultService, logger).RegisterRoutes(mux, protect)
	handlers.NewReidentificationHandler(reidentificationService, logger).RegisterRoutes(mux, protect)
	handlers.NewAuditHandler(auditService, logger).RegisterRoutes(mux, protect)
	handlers.NewGovernanceHandler(logger).RegisterRoutes(mux, protect)

	server := &http.Server{
		Addr:              cfg.BindAddr + ":" + cfg.Port,
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Starting kawsay-engine",
			zap.String("addr", server.Addr),
			zap.String("version", cfg.Version))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
