// cmd/server/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joho/godotenv"

	creditv1 "github.com/clubmaster/clubmaster/api/proto/credit/v1/generated"
	taskv1 "github.com/clubmaster/clubmaster/api/proto/task/v1/generated"
	ent "github.com/clubmaster/clubmaster/ent/generated"
	"github.com/clubmaster/clubmaster/ent/generated/migrate"
	"github.com/clubmaster/clubmaster/internal/config"
	"github.com/clubmaster/clubmaster/internal/database"
	"github.com/clubmaster/clubmaster/internal/middleware"
	"github.com/clubmaster/clubmaster/internal/repository"
	"github.com/clubmaster/clubmaster/internal/service"
	"github.com/clubmaster/clubmaster/pkg/auth"
	"github.com/clubmaster/clubmaster/pkg/credit"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Connect to database with Ent
	log.Println("Connecting to PostgreSQL with Ent...")
	dbConfig := database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
		Debug:    cfg.IsDevelopment(),
	}
	entClient, err := database.NewEntClient(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := entClient.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}()

	// Run auto migration
	if cfg.Server.AutoMigrate {
		if err := runAutoMigration(context.Background(), entClient); err != nil {
			log.Fatalf("Failed to run auto migration: %v", err)
		}
	}

	// Open the read-model handle for rollup queries
	readDB, err := database.NewReadDB(dbConfig)
	if err != nil {
		log.Fatalf("Failed to open read database: %v", err)
	}
	defer readDB.Close()

	// Build the credit estimator chain
	var primary credit.Estimator
	if cfg.AI.APIKey != "" {
		log.Println("AI credit estimation enabled")
		primary = credit.NewAnthropicEstimator(cfg.AI.APIKey, anthropic.Model(cfg.AI.Model))
	} else {
		log.Println("ANTHROPIC_API_KEY not set; every award uses the formula")
	}
	estimator := credit.NewChain(primary, credit.FallbackEstimator{}, cfg.AI.Timeout)

	// Initialize repositories and services
	taskRepo := repository.NewEntTaskRepository(entClient)
	rollupRepo := repository.NewRollupRepository(readDB)

	ledger := service.NewLedgerUpdater(entClient)
	engine := service.NewCreditEngine(entClient, estimator, ledger, rollupRepo)

	taskService := service.NewTaskService(taskRepo, engine)
	creditService := service.NewCreditService(entClient, rollupRepo, ledger, engine)

	// Initialize middleware
	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	metadataExtractor := middleware.NewMetadataExtractorInterceptor()
	authInterceptor := middleware.NewAuthInterceptor(verifier)

	// Create gRPC server with interceptors
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			metadataExtractor.Unary(),
			authInterceptor.Unary(),
			loggingInterceptor,
		),
		grpc.ChainStreamInterceptor(
			metadataExtractor.Stream(),
			authInterceptor.Stream(),
		),
	)

	// Register services
	taskv1.RegisterTaskServiceServer(grpcServer, taskService)
	creditv1.RegisterCreditServiceServer(grpcServer, creditService)

	// Register health check
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("task.v1.TaskService", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("credit.v1.CreditService", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING) // For overall health

	// Register reflection for development
	if cfg.Server.EnableReflection {
		reflection.Register(grpcServer)
		log.Println("gRPC reflection enabled (disable in production)")
	}

	// Create listener
	listener, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Server.GRPCPort))
	if err != nil {
		log.Fatalf("Failed to listen: %v", err)
	}

	// Start the periodic overdue sweep
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go startOverdueSweep(sweepCtx, engine, cfg.Sweep.Interval)

	// Start server in goroutine
	go func() {
		log.Printf("🚀 ClubMaster gRPC server listening on port %s", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(listener); err != nil {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("📴 Shutting down server...")
	stopSweep()
	grpcServer.GracefulStop()
	log.Println("✅ Server shutdown complete")
}

// runAutoMigration runs the auto migration
func runAutoMigration(ctx context.Context, client *ent.Client) error {
	log.Println("🔄 Running auto migration...")
	err := client.Schema.Create(
		ctx,
		migrate.WithDropIndex(true),
		migrate.WithDropColumn(true),
		migrate.WithForeignKeys(true),
	)
	if err != nil {
		return fmt.Errorf("run auto migration: %w", err)
	}
	log.Println("✅ Auto migration completed")
	return nil
}

// startOverdueSweep flags past-due tasks on a fixed interval. One run
// fires immediately so a restart never leaves stale flags for long.
func startOverdueSweep(ctx context.Context, engine *service.CreditEngine, interval time.Duration) {
	log.Printf("🧹 Starting overdue sweep (runs every %v)", interval)

	if _, err := engine.RunOverdueSweep(ctx, time.Now()); err != nil {
		log.Printf("Overdue sweep failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := engine.RunOverdueSweep(ctx, time.Now()); err != nil {
				log.Printf("Overdue sweep failed: %v", err)
			}
		}
	}
}

// loggingInterceptor logs incoming requests
func loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	clientInfo := middleware.GetClientInfoFromContext(ctx)
	resp, err := handler(ctx, req)
	duration := time.Since(start)
	logLevel := "INFO"
	if err != nil {
		logLevel = "ERROR"
	}
	log.Printf("[%s] %s completed in %v (user: %s, ip: %s)",
		logLevel, info.FullMethod, duration, clientInfo.UserID, clientInfo.IPAddress)
	if err != nil {
		log.Printf("[ERROR] %s error: %v", info.FullMethod, err)
	}
	return resp, err
}
