package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zkgate/proof-verification-gateway/internal/common/handler"
	"github.com/zkgate/proof-verification-gateway/internal/common/middleware"
	"github.com/zkgate/proof-verification-gateway/internal/config"
	"github.com/zkgate/proof-verification-gateway/internal/verification"
	"github.com/zkgate/proof-verification-gateway/pkg/chain"
	"github.com/zkgate/proof-verification-gateway/pkg/clock"
	"github.com/zkgate/proof-verification-gateway/pkg/envelope"
	"github.com/zkgate/proof-verification-gateway/pkg/groth16"
	"github.com/zkgate/proof-verification-gateway/pkg/nonce"
	"github.com/zkgate/proof-verification-gateway/pkg/proofcache"
	"github.com/zkgate/proof-verification-gateway/pkg/verifier"
)

func main() {
	// 1) Logger
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// 2) Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	logger.Info("starting gateway",
		zap.String("environment", cfg.Server.Environment),
		zap.String("addr", cfg.Server.Addr()),
	)

	clk := clock.System()

	// 3) Replay guard (owns a background sweeper; released on shutdown)
	guard := nonce.NewGuard(nonce.Config{
		TTL:                cfg.Nonce.TTL,
		MaxSize:            cfg.Nonce.MaxSize,
		TimestampTolerance: cfg.Nonce.TimestampTolerance,
		StrictOrder:        cfg.Nonce.StrictOrder,
	}, clk, logger)
	defer guard.Shutdown()

	// 4) Result cache
	cache := proofcache.New(proofcache.Config{
		MaxSize:       cfg.Cache.MaxSize,
		TTL:           cfg.Cache.TTL,
		SweepInterval: cfg.Cache.SweepInterval,
	}, clk)

	// 5) Chain client (on-chain pathway is optional)
	var chainClient *chain.Client
	if cfg.Chain.Enabled() {
		chainClient, err = chain.Dial(cfg.Chain.RPCURL, logger)
		if err != nil {
			logger.Fatal("failed to connect to chain RPC", zap.Error(err))
		}
		defer chainClient.Close()
	} else {
		logger.Info("on-chain pathway disabled: no CHAIN_RPC_URL configured")
	}

	// 6) Dispatcher with the gnark-backed crypto verifier
	var chainCaller verifier.ChainCaller
	if chainClient != nil {
		chainCaller = chainClient
	}
	dispatcher := verifier.NewDispatcher(verifier.Config{
		CallTimeout:     cfg.Chain.CallTimeout,
		ThresholdAmount: cfg.Verify.ThresholdAmount,
		MaximumAmount:   cfg.Verify.MaximumAmount,
	}, guard, cache, groth16.NewVerifier(logger), chainCaller, logger)

	// 7) Router
	router := setupRouter(cfg, logger, dispatcher, chainClient, clk)

	// 8) HTTP server
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("gateway started", zap.String("addr", cfg.Server.Addr()))

	// 9) Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("gateway exited")
}

func initLogger() (*zap.Logger, error) {
	if os.Getenv("ENVIRONMENT") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func setupRouter(cfg *config.Config, logger *zap.Logger, dispatcher *verifier.Dispatcher, chainClient *chain.Client, clk clock.Clock) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	// Health endpoints
	var pinger handler.Pinger
	if chainClient != nil {
		pinger = chainClient
	}
	healthHandler := handler.NewHealthHandler(pinger)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// Verification service & handler
	codec := envelope.NewCodec(clk)
	service := verification.NewService(codec, dispatcher, cfg.Chain.VerifierContract, logger)
	verificationHandler := verification.NewHandler(service)

	v1 := router.Group("/api/v1")
	{
		verificationHandler.RegisterRoutes(v1)
	}

	return router
}
