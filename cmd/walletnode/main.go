package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/Frankramos181422/metamask-extension/internal/app/service"
	"github.com/Frankramos181422/metamask-extension/internal/config"
	"github.com/Frankramos181422/metamask-extension/internal/domain/entity"
	"github.com/Frankramos181422/metamask-extension/internal/infrastructure/network/client"
	"github.com/Frankramos181422/metamask-extension/internal/infrastructure/restapi"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/logger"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/messenger"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/metrics"
	"github.com/Frankramos181422/metamask-extension/internal/pkg/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
)

func main() {
	// Bootstrap logging: logrus carries the config-loading phase, zap
	// everything after.
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.Init(cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync() // flushes buffer, if any

	// Bridge zap into slog for libraries that expect the standard logger.
	slogHandler := zapslog.NewHandler(zapLogger.Core())
	slog.SetDefault(slog.New(slogHandler))

	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	// Initialize Prometheus metrics
	metrics.MustRegisterMetrics()

	bus := messenger.New(zapLogger)
	factory := client.NewFactory(cfg.RpcClient, cfg.BlockTracker, zapLogger)

	controller, err := service.NewNetworkController(service.Options{
		Messenger:         bus.Restrict(service.Namespace),
		InfuraProjectID:   cfg.NetworkController.InfuraProjectID,
		Factory:           factory,
		Logger:            zapLogger,
		Environment:       service.Environment(cfg.NetworkController.Environment),
		InIntegrationTest: cfg.NetworkController.InIntegrationTest,
		TrackEvent: func(event entity.MetricsEvent) {
			zapLogger.Info("Analytics event",
				zap.String("event", event.Event),
				zap.String("category", event.Category),
				zap.Any("properties", event.Properties))
		},
	})
	if err != nil {
		zapLogger.Fatal("Failed to construct network controller", zap.Error(err))
	}

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelInit()
	if err := controller.InitializeProvider(initCtx); err != nil {
		// the daemon still serves the API; the connection can be reset once
		// the endpoint is reachable
		zapLogger.Error("Failed to initialize network provider", zap.Error(err))
	}

	// Initialize Gin router
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true // Adjust for production
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))

	router.Use(restapi.ZapLoggerMiddleware(zapLogger))
	router.Use(gin.Recovery())

	networkHandler := restapi.NewNetworkHandler(controller, zapLogger)
	restapi.RegisterNetworkRoutes(router, networkHandler)

	// Prometheus metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	zapLogger.Info("Prometheus metrics endpoint enabled", zap.String("path", "/metrics"))

	// Pprof endpoints (protect these in a production environment)
	pprofRouter := router.Group("/debug/pprof")
	{
		pprofRouter.GET("/", gin.WrapF(pprof.Index))
		pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
		pprofRouter.POST("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
		pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
		pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on port %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := controller.Destroy(ctxShutdown); err != nil {
		zapLogger.Warn("Failed to stop block tracker", zap.Error(err))
	}
	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exiting")
}
