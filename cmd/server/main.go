package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"devver/internal/api/controllers"
	"devver/internal/api/routes"
	"devver/internal/config"
	"devver/internal/db"
	"devver/internal/runner"
	deployservice "devver/internal/services/deploy_service"
	processservice "devver/internal/services/process_service"
	routingservice "devver/internal/services/routing_service"
	setupservice "devver/internal/services/setup_service"
	storeservice "devver/internal/services/store_service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	// 1. 설정 로드 (Configuration)
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Invalid LOG_LEVEL %q, using info", cfg.LogLevel)
	}

	if err := os.MkdirAll(cfg.AppsRoot, 0755); err != nil {
		log.Fatalf("Failed to create APPS_ROOT %s: %v", cfg.AppsRoot, err)
	}

	// 2. 데이터베이스 초기화 (Database Initialization)
	database, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close(database)

	// 3. 서비스 초기화 (Services)
	// 외부 바이너리(pm2, nginx, git, bun/npm)는 모두 runner 를 통해 실행됩니다.
	run := runner.NewExecRunner()
	storeService := storeservice.NewStoreService(database)
	processService := processservice.NewProcessService(run, cfg.ProcessSettleDelay, logger)
	routingService := routingservice.NewRoutingService(run, cfg.NginxSitesDir, cfg.HostName, logger)
	deployService := deployservice.NewDeployService(cfg, storeService, processService, routingService, run, logger)
	setupService := setupservice.NewSetupService(cfg, run, logger)

	if !routingService.Available() {
		logger.Warnf("Nginx sites directory %s not found, deployments are reachable on their port only", cfg.NginxSitesDir)
	}

	// 4. 컨트롤러 초기화 (Controllers)
	r := routes.SetupRouter(logger, routes.Controllers{
		Health:      controllers.NewHealthController(storeService),
		Setup:       controllers.NewSetupController(setupService),
		Deploy:      controllers.NewDeployController(deployService),
		Branches:    controllers.NewBranchesController(storeService),
		Deployments: controllers.NewDeploymentsController(deployService),
	})

	// 5. 서버 시작 (Start Server)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Starting server on port %s (APPS_ROOT=%s)", cfg.Port, cfg.AppsRoot)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 6. 종료 처리 (Graceful Shutdown) - 진행 중인 배포가 끝날 때까지 대기
	<-ctx.Done()
	log.Println("Shutting down server... (서버 종료 중)")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.CommandTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
}
