package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/statusbeacon-dev/statusbeacon/db"
	"github.com/statusbeacon-dev/statusbeacon/internal/config"
	"github.com/statusbeacon-dev/statusbeacon/internal/handlers"
	"github.com/statusbeacon-dev/statusbeacon/internal/logger"
	"github.com/statusbeacon-dev/statusbeacon/internal/poller"
	"github.com/statusbeacon-dev/statusbeacon/internal/router"
)

func main() {
	// .env is optional, environment variables may come from elsewhere
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Error loading .env file: %v", err)
	}

	cfg, err := config.Load()

	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logger.Init(cfg.Log)

	if cfg.Database.DSN == "" {
		logrus.Fatal("Database DSN is not configured")
	}

	if err := db.ConnectDatabase(cfg.Database.DSN); err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.MigrateDatabase(); err != nil {
		logrus.Fatalf("Failed to migrate database: %v", err)
	}

	p := poller.New(cfg, db.DB)
	p.OnCycleComplete = handlers.BroadcastRefresh
	p.Start()

	r := router.NewRouter(cfg, p)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		logrus.Infof("Listening on %s", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down")

	p.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("Server shutdown failed: %v", err)
	}
}
