// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/jqwei/undercover/internal/archive"
	"github.com/jqwei/undercover/internal/auth"
	"github.com/jqwei/undercover/internal/handlers"
	"github.com/jqwei/undercover/internal/middleware"
	"github.com/jqwei/undercover/internal/presence"
)

func main() {
	auth.Init()

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	// Match archive is optional: no REDIS_ADDR, no archive.
	if os.Getenv("REDIS_ADDR") != "" {
		if err := archive.ConnectRedis(); err != nil {
			logger.Warnf("match archive disabled: %v", err)
		} else {
			logger.Info("match archive enabled")
		}
	}

	monitor := presence.NewMonitor(logger,
		envDuration("PRESENCE_TIMEOUT", 30*time.Second),
		envDuration("PRESENCE_SWEEP_INTERVAL", 25*time.Second),
	)
	gateway := handlers.NewGateway(logger, monitor)
	monitor.OnExpire = gateway.DisconnectByID
	go monitor.Run(context.Background())

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.WSHandler(logger, gateway),
	)))

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}
