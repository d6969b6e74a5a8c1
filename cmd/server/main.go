package main

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/typeloop/typerace-backend/internal/config"
	"github.com/typeloop/typerace-backend/internal/httpapi"
	"github.com/typeloop/typerace-backend/internal/registry"
)

func main() {
	cfg := config.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()
	reg := registry.New(ctx, registry.Options{Logger: logger})

	// Build the router *with* the registry injected
	handler := httpapi.SetupRoutes(reg, logger, cfg.AllowedOrigins)

	logger.Info("listening", zap.String("port", cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
