package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/typeloop/typerace-backend/internal/registry"
	"github.com/typeloop/typerace-backend/internal/ws"
)

func SetupRoutes(reg *registry.Registry, log *zap.Logger, originPatterns []string) http.Handler {
	r := chi.NewRouter()

	// Public routes
	r.Post("/rooms", CreateRoom(reg, log))
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(reg, log, originPatterns))
	return r
}
