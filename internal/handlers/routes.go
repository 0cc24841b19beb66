// internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/pairline/internal/middleware"
	"github.com/jason-s-yu/pairline/internal/session"
	"github.com/sirupsen/logrus"
)

// NewMux wires every endpoint behind the request logger.
func NewMux(logger *logrus.Logger, hub *session.Hub, opts WSOptions) *http.ServeMux {
	logged := middleware.LogMiddleware(logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", logged(WSHandler(logger, hub, opts)))
	mux.Handle("/stats", logged(StatsHandler(hub)))
	mux.HandleFunc("/health", HealthHandler)
	return mux
}
