package mandate

import (
	"log/slog"

	"bureau/internal/mandate/handler"
	"bureau/internal/mandate/service"
	"bureau/internal/platform/middleware"
)

// Service exposes the mandate workflow.
type Service = service.Service

// Handler wires HTTP endpoints to the mandate service.
type Handler = handler.Handler

// NewService constructs the mandate workflow over a store and its transaction runner.
func NewService(store service.Store, tx service.MandateStoreTx, opts ...service.Option) *Service {
	return service.New(store, tx, opts...)
}

// NewHandler constructs the HTTP handler for the member mandate routes.
func NewHandler(s *Service, logger *slog.Logger, validator middleware.JWTValidator, opts ...handler.Option) *Handler {
	return handler.New(s, logger, validator, opts...)
}
