// Package api is the HTTP surface: the audit/reporting read API consumed
// by the admin ledger viewer, plus the operator retry action.
package api

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/charterpay/dues-distribution-engine/internal/audit"
	"github.com/charterpay/dues-distribution-engine/internal/ledger"
)

type Server struct {
	app    *fiber.App
	audit  *audit.Service
	writer *ledger.Writer
	log    *zap.Logger
}

func NewServer(auditSvc *audit.Service, writer *ledger.Writer, log *zap.Logger) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		audit:  auditSvc,
		writer: writer,
		log:    log,
	}

	s.app.Get("/health", s.health)
	v1 := s.app.Group("/v1")
	v1.Get("/ledger/entries", s.listEntries)
	v1.Post("/ledger/entries/:id/retry", s.retryEntry)
	v1.Post("/contributions/:id/void", s.voidContribution)
	return s
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
