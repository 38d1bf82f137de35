package history

import (
	"recon-engine/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for persisted run history.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the history routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/history")
	group.Get("/runs", h.HandleListRuns)
	group.Get("/runs/:run_id/audit", h.HandleAuditTrail)
}

// HandleListRuns lists persisted runs, newest first. Supports ?limit=N.
func (h *Handler) HandleListRuns(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	records, err := h.service.ListRuns(c.QueryInt("limit"))
	if err != nil {
		l.Error("Run listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if records == nil {
		records = []RunRecord{}
	}
	return c.JSON(records)
}

// HandleAuditTrail returns the audit entries of one run.
func (h *Handler) HandleAuditTrail(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	entries, err := h.service.AuditTrail(c.Params("run_id"))
	if err != nil {
		l.Error("Audit trail lookup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if entries == nil {
		entries = []AuditEntry{}
	}
	return c.JSON(entries)
}
