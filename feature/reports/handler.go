package reports

import (
	"errors"
	"fmt"
	"strings"

	"recon-engine/core/logger"
	"recon-engine/core/recon"
	"recon-engine/feature/reconciliation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for report export and archiving.
type Handler struct {
	recon    *reconciliation.Service
	exporter *Exporter
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(recon *reconciliation.Service, exporter *Exporter, logger *zap.Logger) *Handler {
	return &Handler{recon: recon, exporter: exporter, logger: logger}
}

// RegisterRoutes registers the report export routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/reports")
	group.Get("/archive", h.HandleListArchive)
	group.Get("/:kind/export", h.HandleExport)
	group.Post("/:kind/archive", h.HandleArchive)
}

func (h *Handler) buildReport(c *fiber.Ctx) (*recon.Report, Format, error) {
	kind, err := recon.ParseReportKind(c.Params("kind"))
	if err != nil {
		return nil, "", err
	}
	format, err := ParseFormat(c.Query("format"))
	if err != nil {
		return nil, "", err
	}
	report, err := h.recon.Report(kind)
	if err != nil {
		return nil, "", err
	}
	return report, format, nil
}

// HandleExport renders a report for download. Supports ?format=text|xlsx.
func (h *Handler) HandleExport(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	report, format, err := h.buildReport(c)
	if err != nil {
		return exportError(c, l, err)
	}

	data, err := h.exporter.Render(report, format)
	if err != nil {
		l.Error("Report rendering failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	filename := fmt.Sprintf("%s-report.%s", strings.ToLower(string(report.Kind)), format.Ext())
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}

// HandleArchive renders a report and uploads it to object storage.
func (h *Handler) HandleArchive(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	report, format, err := h.buildReport(c)
	if err != nil {
		return exportError(c, l, err)
	}

	objectName, err := h.exporter.Archive(c.Context(), report, format)
	if err != nil {
		l.Error("Report archiving failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"object": objectName})
}

// HandleListArchive lists previously archived reports.
func (h *Handler) HandleListArchive(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	names, err := h.exporter.List(c.Context())
	if err != nil {
		l.Error("Archive listing failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(fiber.Map{"objects": names})
}

func exportError(c *fiber.Ctx, l *zap.Logger, err error) error {
	if errors.Is(err, recon.ErrNoCompletedRun) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	// Parse failures are client errors, everything else is server-side.
	if strings.HasPrefix(err.Error(), "unknown report kind") || strings.HasPrefix(err.Error(), "unknown export format") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	l.Error("Report build failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
