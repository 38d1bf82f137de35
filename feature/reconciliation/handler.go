package reconciliation

import (
	"context"
	"errors"
	"time"

	"recon-engine/core/logger"
	"recon-engine/core/recon"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the reconciliation engine.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the reconciliation routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/reconciliation")
	group.Post("/internal", h.HandleIngestInternal)
	group.Post("/external", h.HandleIngestExternal)
	group.Post("/runs", h.HandleStartRun)
	group.Post("/batches", h.HandleStartBatch)
	group.Get("/state", h.HandleState)
	group.Get("/summary", h.HandleSummary)
	group.Get("/history", h.HandleHistory)
	group.Get("/discrepancies/unresolved", h.HandleUnresolved)
	group.Get("/metrics", h.HandleMetrics)
	group.Get("/reports/:kind", h.HandleReport)
}

// HandleIngestInternal ingests a batch of internal ledger records.
func (h *Handler) HandleIngestInternal(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var records []recon.InternalRecord
	if err := c.BodyParser(&records); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid record payload"})
	}

	accepted, err := h.service.IngestInternal(records)
	if err != nil {
		if errors.Is(err, recon.ErrIngestLocked) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Internal ingest failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("Internal records ingested", zap.Int("accepted", accepted), zap.Int("received", len(records)))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted": accepted,
		"dropped":  len(records) - accepted,
	})
}

// HandleIngestExternal ingests a batch of settlement feed records.
func (h *Handler) HandleIngestExternal(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var records []recon.ExternalRecord
	if err := c.BodyParser(&records); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid record payload"})
	}

	accepted, err := h.service.IngestExternal(records)
	if err != nil {
		if errors.Is(err, recon.ErrIngestLocked) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("External ingest failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("External records ingested", zap.Int("accepted", accepted), zap.Int("received", len(records)))
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted": accepted,
		"dropped":  len(records) - accepted,
	})
}

// HandleStartRun starts a reconciliation run over the ingested snapshot.
// With ?wait=true the request blocks until the run finishes and returns the
// summary; otherwise it returns 202 immediately.
func (h *Handler) HandleStartRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	// Runs outlive the request; fasthttp recycles the request context after
	// the handler returns, so the run gets its own.
	handle, err := h.service.StartRun(context.Background())
	if err != nil {
		if errors.Is(err, recon.ErrRunInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Run start failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if c.Query("wait") != "true" {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"state": recon.StateProcessing})
	}

	summary, err := handle.Wait(c.Context())
	if err != nil {
		l.Error("Run failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(summary)
}

// HandleStartBatch reconciles a sequence of pre-assembled snapshots.
func (h *Handler) HandleStartBatch(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var batches []recon.Batch
	if err := c.BodyParser(&batches); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid batch payload"})
	}

	handle, err := h.service.StartBatch(context.Background(), batches)
	if err != nil {
		if errors.Is(err, recon.ErrRunInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Batch start failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if c.Query("wait") != "true" {
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"state":   recon.StateBatchProcessing,
			"batches": len(batches),
		})
	}

	summaries, err := handle.Wait(c.Context())
	if err != nil {
		l.Error("Batch failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(summaries)
}

// HandleState returns the engine lifecycle state.
func (h *Handler) HandleState(c *fiber.Ctx) error {
	state, lastErr := h.service.State()
	resp := fiber.Map{"state": state}
	if lastErr != nil {
		resp["last_error"] = lastErr.Error()
	}
	return c.JSON(resp)
}

// HandleSummary returns the most recent run's summary.
func (h *Handler) HandleSummary(c *fiber.Ctx) error {
	summary, err := h.service.LatestSummary()
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(summary)
}

// HandleHistory returns the summaries of all completed runs, oldest first.
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	return c.JSON(h.service.History())
}

// HandleUnresolved returns the unresolved discrepancies of the latest run.
func (h *Handler) HandleUnresolved(c *fiber.Ctx) error {
	discrepancies, err := h.service.Unresolved()
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if discrepancies == nil {
		discrepancies = []recon.Discrepancy{}
	}
	return c.JSON(discrepancies)
}

// HandleMetrics returns the engine counters and per-run history series.
func (h *Handler) HandleMetrics(c *fiber.Ctx) error {
	return c.JSON(h.service.Metrics())
}

// HandleReport renders a report of the requested kind. The default is the
// plain-text rendering; ?format=json returns the structured report.
func (h *Handler) HandleReport(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	kind, err := recon.ParseReportKind(c.Params("kind"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	start := time.Now()
	report, err := h.service.Report(kind)
	if err != nil {
		if errors.Is(err, recon.ErrNoCompletedRun) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Report build failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	l.Info("Report built", zap.String("kind", string(kind)), zap.Duration("took", time.Since(start)))

	if c.Query("format") == "json" {
		return c.JSON(report)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.SendString(report.Format())
}
