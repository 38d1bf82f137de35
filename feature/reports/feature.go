package reports

import (
	"recon-engine/core/storage"
	"recon-engine/feature/reconciliation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	handler *Handler
}

// NewFeature creates the report export feature. The storage client may be
// nil; export still works, archiving returns an error.
func NewFeature(recon *reconciliation.Service, client storage.Client, bucket string, logger *zap.Logger) *Feature {
	exporter := NewExporter(client, bucket, logger)
	h := NewHandler(recon, exporter, logger)
	return &Feature{handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "reports"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}
