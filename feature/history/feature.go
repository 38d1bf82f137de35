package history

import (
	"recon-engine/core/recon"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
	enabled bool
}

// NewFeature creates the history feature. A nil db disables it: the engine
// keeps in-memory history only and no routes are registered.
func NewFeature(db *gorm.DB, engine *recon.Engine, logger *zap.Logger) *Feature {
	var repo *Repository
	if db != nil {
		repo = NewRepository(db)
	}
	svc := NewService(repo, engine, logger)
	h := NewHandler(svc)
	return &Feature{service: svc, handler: h, enabled: db != nil}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "history"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return f.enabled
}

// Load migrates the history tables, starts run persistence, and registers
// the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	if err := f.service.repo.Migrate(); err != nil {
		return err
	}
	f.service.Watch()
	f.handler.RegisterRoutes(app)
	return nil
}
