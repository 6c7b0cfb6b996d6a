package sync

import (
	"stocklink/feature/audit"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates a new Sync feature. archiver may be nil when report
// archiving is disabled.
func NewFeature(db *gorm.DB, logger *zap.Logger, recorder *audit.Recorder, archiver *Archiver) *Feature {
	svc := NewService(db, logger, recorder, archiver)
	h := NewHandler(svc)
	return &Feature{service: svc, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "sync"
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

// Service exposes the sync service for CLI wiring.
func (f *Feature) Service() *Service {
	return f.service
}
