package audit

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	recorder *Recorder
	handler  *Handler
}

// NewFeature creates a new Audit feature.
func NewFeature(db *gorm.DB, logger *zap.Logger) *Feature {
	rec := NewRecorder(db)
	h := NewHandler(rec, logger)
	return &Feature{recorder: rec, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "audit"
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

// Recorder exposes the feature's recorder for other features.
func (f *Feature) Recorder() *Recorder {
	return f.recorder
}
