package audit

import (
	"stocklink/core/logger"
	"stocklink/core/middleware/tenant"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for audit logs.
type Handler struct {
	recorder *Recorder
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(recorder *Recorder, logger *zap.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

// RegisterRoutes registers the audit routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/audit")
	group.Get("/", h.HandleList)
}

// HandleList lists the tenant's audit entries.
// @Summary List audit logs
// @Tags audit
// @Produce json
// @Param entity_type query string false "Entity type filter"
// @Param entity_id query string false "Entity id filter"
// @Success 200 {array} Log
// @Router /audit [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)

	var entityID *uuid.UUID
	if raw := c.Query("entity_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid entity id"})
		}
		entityID = &id
	}

	logs, err := h.recorder.List(c.Context(), tenant.FromCtx(c), c.Query("entity_type"), entityID)
	if err != nil {
		l.Error("Audit list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(logs)
}
