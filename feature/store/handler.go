package store

import (
	"errors"

	"stocklink/core/logger"
	"stocklink/core/middleware/tenant"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var validate = validator.New()

// Handler handles HTTP requests for stores.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the store routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/stores")
	group.Post("/", h.HandleCreate)
	group.Get("/", h.HandleList)
	group.Get("/:id", h.HandleGet)
}

// HandleCreate creates a store connection.
// @Summary Create store
// @Description Create a marketplace connection for the tenant.
// @Tags stores
// @Accept json
// @Produce json
// @Param payload body CreateStoreRequest true "Store"
// @Success 201 {object} Store
// @Failure 400 {object} map[string]string
// @Router /stores [post]
func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req CreateStoreRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	st, err := h.service.Create(c.Context(), tenant.FromCtx(c), req)
	if err != nil {
		l.Error("Store create failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(st)
}

// HandleList lists the tenant's stores.
// @Summary List stores
// @Tags stores
// @Produce json
// @Success 200 {array} Store
// @Router /stores [get]
func (h *Handler) HandleList(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	stores, err := h.service.List(c.Context(), tenant.FromCtx(c))
	if err != nil {
		l.Error("Store list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(stores)
}

// HandleGet returns one store.
// @Summary Get store
// @Tags stores
// @Produce json
// @Param id path string true "Store ID"
// @Success 200 {object} Store
// @Failure 404 {object} map[string]string
// @Router /stores/{id} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid store id"})
	}

	st, err := h.service.Get(c.Context(), tenant.FromCtx(c), id)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(st)
}
