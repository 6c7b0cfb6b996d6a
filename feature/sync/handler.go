package sync

import (
	"errors"

	"stocklink/core/logger"
	"stocklink/core/middleware/tenant"
	"stocklink/feature/audit"
	"stocklink/feature/store"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var validate = validator.New()

// Handler handles HTTP requests for sync runs.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/preview", h.HandlePreview)
	group.Get("/runs", h.HandleListRuns)
	group.Get("/runs/:id", h.HandleGetRun)
	group.Get("/runs/:id/plan", h.HandleGetPlan)
	group.Post("/runs/:id/approve", h.HandleApprove)
	group.Post("/runs/:id/cancel", h.HandleCancel)
	group.Post("/stores/:id/test-connection", h.HandleTestConnection)
}

// requestContext builds the audit context for an API call. The actor id is
// taken from the X-Actor-Id header when the upstream gateway forwards one.
func requestContext(c *fiber.Ctx) audit.Context {
	actx := audit.Context{
		TenantID:  tenant.FromCtx(c),
		ActorType: "api",
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	if actor, err := uuid.Parse(c.Get("X-Actor-Id")); err == nil {
		actx.ActorID = &actor
	}
	return actx
}

// HandlePreview creates a sync run and builds its change plan.
// @Summary Create sync preview
// @Description Fetch both stores' inventories, diff them and persist a change plan for review.
// @Tags sync
// @Accept json
// @Produce json
// @Param payload body CreatePreviewRequest true "Preview parameters"
// @Success 201 {object} Run
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /sync/preview [post]
func (h *Handler) HandlePreview(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req CreatePreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid payload"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	run, err := h.service.CreatePreview(c.Context(), requestContext(c), req)
	switch {
	case errors.Is(err, ErrSameStore), errors.Is(err, ErrUnsupportedDirection):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		l.Error("Sync preview failed", zap.Error(err))
		if run != nil {
			// The run carries the failure detail; surface it instead of a bare 500.
			return c.Status(fiber.StatusInternalServerError).JSON(run)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(run)
}

// HandleListRuns lists the tenant's sync runs.
// @Summary List sync runs
// @Tags sync
// @Produce json
// @Success 200 {array} Run
// @Router /sync/runs [get]
func (h *Handler) HandleListRuns(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	runs, err := h.service.ListRuns(c.Context(), tenant.FromCtx(c))
	if err != nil {
		l.Error("Sync run list failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(runs)
}

// HandleGetRun returns one sync run.
// @Summary Get sync run
// @Tags sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} Run
// @Failure 404 {object} map[string]string
// @Router /sync/runs/{id} [get]
func (h *Handler) HandleGetRun(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}

	run, err := h.service.GetRun(c.Context(), tenant.FromCtx(c), id)
	if errors.Is(err, ErrRunNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(run)
}

// HandleGetPlan returns a run's plan items in apply order.
// @Summary Get sync plan
// @Tags sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {array} PlanItem
// @Failure 404 {object} map[string]string
// @Router /sync/runs/{id}/plan [get]
func (h *Handler) HandleGetPlan(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}

	items, err := h.service.ListPlanItems(c.Context(), tenant.FromCtx(c), id)
	if errors.Is(err, ErrRunNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(items)
}

// HandleApprove applies a previewed run against the target store.
// @Summary Approve sync run
// @Description Apply the reviewed plan. A FAILED run can be re-approved to resume from its first pending item.
// @Tags sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} Run
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /sync/runs/{id}/approve [post]
func (h *Handler) HandleApprove(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}

	run, err := h.service.ApproveRun(c.Context(), requestContext(c), id)
	switch {
	case errors.Is(err, ErrRunNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrInvalidRunState), errors.Is(err, ErrRunInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case err != nil:
		l.Error("Sync apply failed", zap.String("run_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(run)
	}
	return c.JSON(run)
}

// HandleCancel cancels a pending or previewed run.
// @Summary Cancel sync run
// @Tags sync
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} Run
// @Failure 404 {object} map[string]string
// @Router /sync/runs/{id}/cancel [post]
func (h *Handler) HandleCancel(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid run id"})
	}

	run, err := h.service.CancelRun(c.Context(), requestContext(c), id)
	if errors.Is(err, ErrRunNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(run)
}

// HandleTestConnection probes a store's marketplace credentials.
// @Summary Test store connection
// @Tags sync
// @Produce json
// @Param id path string true "Store ID"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} map[string]string
// @Router /sync/stores/{id}/test-connection [post]
func (h *Handler) HandleTestConnection(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid store id"})
	}

	ok, err := h.service.TestConnection(c.Context(), tenant.FromCtx(c), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"ok": ok})
}
