package tenant

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// HeaderName carries the caller's tenant id. Full tenant resolution (domains,
// sessions) lives outside this service; the API trusts the gateway to set it.
const HeaderName = "X-Tenant-Id"

// New returns a middleware that requires a valid tenant id header and stores
// it in the request locals.
func New() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Get(HeaderName)
		if raw == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing tenant id",
			})
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid tenant id",
			})
		}
		c.Locals("tenant_id", id)
		return c.Next()
	}
}

// FromCtx returns the tenant id resolved by the middleware.
func FromCtx(c *fiber.Ctx) uuid.UUID {
	if id, ok := c.Locals("tenant_id").(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}
