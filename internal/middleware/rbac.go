package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/gema-essay-api/internal/utils"
)

// Roles allowed on operator endpoints.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// RequireRole rejects requests whose token role is not one of roles.
func RequireRole(roles ...string) fiber.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if normalized := strings.ToLower(strings.TrimSpace(role)); normalized != "" {
			allowed[normalized] = struct{}{}
		}
	}

	return func(c *fiber.Ctx) error {
		role, _ := c.Locals("user_role").(string)
		if _, ok := allowed[strings.ToLower(strings.TrimSpace(role))]; !ok {
			return utils.SendFailed(c, fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
