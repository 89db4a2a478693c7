package server

import (
	"crypto/subtle"
	"strings"

	"postpilot/internal/middleware"
	"postpilot/internal/models"
	"postpilot/internal/observability"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel/attribute"
)

// TriggerAuth authenticates machine callers of the auto-post trigger. Two
// credentials are accepted: the X-Trigger-Caller header matching the
// configured trusted caller (set by the platform cron), or a bearer token
// matching the trigger secret. With neither credential configured the
// endpoint fails closed and rejects every caller.
func (s *Server) TriggerAuth(c *fiber.Ctx) error {
	if !s.config.TriggerAuthConfigured() {
		middleware.Logger.WarnContext(c.UserContext(),
			"trigger rejected: no trigger credential configured")
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Trigger authentication not configured"))
	}

	if caller := c.Get("X-Trigger-Caller"); caller != "" && s.config.TrustedCaller != "" {
		if subtle.ConstantTimeCompare([]byte(caller), []byte(s.config.TrustedCaller)) == 1 {
			c.Locals("triggerCaller", caller)
			return c.Next()
		}
	}

	if auth := c.Get("Authorization"); auth != "" && s.config.TriggerSecret != "" {
		parts := strings.Split(auth, " ")
		if len(parts) == 2 && parts[0] == "Bearer" &&
			subtle.ConstantTimeCompare([]byte(parts[1]), []byte(s.config.TriggerSecret)) == 1 {
			return c.Next()
		}
	}

	return models.RespondWithError(c, fiber.StatusUnauthorized,
		models.NewUnauthorizedError("Invalid trigger credentials"))
}

// RunAutoPost handles POST /api/autopost/run. It runs one sweep synchronously
// and returns the sweep report. Callers that fire repeatedly (cron every
// minute plus a poller) are safe: the per-post claim makes overlapping sweeps
// harmless.
func (s *Server) RunAutoPost(c *fiber.Ctx) error {
	ctx, span := observability.Tracer.Start(c.UserContext(), "server.RunAutoPost")
	defer span.End()

	report, err := s.sweeper.RunSweep(ctx, "cron")
	if err != nil {
		span.SetAttributes(attribute.String("error", err.Error()))
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusOK).JSON(report)
}

// RunAutoPostManual handles POST /api/autopost/run/manual: an authenticated
// admin forcing a sweep outside the schedule, typically after fixing a
// credential or requeueing failed posts.
func (s *Server) RunAutoPostManual(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authentication required"))
	}

	user, err := s.userRepo.GetByID(c.UserContext(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Unknown user"))
	}
	if !user.IsAdmin {
		return models.RespondWithError(c, fiber.StatusForbidden,
			models.NewUnauthorizedError("Admin privileges required"))
	}

	report, err := s.sweeper.RunSweep(c.UserContext(), "manual")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusOK).JSON(report)
}
