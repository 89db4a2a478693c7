package server

import (
	"encoding/json"
	"errors"
	"time"

	"postpilot/internal/content"
	"postpilot/internal/models"
	"postpilot/internal/timeutil"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// CreateScheduleRequest is the scheduling payload. ScheduledFor is wall-clock
// time in the product reference zone ("2006-01-02 15:04"); ScheduledAt is the
// RFC3339 alternative for clients that already speak UTC. Storage is UTC
// either way.
type CreateScheduleRequest struct {
	Payload      map[string]any `json:"payload"`
	ScheduledFor string         `json:"scheduled_for,omitempty"`
	ScheduledAt  string         `json:"scheduled_at,omitempty"`
	Platform     string         `json:"platform,omitempty"`
}

func (r *CreateScheduleRequest) scheduledInstant() (time.Time, error) {
	if r.ScheduledFor != "" {
		return timeutil.ParseLocal(r.ScheduledFor)
	}
	t, err := time.Parse(time.RFC3339, r.ScheduledAt)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ScheduleResponse decorates a post with the wall-clock rendering of its
// scheduled time.
type ScheduleResponse struct {
	*models.ScheduledPost
	ScheduledAtLocal string `json:"scheduled_at_local"`
}

func scheduleResponse(post *models.ScheduledPost) ScheduleResponse {
	return ScheduleResponse{
		ScheduledPost:    post,
		ScheduledAtLocal: timeutil.ToLocalDisplay(post.ScheduledAt),
	}
}

// CreateSchedule handles POST /api/schedule. Content is validated up front so
// users hear about empty or overlong bodies at scheduling time rather than
// from a failed publish. The stored payload is the raw client payload;
// cleaning happens again at publish time.
func (s *Server) CreateSchedule(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authentication required"))
	}

	var req CreateScheduleRequest
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	if len(req.Payload) == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("payload is required"))
	}
	if _, err := content.Process(req.Payload); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError(err.Error()))
	}

	scheduledAt, err := req.scheduledInstant()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("scheduled_for must be '"+timeutil.LocalLayout+"' wall-clock, or scheduled_at RFC3339"))
	}

	platform := models.Platform(req.Platform)
	if platform == "" {
		platform = models.PlatformLinkedIn
	}
	switch platform {
	case models.PlatformLinkedIn, models.PlatformTwitter, models.PlatformFacebook:
	default:
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("unsupported platform"))
	}

	rawPayload, err := json.Marshal(req.Payload)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("payload is not serializable"))
	}

	post := &models.ScheduledPost{
		UserID:      userID,
		Payload:     string(rawPayload),
		Platform:    platform,
		ScheduledAt: scheduledAt,
		Status:      models.StatusPending,
	}

	if err := s.postRepo.Create(c.UserContext(), post); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.Status(fiber.StatusCreated).JSON(scheduleResponse(post))
}

// ListSchedules handles GET /api/schedule with limit/offset pagination.
func (s *Server) ListSchedules(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authentication required"))
	}

	limit, offset := parsePagination(c)

	posts, err := s.postRepo.ListByUser(c.UserContext(), userID, limit, offset)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	out := make([]ScheduleResponse, 0, len(posts))
	for _, p := range posts {
		out = append(out, scheduleResponse(p))
	}

	return c.JSON(fiber.Map{
		"schedules": out,
		"limit":     limit,
		"offset":    offset,
	})
}

// GetSchedule handles GET /api/schedule/:id.
func (s *Server) GetSchedule(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authentication required"))
	}

	id, err := parseID(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid schedule ID"))
	}

	post, err := s.postRepo.GetByID(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RespondWithError(c, fiber.StatusNotFound,
				models.NewNotFoundError("Schedule", id))
		}
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	// Owner-scoped: other users' schedules are indistinguishable from absent.
	if post.UserID != userID {
		return models.RespondWithError(c, fiber.StatusNotFound,
			models.NewNotFoundError("Schedule", id))
	}

	return c.JSON(scheduleResponse(post))
}

// CancelSchedule handles POST /api/schedule/:id/cancel. Only pending posts
// can be cancelled; a post mid-publish or already terminal reports a conflict.
func (s *Server) CancelSchedule(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authentication required"))
	}

	id, err := parseID(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid schedule ID"))
	}

	cancelled, err := s.postRepo.Cancel(c.UserContext(), id, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if !cancelled {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewConflictError("Schedule is not pending or does not exist"))
	}

	return c.JSON(fiber.Map{"message": "Schedule cancelled"})
}

// RequeueSchedule handles POST /api/schedule/:id/requeue, moving a failed
// post back to pending. This is the only retry path for failed posts.
func (s *Server) RequeueSchedule(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authentication required"))
	}

	id, err := parseID(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid schedule ID"))
	}

	requeued, err := s.postRepo.Requeue(c.UserContext(), id, userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}
	if !requeued {
		return models.RespondWithError(c, fiber.StatusConflict,
			models.NewConflictError("Schedule is not failed or does not exist"))
	}

	return c.JSON(fiber.Map{"message": "Schedule requeued"})
}

// DeleteSchedule handles DELETE /api/schedule/:id.
func (s *Server) DeleteSchedule(c *fiber.Ctx) error {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authentication required"))
	}

	id, err := parseID(c)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid schedule ID"))
	}

	if err := s.postRepo.Delete(c.UserContext(), id, userID); err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError,
			models.NewInternalError(err))
	}

	return c.JSON(fiber.Map{"message": "Schedule deleted"})
}
