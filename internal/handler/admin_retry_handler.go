package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-api/internal/dto"
	"github.com/noah-isme/gema-essay-api/internal/service"
	"github.com/noah-isme/gema-essay-api/internal/utils"
)

// AdminRetryHandler lets operators run the retry batch on demand.
type AdminRetryHandler struct {
	service service.RetryService
	logger  zerolog.Logger
}

// NewAdminRetryHandler builds the operator retry handler.
func NewAdminRetryHandler(service service.RetryService, logger zerolog.Logger) *AdminRetryHandler {
	return &AdminRetryHandler{
		service: service,
		logger:  logger.With().Str("component", "admin_retry_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *AdminRetryHandler) Register(router fiber.Router) {
	router.Post("/retry", h.retry)
}

func (h *AdminRetryHandler) retry(c *fiber.Ctx) error {
	report, err := h.service.RetryFailed(c.UserContext())
	if err != nil {
		if errors.Is(err, service.ErrRetryInProgress) {
			return utils.SendFailed(c, fiber.StatusConflict, err.Error())
		}
		return handleError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().Int("selected", report.Selected).Msg("manual retry batch finished")
	return utils.SendOK(c, dto.RetryReportResponse{
		Selected:  report.Selected,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Errors:    report.Errors,
		Duration:  report.Duration.Milliseconds(),
	}, nil)
}
