package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-api/internal/dto"
	"github.com/noah-isme/gema-essay-api/internal/middleware"
	"github.com/noah-isme/gema-essay-api/internal/service"
	"github.com/noah-isme/gema-essay-api/internal/utils"
)

func parseQueryInt(c *fiber.Ctx, key string) (int, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func parsePageQuery(c *fiber.Ctx) (dto.PageQuery, error) {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return dto.PageQuery{}, errors.New("invalid page")
	}
	size, err := parseQueryInt(c, "size")
	if err != nil {
		return dto.PageQuery{}, errors.New("invalid size")
	}
	return dto.PageQuery{Page: page, Size: size}.Normalize(), nil
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if traceID := middleware.GetTraceID(c); traceID != "" {
			logger = base.With().Str("trace_id", traceID).Logger()
		}
	}
	return &logger
}

// handleError renders client errors as "failed" envelopes and hands server errors
// back to the trace interceptor and error handler.
func handleError(c *fiber.Ctx, logger zerolog.Logger, err error) error {
	var validationErrors validator.ValidationErrors
	var processingErr *service.ProcessingError

	switch {
	case errors.As(err, &validationErrors):
		return utils.SendFailed(c, fiber.StatusBadRequest, validationErrors.Error())
	case errors.Is(err, service.ErrInvalidStudentName):
		return utils.SendFailed(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateSubmission):
		return utils.SendFailed(c, fiber.StatusBadRequest, "Already evaluated for this student and componentType.")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendFailed(c, fiber.StatusNotFound, "submission not found")
	case errors.As(err, &processingErr):
		middleware.SetSubmissionID(c, processingErr.SubmissionID)
		requestLogger(logger, c).Error().Err(err).Uint("submission_id", processingErr.SubmissionID).Msg("submission processing failed")
		return err
	default:
		requestLogger(logger, c).Error().Err(err).Msg("internal server error")
		return err
	}
}
