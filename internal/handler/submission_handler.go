package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-api/internal/dto"
	"github.com/noah-isme/gema-essay-api/internal/middleware"
	"github.com/noah-isme/gema-essay-api/internal/service"
	"github.com/noah-isme/gema-essay-api/internal/utils"
)

// SubmissionHandler manages essay submission endpoints.
type SubmissionHandler struct {
	service     service.SubmissionService
	createLimit fiber.Handler
	logger      zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance. createLimit may be nil.
func NewSubmissionHandler(service service.SubmissionService, createLimit fiber.Handler, logger zerolog.Logger) *SubmissionHandler {
	if createLimit == nil {
		createLimit = func(c *fiber.Ctx) error { return c.Next() }
	}
	return &SubmissionHandler{
		service:     service,
		createLimit: createLimit,
		logger:      logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("", h.createLimit, h.create)
	router.Get("/:id", h.get)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	query, err := parsePageQuery(c)
	if err != nil {
		return utils.SendFailed(c, fiber.StatusBadRequest, err.Error())
	}

	submissions, total, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendOK(c, submissions, utils.PageMeta{Page: query.Page, Size: query.Size, Total: total})
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	var payload dto.SubmissionCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendFailed(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.Create(c.UserContext(), payload, middleware.GetTraceID(c))
	if err != nil {
		return handleError(c, h.logger, err)
	}

	middleware.SetSubmissionID(c, submission.ID)
	return utils.SendOK(c, submission, nil)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendFailed(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendOK(c, submission, nil)
}
