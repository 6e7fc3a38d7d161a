package handler

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-essay-api/internal/dto"
	"github.com/noah-isme/gema-essay-api/internal/service"
	"github.com/noah-isme/gema-essay-api/internal/utils"
)

// RevisionHandler exposes re-evaluation endpoints.
type RevisionHandler struct {
	service service.RevisionService
	logger  zerolog.Logger
}

// NewRevisionHandler builds a revision handler.
func NewRevisionHandler(service service.RevisionService, logger zerolog.Logger) *RevisionHandler {
	return &RevisionHandler{
		service: service,
		logger:  logger.With().Str("component", "revision_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group.
func (h *RevisionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Post("/:submissionId", h.reevaluate)
	router.Get("/:id", h.get)
}

func (h *RevisionHandler) reevaluate(c *fiber.Ctx) error {
	submissionID, err := parseUintParam(c, "submissionId")
	if err != nil {
		return utils.SendFailed(c, fiber.StatusBadRequest, err.Error())
	}

	revision, err := h.service.Reevaluate(c.UserContext(), submissionID)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendOK(c, revision, nil)
}

func (h *RevisionHandler) list(c *fiber.Ctx) error {
	page, err := parsePageQuery(c)
	if err != nil {
		return utils.SendFailed(c, fiber.StatusBadRequest, err.Error())
	}

	query := dto.RevisionListQuery{PageQuery: page, Sort: c.Query("sort")}
	revisions, total, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return handleError(c, h.logger, err)
	}

	return utils.SendOK(c, revisions, utils.PageMeta{Page: page.Page, Size: page.Size, Total: total})
}

func (h *RevisionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendFailed(c, fiber.StatusBadRequest, err.Error())
	}

	revision, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		if errors.Is(err, service.ErrRevisionNotFound) {
			return utils.SendFailed(c, fiber.StatusOK, fmt.Sprintf("Revision %d not found", id))
		}
		return handleError(c, h.logger, err)
	}

	return utils.SendOK(c, revision, nil)
}
