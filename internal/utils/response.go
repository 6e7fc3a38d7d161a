package utils

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestStartKey is the fiber local holding the time a request entered the API.
const RequestStartKey = "request_started_at"

// Result values carried by every envelope.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// APIResponse describes the common structure for API responses.
type APIResponse struct {
	Result     string      `json:"result"`
	Message    *string     `json:"message"`
	APILatency int64       `json:"apiLatency"`
	Data       interface{} `json:"data,omitempty"`
	Meta       interface{} `json:"meta,omitempty"`
}

// PageMeta is attached to paginated listings.
type PageMeta struct {
	Page  int   `json:"page"`
	Size  int   `json:"size"`
	Total int64 `json:"total"`
}

// SendOK sends a 200 envelope with result "ok".
func SendOK(c *fiber.Ctx, data interface{}, meta interface{}) error {
	return SendOKWithStatus(c, fiber.StatusOK, data, meta)
}

// SendOKWithStatus sends an "ok" envelope using the provided HTTP status code.
func SendOKWithStatus(c *fiber.Ctx, status int, data interface{}, meta interface{}) error {
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Result:     ResultOK,
		APILatency: elapsedMillis(c),
		Data:       data,
		Meta:       meta,
	})
}

// SendFailed sends a "failed" envelope. Business failures use status 200.
func SendFailed(c *fiber.Ctx, status int, message string) error {
	if message == "" {
		message = "request failed"
	}
	if status == 0 {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(APIResponse{
		Result:     ResultFailed,
		Message:    &message,
		APILatency: elapsedMillis(c),
	})
}

// StatusFromError maps an error returned by a handler to its HTTP status.
func StatusFromError(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders errors that escaped every handler as "failed" envelopes.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return SendFailed(c, StatusFromError(err), err.Error())
}

func elapsedMillis(c *fiber.Ctx) int64 {
	started, ok := c.Locals(RequestStartKey).(time.Time)
	if !ok {
		return 0
	}
	elapsed := time.Since(started).Milliseconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
