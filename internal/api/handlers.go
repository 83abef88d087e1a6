package api

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/charterpay/dues-distribution-engine/internal/interfaces"
	"github.com/charterpay/dues-distribution-engine/internal/models"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// listEntries serves the audit query: filters on status, recipient charter,
// and creation date range, with page/limit paging.
func (s *Server) listEntries(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	page, err := parsePositiveInt(c.Query("page"), 1)
	if err != nil {
		return badRequest(c, "invalid page")
	}
	limit, err := parsePositiveInt(c.Query("limit"), 0)
	if err != nil {
		return badRequest(c, "invalid limit")
	}

	result, err := s.audit.Query(c.Context(), filter, page, limit)
	if err != nil {
		s.log.Error("audit query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
			Code:    "internal",
			Message: "query failed",
		})
	}
	return c.JSON(result)
}

// retryEntry is the explicit operator action moving a failed entry back to
// pending. The poll loop picks it up from there.
func (s *Server) retryEntry(c *fiber.Ctx) error {
	entry, err := s.writer.RetryFailed(c.Context(), c.Params("id"))
	switch {
	case errors.Is(err, interfaces.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(errorResponse{
			Code:    "not_found",
			Message: "no such ledger entry",
		})
	case errors.Is(err, interfaces.ErrInvalidTransition):
		return c.Status(fiber.StatusConflict).JSON(errorResponse{
			Code:    "invalid_state",
			Message: "only failed entries can be retried",
		})
	case err != nil:
		s.log.Error("retry failed", zap.String("entry_id", c.Params("id")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
			Code:    "internal",
			Message: "retry failed",
		})
	}
	return c.JSON(entry)
}

// voidContribution cancels a contribution's not-yet-transferred entries
// without calling the provider, for contributions voided upstream before any
// money moved.
func (s *Server) voidContribution(c *fiber.Ctx) error {
	voided, err := s.writer.VoidPending(c.Context(), c.Params("id"))
	if err != nil {
		s.log.Error("void failed", zap.String("contribution_id", c.Params("id")), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(errorResponse{
			Code:    "internal",
			Message: "void failed",
		})
	}
	return c.JSON(fiber.Map{"voided": voided})
}

func parseFilter(c *fiber.Ctx) (models.EntryFilter, error) {
	var filter models.EntryFilter

	if status := c.Query("status"); status != "" {
		switch s := models.EntryStatus(status); s {
		case models.StatusPending, models.StatusTransferred, models.StatusReversed, models.StatusFailed:
			filter.Status = s
		default:
			return models.EntryFilter{}, errors.Errorf("unknown status %q", status)
		}
	}

	filter.CharterID = c.Query("charter_id")

	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			return models.EntryFilter{}, errors.New("invalid from timestamp, want RFC3339")
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			return models.EntryFilter{}, errors.New("invalid to timestamp, want RFC3339")
		}
		filter.To = &t
	}
	return filter, nil
}

func parsePositiveInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.Errorf("invalid integer %q", raw)
	}
	return v, nil
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorResponse{
		Code:    "bad_request",
		Message: msg,
	})
}
