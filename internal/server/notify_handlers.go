package server

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/service"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleNotifyQuery(c *fiber.Ctx) error {
	return s.dispatchNotify(c, notifyFromQuery(c))
}

func (s *Server) handleNotifyPath(c *fiber.Ctx) error {
	req := notifyFromQuery(c)
	req.Title = decodePathSegment(c.Params("title"))
	req.Message = decodePathSegment(c.Params("message"))
	return s.dispatchNotify(c, req)
}

func (s *Server) handleNotifyPost(c *fiber.Ctx) error {
	var req model.NotifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.ErrorWithCode(model.ValidationCode, "malformed request body", nil))
	}
	return s.dispatchNotify(c, req)
}

func (s *Server) dispatchNotify(c *fiber.Ctx, req model.NotifyRequest) error {
	if err := checkRemoteIcons(req); err != nil {
		return s.respondError(c, err, nil)
	}
	result, err := s.notifySvc.Send(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err, result)
	}
	return c.JSON(model.Success(result.Message, result))
}

func (s *Server) handleNotifyBroadcast(c *fiber.Ctx) error {
	var req model.NotifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(model.ErrorWithCode(model.ValidationCode, "malformed request body", nil))
	}
	if err := checkRemoteIcons(req); err != nil {
		return s.respondError(c, err, nil)
	}
	summary, results, err := s.notifySvc.Broadcast(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err, results)
	}
	return c.JSON(model.Success(
		fmt.Sprintf("Notification was sent to %d of %d hosts", summary.SuccessNum, summary.SendNum),
		fiber.Map{"summary": summary, "results": results},
	))
}

// checkRemoteIcons keeps HTTP callers from naming files on the relay's disk.
func checkRemoteIcons(req model.NotifyRequest) error {
	for _, ref := range []string{req.AppIcon, req.Icon} {
		ref = strings.ToLower(strings.TrimSpace(ref))
		if ref != "" && !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
			return fmt.Errorf("%w: icons must be http(s) URLs", service.ErrInvalidInput)
		}
	}
	return nil
}

func notifyFromQuery(c *fiber.Ctx) model.NotifyRequest {
	sticky, _ := strconv.ParseBool(c.Query("sticky", "false"))
	return model.NotifyRequest{
		Message:      c.Query("message"),
		Title:        c.Query("title"),
		Notification: c.Query("notification"),
		Sticky:       sticky,
		Priority:     c.Query("priority"),
		AppIcon:      c.Query("appicon"),
		Icon:         c.Query("icon"),
		Host:         c.Query("host"),
		CoalescingID: c.Query("coalescingId"),
	}
}

func decodePathSegment(value string) string {
	if value == "" {
		return value
	}
	decoded, err := url.PathUnescape(value)
	if err != nil {
		return value
	}
	return decoded
}
