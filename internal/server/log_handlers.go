package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleLogList(c *fiber.Ctx) error {
	page, err := s.logSvc.Query(c.UserContext(), parseLogFilter(c))
	if err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success("ok", page))
}

func (s *Server) handleLogCountDate(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.logSvc.CountByDate(c.UserContext(), c.Query("dateType", "day"), begin, end)
	if err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) handleLogCountStatus(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.logSvc.CountByStatus(c.UserContext(), begin, end)
	if err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) handleLogCountNotification(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.logSvc.CountByNotification(c.UserContext(), begin, end)
	if err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success("ok", data))
}

func (s *Server) handleLogCountHost(c *fiber.Ctx) error {
	begin, end := parseTimeRange(c)
	data, err := s.logSvc.CountByHost(c.UserContext(), begin, end)
	if err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success("ok", data))
}

func parseLogFilter(c *fiber.Ctx) model.NotifyLogFilter {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	pageSize, _ := strconv.Atoi(c.Query("pageSize", "10"))
	begin, end := parseTimeRange(c)
	return model.NotifyLogFilter{
		Host:         c.Query("host"),
		Notification: c.Query("notification"),
		Status:       c.Query("status"),
		BeginTime:    begin,
		EndTime:      end,
		Page:         page,
		PageSize:     pageSize,
	}
}

func parseTimeRange(c *fiber.Ctx) (*time.Time, *time.Time) {
	return parseTime(c.Query("beginTime")), parseTime(c.Query("endTime"))
}

func parseTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}
