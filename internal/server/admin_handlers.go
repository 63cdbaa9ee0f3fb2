package server

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/service"
	"github.com/gofiber/fiber/v2"
)

const recentLogs = 5

func (s *Server) handleAdminListHosts(c *fiber.Ctx) error {
	views, err := s.hostSvc.ListViews(c.UserContext())
	if err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success("ok", views))
}

func (s *Server) handleAdminGetHost(c *fiber.Ctx) error {
	host, err := s.hostSvc.Get(c.UserContext(), decodePathSegment(c.Params("key")))
	if err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success("ok", host))
}

func (s *Server) handleAdminUpsertHost(c *fiber.Ctx) error {
	var req service.HostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.ErrorWithCode(model.ValidationCode, "malformed request body", nil))
	}
	host, err := s.hostSvc.Upsert(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success("host saved", host))
}

func (s *Server) handleAdminGenerateHost(c *fiber.Ctx) error {
	var req service.HostRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(model.ErrorWithCode(model.ValidationCode, "malformed request body", nil))
	}
	host, err := s.hostSvc.Generate(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success("host generated", host))
}

func (s *Server) handleAdminActivateHost(c *fiber.Ctx) error {
	return s.handleHostStatusChange(c, model.HostStatusActive, "host activated")
}

func (s *Server) handleAdminStopHost(c *fiber.Ctx) error {
	return s.handleHostStatusChange(c, model.HostStatusStop, "host stopped")
}

func (s *Server) handleHostStatusChange(c *fiber.Ctx, status, msg string) error {
	if _, err := s.hostSvc.UpdateStatus(c.UserContext(), decodePathSegment(c.Params("key")), status); err != nil {
		return s.respondError(c, err, nil)
	}
	return c.JSON(model.Success(msg, nil))
}

func (s *Server) handleAdminSummary(c *fiber.Ctx) error {
	ctx := c.UserContext()
	hosts, err := s.hostSvc.List(ctx)
	if err != nil {
		return s.respondError(c, err, nil)
	}
	active := 0
	for _, h := range hosts {
		if h.Active() {
			active++
		}
	}
	logs, err := s.store.ListNotifyLogs(ctx)
	if err != nil {
		s.log.WithError(err).Warn("list notify logs failed")
		logs = nil
	}
	sort.Slice(logs, func(i, j int) bool {
		return logs[i].CreatedAt.After(logs[j].CreatedAt)
	})

	todayStart := time.Now().UTC().Truncate(24 * time.Hour)
	todaySent, todaySuccess := 0, 0
	for _, log := range logs {
		if log.CreatedAt.Before(todayStart) {
			break
		}
		todaySent++
		if strings.EqualFold(log.Status, model.NotifyStatusSuccess) {
			todaySuccess++
		}
	}
	recent := make([]fiber.Map, 0, recentLogs)
	for _, log := range logs[:min(len(logs), recentLogs)] {
		recent = append(recent, fiber.Map{
			"title":        log.Title,
			"notification": log.Notification,
			"status":       log.Status,
			"host":         log.Host,
			"time":         log.CreatedAt.Local().Format("01-02 15:04"),
		})
	}
	return c.JSON(model.Success("ok", fiber.Map{
		"application":  s.cfg.GNTP.Application,
		"active":       active,
		"total":        len(hosts),
		"todaySent":    todaySent,
		"todaySuccess": todaySuccess,
		"recentLogs":   recent,
	}))
}
