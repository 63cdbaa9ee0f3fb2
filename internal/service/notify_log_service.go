package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/storage"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// NotifyLogService provides filtering and statistics over delivery logs.
type NotifyLogService struct {
	store   storage.Store
	hostSvc *HostService
}

// NewNotifyLogService builds the notify log service. hostSvc is optional and
// only used to label CountByHost with host names.
func NewNotifyLogService(store storage.Store, hostSvc *HostService) *NotifyLogService {
	return &NotifyLogService{store: store, hostSvc: hostSvc}
}

// Query returns paginated logs, newest first.
func (s *NotifyLogService) Query(ctx context.Context, filter model.NotifyLogFilter) (*model.NotifyLogPage, error) {
	logs, err := s.filteredLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	total := len(logs)
	if filter.PageSize <= 0 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	// Pages past the end are empty; checked before multiplying so huge page
	// numbers cannot overflow.
	start := total
	if filter.Page <= total/filter.PageSize+1 {
		start = min((filter.Page-1)*filter.PageSize, total)
	}
	end := min(start+filter.PageSize, total)

	return &model.NotifyLogPage{
		Data:     logs[start:end],
		Total:    total,
		Pages:    (total + filter.PageSize - 1) / filter.PageSize,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// CountByDate aggregates logs per day, month or year.
func (s *NotifyLogService) CountByDate(ctx context.Context, dateType string, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.NotifyLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}
	layout := time.DateOnly
	switch strings.ToLower(dateType) {
	case "year":
		layout = "2006"
	case "month":
		layout = "2006-01"
	}
	return count(logs, "date", func(l *model.NotifyLog) string { return l.CreatedAt.Format(layout) }), nil
}

// CountByStatus aggregates by delivery status.
func (s *NotifyLogService) CountByStatus(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.NotifyLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}
	return count(logs, "status", func(l *model.NotifyLog) string {
		return firstNonEmpty(l.Status, "UNKNOWN")
	}), nil
}

// CountByNotification aggregates by notification type.
func (s *NotifyLogService) CountByNotification(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.NotifyLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}
	return count(logs, "notification", func(l *model.NotifyLog) string {
		return firstNonEmpty(strings.TrimSpace(l.Notification), "DEFAULT")
	}), nil
}

// CountByHost aggregates by target, using stored host names when known.
func (s *NotifyLogService) CountByHost(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.NotifyLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}
	names := make(map[string]string)
	if s.hostSvc != nil {
		if hosts, err := s.hostSvc.List(ctx); err == nil {
			for _, h := range hosts {
				names[strings.ToLower(h.Address)] = firstNonEmpty(h.Name, h.Address)
			}
		}
	}
	return count(logs, "host", func(l *model.NotifyLog) string {
		return firstNonEmpty(names[strings.ToLower(l.Host)], l.Host)
	}), nil
}

func (s *NotifyLogService) filteredLogs(ctx context.Context, filter model.NotifyLogFilter) ([]*model.NotifyLog, error) {
	all, err := s.store.ListNotifyLogs(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]*model.NotifyLog, 0, len(all))
	for _, log := range all {
		if filter.Host != "" && !strings.EqualFold(log.Host, filter.Host) {
			continue
		}
		if filter.Notification != "" && !strings.EqualFold(log.Notification, filter.Notification) {
			continue
		}
		if filter.Status != "" && !strings.EqualFold(log.Status, filter.Status) {
			continue
		}
		if filter.BeginTime != nil && log.CreatedAt.Before(filter.BeginTime.UTC()) {
			continue
		}
		if filter.EndTime != nil && log.CreatedAt.After(filter.EndTime.UTC()) {
			continue
		}
		matches = append(matches, log)
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].ID > matches[j].ID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func count(logs []*model.NotifyLog, key string, label func(*model.NotifyLog) string) []map[string]any {
	counter := make(map[string]int)
	for _, l := range logs {
		counter[label(l)]++
	}
	result := make([]map[string]any, 0, len(counter))
	for k, v := range counter {
		result = append(result, map[string]any{key: k, "count": v})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i][key].(string) < result[j][key].(string)
	})
	return result
}
