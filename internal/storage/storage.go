package storage

import (
	"context"

	"github.com/bark-labs/gntp-notify/internal/model"
)

// Store abstracts host and delivery log persistence.
type Store interface {
	UpsertHost(ctx context.Context, host *model.Host) error
	GetHost(ctx context.Context, key string) (*model.Host, error)
	GetHostByAddress(ctx context.Context, address string) (*model.Host, error)
	ListHosts(ctx context.Context) ([]*model.Host, error)
	ListActiveHosts(ctx context.Context) ([]*model.Host, error)
	AppendNotifyLog(ctx context.Context, log *model.NotifyLog) error
	ListNotifyLogs(ctx context.Context) ([]*model.NotifyLog, error)
	Close() error
}
