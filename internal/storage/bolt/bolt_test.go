package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHosts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetHost(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)

	office := &model.Host{Key: "a", Name: "office", Address: "10.0.0.5:23053", Status: model.HostStatusActive}
	laptop := &model.Host{Key: "b", Name: "laptop", Address: "laptop.lan:23053", Status: model.HostStatusStop}
	require.NoError(t, s.UpsertHost(ctx, office))
	require.NoError(t, s.UpsertHost(ctx, laptop))
	assert.False(t, office.CreatedAt.IsZero())

	got, err := s.GetHost(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "office", got.Name)

	got, err = s.GetHostByAddress(ctx, "LAPTOP.lan:23053")
	require.NoError(t, err)
	assert.Equal(t, "b", got.Key)

	_, err = s.GetHostByAddress(ctx, "nowhere:1")
	require.ErrorIs(t, err, storage.ErrNotFound)

	all, err := s.ListHosts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Key)

	active, err := s.ListActiveHosts(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "office", active[0].Name)

	created := office.CreatedAt
	office.Name = "office-2"
	require.NoError(t, s.UpsertHost(ctx, office))
	got, err = s.GetHost(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "office-2", got.Name)
	assert.True(t, created.Equal(got.CreatedAt))

	require.Error(t, s.UpsertHost(ctx, &model.Host{Name: "nokey"}))
}

func TestNotifyLogs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, text := range []string{"one", "two", "three"} {
		require.NoError(t, s.AppendNotifyLog(ctx, &model.NotifyLog{Host: "localhost:23053", Text: text, Status: model.NotifyStatusSuccess}))
	}
	logs, err := s.ListNotifyLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 3)
	assert.Equal(t, uint64(1), logs[0].ID)
	assert.Equal(t, "three", logs[2].Text)
	assert.Equal(t, uint64(3), logs[2].ID)
}

func TestCanceledContext(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.UpsertHost(ctx, &model.Host{Key: "a"}), context.Canceled)
	_, err := s.ListNotifyLogs(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
