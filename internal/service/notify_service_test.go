package service

import (
	"context"
	"errors"
	"os"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bark-labs/gntp-notify/internal/config"
	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/bark-labs/gntp-notify/internal/gntp/gntptest"
	"github.com/bark-labs/gntp-notify/internal/growlclient"
	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/storage"
	"github.com/bark-labs/gntp-notify/internal/storage/bolt"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGNTPConfig() config.GNTP {
	return config.GNTP{
		Address:             "localhost:23053",
		Application:         "Builder",
		Notifications:       []string{"Status", "Alert"},
		DefaultNotification: "Status",
		HashAlgorithm:       "SHA256",
		Encryption:          "NONE",
	}
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := bolt.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestNotifyService(t *testing.T, mock *gntptest.MockTransport) (*NotifyService, storage.Store) {
	t.Helper()
	store := newTestStore(t)
	logger, _ := test.NewNullLogger()
	return NewNotifyService(testGNTPConfig(), store, mock, logger), store
}

func TestSendEmptyMessage(t *testing.T) {
	mock := gntptest.NewMockTransport()
	svc, _ := newTestNotifyService(t, mock)

	_, err := svc.Send(context.Background(), model.NotifyRequest{Message: "  "})
	require.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, `"message" attribute cannot be empty`, err.Error())
	assert.Empty(t, mock.Requests())
}

func TestSendRegistersOnce(t *testing.T) {
	mock := gntptest.NewMockTransport()
	mock.AddOK(gntp.ActionRegister)
	mock.AddOK(gntp.ActionNotify)
	mock.AddOK(gntp.ActionNotify)
	svc, store := newTestNotifyService(t, mock)
	ctx := context.Background()

	res, err := svc.Send(ctx, model.NotifyRequest{Message: "Single test message.", Title: "Build"})
	require.NoError(t, err)
	assert.Equal(t, model.NotifyStatusSuccess, res.Status)
	assert.Equal(t, "Notification was sent", res.Message)
	assert.Equal(t, "localhost:23053", res.Host)
	assert.False(t, res.Remote)
	assert.NotEmpty(t, res.NotificationID)

	_, err = svc.Send(ctx, model.NotifyRequest{Message: "again", Notification: "Alert", Sticky: true, Priority: "high"})
	require.NoError(t, err)

	assert.Len(t, mock.RequestsFor(gntp.ActionRegister), 1)
	notifies := mock.RequestsFor(gntp.ActionNotify)
	require.Len(t, notifies, 2)
	h := notifies[1].Message.Headers
	assert.Equal(t, "Alert", h.Get(gntp.HeaderNotificationName))
	assert.Equal(t, "1", h.Get(gntp.HeaderNotificationSticky))
	assert.Equal(t, "1", h.Get(gntp.HeaderNotificationPriority))
	assert.Equal(t, "Builder", h.Get(gntp.HeaderApplicationName))

	logs, err := store.ListNotifyLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "Single test message.", logs[0].Text)
	assert.Equal(t, "Status", logs[0].Notification)
	assert.Equal(t, model.NotifyStatusSuccess, logs[1].Status)
	assert.Equal(t, 1, logs[1].Priority)
}

func TestSendRejectsBadInput(t *testing.T) {
	mock := gntptest.NewMockTransport()
	svc, _ := newTestNotifyService(t, mock)
	ctx := context.Background()

	_, err := svc.Send(ctx, model.NotifyRequest{Message: "x", Priority: "urgent"})
	var verr *gntp.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.Send(ctx, model.NotifyRequest{Message: "x", Icon: filepath.Join(t.TempDir(), "missing.png")})
	require.ErrorIs(t, err, ErrInvalidInput)

	assert.Empty(t, mock.Requests())
}

func TestSendUndeclaredNotification(t *testing.T) {
	mock := gntptest.NewMockTransport()
	mock.AddOK(gntp.ActionRegister)
	svc, store := newTestNotifyService(t, mock)

	res, err := svc.Send(context.Background(), model.NotifyRequest{Message: "x", Notification: "Deploy"})
	var verr *gntp.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.NotifyStatusFailed, res.Status)
	assert.Empty(t, mock.RequestsFor(gntp.ActionNotify))

	logs, err := store.ListNotifyLogs(context.Background())
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, model.NotifyStatusFailed, logs[0].Status)
}

func TestSendIcons(t *testing.T) {
	png := []byte("\x89PNG fake icon")
	path := filepath.Join(t.TempDir(), "warning.png")
	require.NoError(t, os.WriteFile(path, png, 0o600))

	mock := gntptest.NewMockTransport()
	mock.AddOK(gntp.ActionRegister)
	mock.AddOK(gntp.ActionNotify)
	svc, _ := newTestNotifyService(t, mock)

	_, err := svc.Send(context.Background(), model.NotifyRequest{
		Message: "Custom Application and Icon message.",
		AppIcon: "https://example.com/help.ico",
		Icon:    path,
	})
	require.NoError(t, err)

	register := mock.RequestsFor(gntp.ActionRegister)
	require.Len(t, register, 1)
	assert.Equal(t, "https://example.com/help.ico", register[0].Message.Headers.Get(gntp.HeaderApplicationIcon))

	notify := mock.RequestsFor(gntp.ActionNotify)
	require.Len(t, notify, 1)
	id := gntp.IconData(png).ResourceID()
	assert.Equal(t, gntp.ResourceScheme+id, notify[0].Message.Headers.Get(gntp.HeaderNotificationIcon))
	assert.Equal(t, png, notify[0].Message.Resources[id])
}

func TestSendRemoteUsesStoredHost(t *testing.T) {
	mock := gntptest.NewMockTransport()
	mock.AddOK(gntp.ActionRegister)
	mock.AddOK(gntp.ActionNotify)
	svc, store := newTestNotifyService(t, mock)
	ctx := context.Background()

	hosts := NewHostService(store)
	_, err := hosts.Upsert(ctx, HostRequest{Name: "office", Address: "10.0.0.5", Password: "secret"})
	require.NoError(t, err)

	res, err := svc.Send(ctx, model.NotifyRequest{Message: "x", Host: "10.0.0.5"})
	require.NoError(t, err)
	assert.True(t, res.Remote)
	assert.Equal(t, "10.0.0.5:23053", res.Host)
	assert.Equal(t, "Notification was sent to remote host 10.0.0.5", res.Message)

	for _, r := range mock.Requests() {
		assert.Equal(t, "10.0.0.5:23053", r.Addr)
		assert.Contains(t, string(r.Raw), " NONE SHA256:")
	}
}

func TestSendDeliveryFailure(t *testing.T) {
	mock := gntptest.NewMockTransport()
	mock.AddOK(gntp.ActionRegister)
	mock.AddError(gntp.ActionNotify, gntp.ErrCodeUnknownApplication, "Unknown application")
	mock.AddOK(gntp.ActionRegister)
	mock.AddOK(gntp.ActionNotify)
	svc, store := newTestNotifyService(t, mock)
	ctx := context.Background()

	res, err := svc.Send(ctx, model.NotifyRequest{Message: "x"})
	var derr *growlclient.DeliveryError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, model.NotifyStatusFailed, res.Status)
	assert.Contains(t, res.Message, "Unknown application")

	// The session was dropped, so the next send registers again.
	_, err = svc.Send(ctx, model.NotifyRequest{Message: "x"})
	require.NoError(t, err)
	assert.Len(t, mock.RequestsFor(gntp.ActionRegister), 2)

	logs, err := store.ListNotifyLogs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, model.NotifyStatusFailed, logs[0].Status)
	assert.Equal(t, model.NotifyStatusSuccess, logs[1].Status)
}

func TestBroadcast(t *testing.T) {
	mock := gntptest.NewMockTransport()
	mock.AddOK(gntp.ActionRegister)
	mock.AddOK(gntp.ActionNotify)
	mock.FailAddr("10.0.0.2:23053", errors.New("connection refused"))
	svc, store := newTestNotifyService(t, mock)
	ctx := context.Background()

	hosts := NewHostService(store)
	for _, req := range []HostRequest{
		{Name: "one", Address: "10.0.0.1"},
		{Name: "two", Address: "10.0.0.2"},
		{Name: "three", Address: "10.0.0.3", Status: model.HostStatusStop},
	} {
		_, err := hosts.Upsert(ctx, req)
		require.NoError(t, err)
	}

	summary, results, err := svc.Broadcast(ctx, model.NotifyRequest{Message: "deploy finished"})
	require.NoError(t, err)
	assert.Equal(t, model.NotifySummary{SendNum: 2, SuccessNum: 1}, summary)
	require.Len(t, results, 2)
	assert.Equal(t, "10.0.0.1:23053", results[0].Host)
	assert.Equal(t, model.NotifyStatusSuccess, results[0].Status)
	assert.Equal(t, "10.0.0.2:23053", results[1].Host)
	assert.Equal(t, model.NotifyStatusFailed, results[1].Status)
	assert.Contains(t, results[1].Message, "connection refused")

	for _, r := range mock.Requests() {
		assert.NotEqual(t, "10.0.0.3:23053", r.Addr)
	}
}

// slowTransport answers OK to every request after a delay and records how
// many round trips overlapped.
type slowTransport struct {
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (t *slowTransport) RoundTrip(ctx context.Context, addr string, request []byte) ([]byte, error) {
	n := t.inFlight.Add(1)
	defer t.inFlight.Add(-1)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(t.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	msg, err := gntp.DecodeMessage(request, "")
	if err != nil {
		return nil, err
	}
	return gntp.EncodeResponse(gntp.Response{Status: gntp.StatusOK, Action: gntp.Action(msg.Directive)})
}

func TestBroadcastRunsHostsInParallel(t *testing.T) {
	const hostNum = 8
	transport := &slowTransport{delay: 100 * time.Millisecond}
	store := newTestStore(t)
	logger, _ := test.NewNullLogger()
	svc := NewNotifyService(testGNTPConfig(), store, transport, logger)
	ctx := context.Background()

	hosts := NewHostService(store)
	for i := 0; i < hostNum; i++ {
		_, err := hosts.Upsert(ctx, HostRequest{Address: fmt.Sprintf("10.0.1.%d", i)})
		require.NoError(t, err)
	}

	start := time.Now()
	summary, _, err := svc.Broadcast(ctx, model.NotifyRequest{Message: "deploy finished"})
	elapsed := time.Since(start)
	require.NoError(t, err)
	assert.Equal(t, model.NotifySummary{SendNum: hostNum, SuccessNum: hostNum}, summary)
	assert.Greater(t, transport.peak.Load(), int32(1))
	// Serial delivery takes two round trips per host.
	assert.Less(t, elapsed, hostNum*2*transport.delay)
}

func TestBroadcastTargets(t *testing.T) {
	mock := gntptest.NewMockTransport()
	svc, store := newTestNotifyService(t, mock)
	ctx := context.Background()

	_, _, err := svc.Broadcast(ctx, model.NotifyRequest{Message: "x"})
	require.ErrorIs(t, err, ErrNoTargets)

	_, _, err = svc.Broadcast(ctx, model.NotifyRequest{})
	require.ErrorIs(t, err, ErrEmptyMessage)

	host, err := NewHostService(store).Upsert(ctx, HostRequest{Address: "10.0.0.1"})
	require.NoError(t, err)
	mock.AddOK(gntp.ActionRegister)
	mock.AddOK(gntp.ActionNotify)

	summary, results, err := svc.Broadcast(ctx, model.NotifyRequest{Message: "x", HostKeys: []string{host.Key, "missing"}})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SuccessNum)
	require.Len(t, results, 2)
	assert.Equal(t, "10.0.0.1:23053", results[0].Host)
	assert.Equal(t, "missing", results[1].Host)
	assert.Equal(t, model.NotifyStatusFailed, results[1].Status)
}

func TestResolveIcon(t *testing.T) {
	icon, err := ResolveIcon("")
	require.NoError(t, err)
	assert.True(t, icon.IsZero())

	icon, err = ResolveIcon("HTTP://example.com/a.png")
	require.NoError(t, err)
	assert.Equal(t, "HTTP://example.com/a.png", icon.URL)

	_, err = ResolveIcon("/does/not/exist.png")
	require.ErrorIs(t, err, ErrInvalidInput)
}
