package service

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/bark-labs/gntp-notify/internal/model"
	"github.com/bark-labs/gntp-notify/internal/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostUpsert(t *testing.T) {
	ctx := context.Background()
	svc := NewHostService(newTestStore(t))

	_, err := svc.Upsert(ctx, HostRequest{Name: "nowhere"})
	require.ErrorIs(t, err, ErrInvalidInput)

	host, err := svc.Upsert(ctx, HostRequest{Address: "growl.lan"})
	require.NoError(t, err)
	assert.Equal(t, url.PathEscape(host.Key), host.Key)
	_, err = uuid.Parse(host.Key)
	assert.NoError(t, err)
	assert.Equal(t, "growl.lan:23053", host.Address)
	assert.Equal(t, "growl.lan:23053", host.Name)
	assert.Equal(t, model.HostStatusActive, host.Status)
	assert.Equal(t, "SHA256", host.HashAlgorithm)
	assert.Equal(t, "NONE", host.Encryption)

	// Same address without a key updates the stored host.
	again, err := svc.Upsert(ctx, HostRequest{Address: "growl.lan:23053", Name: "desk", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, host.Key, again.Key)
	assert.Equal(t, "desk", again.Name)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = svc.Upsert(ctx, HostRequest{Address: "x", Password: "pw", HashAlgorithm: "md5", Encryption: "aes"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upsert(ctx, HostRequest{Address: "x", Encryption: "aes"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Upsert(ctx, HostRequest{Address: "x", Status: "paused"})
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestHostGenerate(t *testing.T) {
	ctx := context.Background()
	svc := NewHostService(newTestStore(t))

	_, err := svc.Generate(ctx, HostRequest{Address: "a"})
	require.ErrorIs(t, err, ErrInvalidInput)

	host, err := svc.Generate(ctx, HostRequest{Name: "office", Address: "10.0.0.5", Encryption: "AES"})
	require.NoError(t, err)
	assert.Len(t, host.Password, hostPasswordBytes)
	assert.Equal(t, gntp.Security{Password: host.Password, Hash: gntp.HashSHA256, Encryption: gntp.EncryptionAES}, HostSecurity(host))

	views, err := svc.ListViews(ctx)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, host.Password[:2]+strings.Repeat("*", hostPasswordBytes-2), views[0].Password)
	assert.NotEqual(t, host.Password, views[0].Password)

	found, err := svc.Lookup(ctx, "10.0.0.5")
	require.NoError(t, err)
	assert.Equal(t, host.Key, found.Key)
}

func TestHostUpdateStatus(t *testing.T) {
	ctx := context.Background()
	svc := NewHostService(newTestStore(t))

	_, err := svc.UpdateStatus(ctx, "missing", model.HostStatusStop)
	require.ErrorIs(t, err, storage.ErrNotFound)

	host, err := svc.Upsert(ctx, HostRequest{Address: "10.0.0.1"})
	require.NoError(t, err)

	stopped, err := svc.UpdateStatus(ctx, host.Key, "stop")
	require.NoError(t, err)
	assert.Equal(t, model.HostStatusStop, stopped.Status)

	got, err := svc.Get(ctx, host.Key)
	require.NoError(t, err)
	assert.False(t, got.Active())

	_, err = svc.UpdateStatus(ctx, host.Key, "sleeping")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestMaskValue(t *testing.T) {
	assert.Equal(t, "", maskValue(""))
	assert.Equal(t, "***", maskValue("abc"))
	assert.Equal(t, "se****", maskValue("secret"))
}
