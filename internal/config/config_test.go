package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8090", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, "localhost:23053", cfg.GNTP.Address)
	assert.Equal(t, []string{"Status"}, cfg.GNTP.Notifications)
	assert.Equal(t, "Status", cfg.GNTP.DefaultNotification)
	assert.Equal(t, 10*time.Second, cfg.GNTP.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.GNTP.Security().Enabled())
	assert.True(t, cfg.Auth.Enabled)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gntp-notify", cfg.GNTP.Application)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gntp:
  address: growl.lan
  application: Builder
  notifications: [Build, Deploy]
  default_notification: Deploy
  password: secret
  hash_algorithm: sha512
  encryption: aes
log:
  format: json
`), 0o600))
	t.Setenv("GNTP_NOTIFY_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "growl.lan", cfg.GNTP.Address)
	assert.Equal(t, []string{"Build", "Deploy"}, cfg.GNTP.Notifications)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, gntp.Security{Password: "secret", Hash: gntp.HashSHA512, Encryption: gntp.EncryptionAES}, cfg.GNTP.Security())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := &Config{}
		c.GNTP.Application = "App"
		c.GNTP.Notifications = []string{"Status"}
		c.GNTP.DefaultNotification = "Status"
		return c
	}
	require.NoError(t, base().Validate())

	c := base()
	c.GNTP.DefaultNotification = "Other"
	require.Error(t, c.Validate())

	c = base()
	c.GNTP.Notifications = nil
	require.Error(t, c.Validate())

	c = base()
	c.GNTP.Password = "pw"
	c.GNTP.HashAlgorithm = "MD5"
	c.GNTP.Encryption = "AES"
	require.ErrorIs(t, c.Validate(), gntp.ErrKeyTooShort)

	c = base()
	c.Auth.Enabled = true
	c.Auth.Username = "admin"
	require.Error(t, c.Validate())
	c.Auth.JWTSecret = "s"
	require.NoError(t, c.Validate())
}
