package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/bark-labs/gntp-notify/internal/gntp"
	"github.com/spf13/viper"
)

// Config holds all runtime configuration knobs for the relay and the CLI.
type Config struct {
	HTTP struct {
		Addr         string        `mapstructure:"addr"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
		APIToken     string        `mapstructure:"api_token"`
	} `mapstructure:"http"`
	GNTP    GNTP `mapstructure:"gntp"`
	Storage struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"storage"`
	Auth Auth `mapstructure:"auth"`
	Log  Log  `mapstructure:"log"`
}

// Auth guards the admin API. Password may be plain text or a bcrypt hash.
type Auth struct {
	Enabled   bool          `mapstructure:"enabled"`
	Username  string        `mapstructure:"username"`
	Password  string        `mapstructure:"password"`
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// GNTP describes the application identity and the default target.
type GNTP struct {
	Address             string        `mapstructure:"address"`
	Application         string        `mapstructure:"application"`
	AppIcon             string        `mapstructure:"app_icon"`
	Notifications       []string      `mapstructure:"notifications"`
	DefaultNotification string        `mapstructure:"default_notification"`
	Password            string        `mapstructure:"password"`
	HashAlgorithm       string        `mapstructure:"hash_algorithm"`
	Encryption          string        `mapstructure:"encryption"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// Security returns the message security for the default target.
func (g GNTP) Security() gntp.Security {
	return gntp.Security{
		Password:   g.Password,
		Hash:       gntp.HashAlgorithm(strings.ToUpper(g.HashAlgorithm)),
		Encryption: gntp.EncryptionAlgorithm(strings.ToUpper(g.Encryption)),
	}
}

// Log selects logrus level and formatter.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads the configuration from disk/environment using Viper. An empty
// path means environment and defaults only.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix("gntp_notify")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the GNTP section for combinations the codec rejects.
func (c *Config) Validate() error {
	if c.GNTP.Application == "" {
		return errors.New("config: gntp.application is required")
	}
	if len(c.GNTP.Notifications) == 0 {
		return errors.New("config: gntp.notifications must not be empty")
	}
	found := false
	for _, n := range c.GNTP.Notifications {
		if n == c.GNTP.DefaultNotification {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("config: gntp.default_notification %q is not in gntp.notifications", c.GNTP.DefaultNotification)
	}
	if err := c.GNTP.Security().Validate(); err != nil {
		return fmt.Errorf("config: gntp: %w", err)
	}
	if c.Auth.Enabled && (c.Auth.Username == "" || c.Auth.JWTSecret == "") {
		return errors.New("config: auth.username and auth.jwt_secret are required when auth is enabled")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8090")
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "30s")
	v.SetDefault("http.api_token", "")

	v.SetDefault("gntp.address", "localhost:23053")
	v.SetDefault("gntp.application", "gntp-notify")
	v.SetDefault("gntp.app_icon", "")
	v.SetDefault("gntp.notifications", []string{"Status"})
	v.SetDefault("gntp.default_notification", "Status")
	v.SetDefault("gntp.password", "")
	v.SetDefault("gntp.hash_algorithm", "SHA256")
	v.SetDefault("gntp.encryption", "NONE")
	v.SetDefault("gntp.timeout", "10s")

	v.SetDefault("storage.path", "./data/gntp-notify.db")

	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.username", "admin")
	v.SetDefault("auth.password", "admin123")
	v.SetDefault("auth.jwt_secret", "change-me-secret")
	v.SetDefault("auth.token_ttl", "12h")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}
