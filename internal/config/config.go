package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates every setting of the client.
type Config struct {
	Backend  BackendConfig
	Playback PlaybackConfig
	Identity IdentityConfig
	LogLevel string
}

// BackendConfig describes the remote processing backend.
type BackendConfig struct {
	BaseURL string
	// Timeout covers one round-trip. Stem separation is slow, so the
	// default is generous.
	Timeout time.Duration
}

// PlaybackConfig describes the loopback server backing local
// playback handles.
type PlaybackConfig struct {
	Addr string
}

// IdentityConfig describes how the identity provider is reached.
type IdentityConfig struct {
	// Token is a pre-issued ID token for the token-backed provider.
	Token string
}

// Load reads configuration from SOUNDSCRIBE_* environment variables,
// applying defaults for everything optional.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("soundscribe")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "5m")
	v.SetDefault("playback.addr", "127.0.0.1:9301")
	v.SetDefault("log.level", "info")

	base := strings.TrimSpace(v.GetString("backend.url"))
	if u, err := url.Parse(base); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid SOUNDSCRIBE_BACKEND_URL value: %q", base)
	}

	timeout := v.GetDuration("backend.timeout")
	if timeout <= 0 {
		return nil, fmt.Errorf("invalid SOUNDSCRIBE_BACKEND_TIMEOUT value: %q", v.GetString("backend.timeout"))
	}

	addr := strings.TrimSpace(v.GetString("playback.addr"))
	if addr == "" || strings.Contains(addr, " ") {
		return nil, fmt.Errorf("invalid SOUNDSCRIBE_PLAYBACK_ADDR value: %q", addr)
	}
	if !strings.Contains(addr, ":") {
		addr = "127.0.0.1:" + addr
	}

	return &Config{
		Backend: BackendConfig{
			BaseURL: base,
			Timeout: timeout,
		},
		Playback: PlaybackConfig{
			Addr: addr,
		},
		Identity: IdentityConfig{
			Token: strings.TrimSpace(v.GetString("id_token")),
		},
		LogLevel: v.GetString("log.level"),
	}, nil
}
