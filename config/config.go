// Package config centralises runtime configuration for the fustream client.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fenwick/fustream/errs"
)

// Endpoint selects the venue environment the client connects to.
type Endpoint string

const (
	// EndpointLive targets the production USD-M futures feed.
	EndpointLive Endpoint = "live"
	// EndpointTestnet targets the futures testnet.
	EndpointTestnet Endpoint = "testnet"
)

type endpointProfile struct {
	restBase string
	wsBase   string
}

var endpointProfiles = map[Endpoint]endpointProfile{
	EndpointLive: {
		restBase: "https://fapi.binance.com",
		wsBase:   "wss://fstream.binance.com",
	},
	EndpointTestnet: {
		restBase: "https://testnet.binancefuture.com",
		wsBase:   "wss://stream.binancefuture.com",
	},
}

const listenKeyPath = "/fapi/v1/listenKey"

// Credentials captures the API key pair used for the user-data stream.
type Credentials struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
}

// Configured reports whether both halves of the key pair are present.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.APIKey) != "" && strings.TrimSpace(c.APISecret) != ""
}

// Config is the full client configuration. Zero values are filled from
// Default by Normalize; Validate rejects inconsistent combinations once,
// at construction time.
type Config struct {
	Endpoint    Endpoint    `yaml:"endpoint"`
	Reconnect   *bool       `yaml:"reconnect"`
	Credentials Credentials `yaml:"credentials"`

	// Reconnect backoff tuning. The retry count is unbounded; only the
	// curve is configurable.
	ReconnectInitialInterval time.Duration `yaml:"reconnect_initial_interval"`
	ReconnectMaxInterval     time.Duration `yaml:"reconnect_max_interval"`

	// ReadIdleTimeout bounds how long a connection may stay silent before
	// it is treated as dropped. The venue pings roughly every three
	// minutes, so anything beyond that window means a dead peer.
	ReadIdleTimeout time.Duration `yaml:"read_idle_timeout"`

	// Session token lifecycle. A renewal is issued at
	// TokenValidity*TokenRenewFraction and retried up to TokenRenewRetries
	// times before the token degrades to invalid.
	TokenValidity      time.Duration `yaml:"token_validity"`
	TokenRenewFraction float64       `yaml:"token_renew_fraction"`
	TokenRenewRetries  uint          `yaml:"token_renew_retries"`

	HTTPTimeout time.Duration `yaml:"http_timeout"`

	// QueueSoftCap is the event queue depth above which a stalled consumer
	// warning is logged. The queue itself never blocks the dispatcher.
	QueueSoftCap int `yaml:"queue_soft_cap"`

	// URL overrides for proxies and test servers. Empty means the endpoint
	// profile default.
	WebsocketBaseURL string `yaml:"websocket_base_url"`
	RESTBaseURL      string `yaml:"rest_base_url"`
}

// Default returns the baseline configuration: live endpoint, reconnect on.
func Default() Config {
	reconnect := true
	return Config{
		Endpoint:                 EndpointLive,
		Reconnect:                &reconnect,
		ReconnectInitialInterval: 500 * time.Millisecond,
		ReconnectMaxInterval:     30 * time.Second,
		ReadIdleTimeout:          4 * time.Minute,
		TokenValidity:            60 * time.Minute,
		TokenRenewFraction:       0.5,
		TokenRenewRetries:        3,
		HTTPTimeout:              10 * time.Second,
		QueueSoftCap:             65536,
	}
}

// FromEnv loads configuration values from FUSTREAM_* environment
// variables, overriding defaults.
func FromEnv() Config {
	cfg := Default()
	if v := strings.TrimSpace(os.Getenv("FUSTREAM_ENDPOINT")); v != "" {
		cfg.Endpoint = Endpoint(strings.ToLower(v))
	}
	if v := strings.TrimSpace(os.Getenv("FUSTREAM_RECONNECT")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			cfg.Reconnect = &parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("FUSTREAM_API_KEY")); v != "" {
		cfg.Credentials.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("FUSTREAM_API_SECRET")); v != "" {
		cfg.Credentials.APISecret = v
	}
	if v := strings.TrimSpace(os.Getenv("FUSTREAM_WS_BASE_URL")); v != "" {
		cfg.WebsocketBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FUSTREAM_REST_BASE_URL")); v != "" {
		cfg.RESTBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("FUSTREAM_READ_IDLE_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.ReadIdleTimeout = dur
		}
	}
	if v := strings.TrimSpace(os.Getenv("FUSTREAM_HTTP_TIMEOUT")); v != "" {
		if dur, err := time.ParseDuration(v); err == nil {
			cfg.HTTPTimeout = dur
		}
	}
	return cfg
}

// Load reads a YAML configuration file layered over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.Normalize(), nil
}

// Normalize fills zero values from the defaults and returns the result.
func (c Config) Normalize() Config {
	def := Default()
	if strings.TrimSpace(string(c.Endpoint)) == "" {
		c.Endpoint = def.Endpoint
	}
	c.Endpoint = Endpoint(strings.ToLower(strings.TrimSpace(string(c.Endpoint))))
	if c.Reconnect == nil {
		c.Reconnect = def.Reconnect
	}
	if c.ReconnectInitialInterval <= 0 {
		c.ReconnectInitialInterval = def.ReconnectInitialInterval
	}
	if c.ReconnectMaxInterval <= 0 {
		c.ReconnectMaxInterval = def.ReconnectMaxInterval
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = def.ReadIdleTimeout
	}
	if c.TokenValidity <= 0 {
		c.TokenValidity = def.TokenValidity
	}
	if c.TokenRenewFraction <= 0 || c.TokenRenewFraction >= 1 {
		c.TokenRenewFraction = def.TokenRenewFraction
	}
	if c.TokenRenewRetries == 0 {
		c.TokenRenewRetries = def.TokenRenewRetries
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = def.HTTPTimeout
	}
	if c.QueueSoftCap <= 0 {
		c.QueueSoftCap = def.QueueSoftCap
	}
	return c
}

// Validate rejects configurations the client cannot run with.
func (c Config) Validate() error {
	if _, ok := endpointProfiles[c.Endpoint]; !ok && c.WebsocketBaseURL == "" {
		return errs.New(errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("unknown endpoint %q", c.Endpoint)))
	}
	if key, secret := c.Credentials.APIKey, c.Credentials.APISecret; (key == "") != (secret == "") {
		return errs.New(errs.CodeInvalid,
			errs.WithMessage("credentials require both api key and secret"))
	}
	return nil
}

// ShouldReconnect reports the effective reconnect policy.
func (c Config) ShouldReconnect() bool {
	return c.Reconnect == nil || *c.Reconnect
}

// WebsocketBase returns the websocket base URL without a trailing slash.
func (c Config) WebsocketBase() string {
	base := strings.TrimSpace(c.WebsocketBaseURL)
	if base == "" {
		base = endpointProfiles[c.Endpoint].wsBase
	}
	return strings.TrimSuffix(base, "/")
}

// RESTBase returns the REST base URL without a trailing slash.
func (c Config) RESTBase() string {
	base := strings.TrimSpace(c.RESTBaseURL)
	if base == "" {
		base = endpointProfiles[c.Endpoint].restBase
	}
	return strings.TrimSuffix(base, "/")
}

// ListenKeyEndpoint returns the full listen-key lifecycle URL.
func (c Config) ListenKeyEndpoint() string {
	return c.RESTBase() + listenKeyPath
}
