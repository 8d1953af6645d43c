package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.ShouldReconnect() {
		t.Fatal("default config should reconnect")
	}
	if cfg.Endpoint != EndpointLive {
		t.Fatalf("unexpected default endpoint %q", cfg.Endpoint)
	}
}

func TestEndpointProfiles(t *testing.T) {
	live := Default()
	if got := live.WebsocketBase(); got != "wss://fstream.binance.com" {
		t.Fatalf("unexpected live ws base %q", got)
	}
	if got := live.ListenKeyEndpoint(); got != "https://fapi.binance.com/fapi/v1/listenKey" {
		t.Fatalf("unexpected live listen key endpoint %q", got)
	}

	testnet := Default()
	testnet.Endpoint = EndpointTestnet
	if got := testnet.WebsocketBase(); got != "wss://stream.binancefuture.com" {
		t.Fatalf("unexpected testnet ws base %q", got)
	}
	if got := testnet.RESTBase(); got != "https://testnet.binancefuture.com" {
		t.Fatalf("unexpected testnet rest base %q", got)
	}
}

func TestOverridesTrimTrailingSlash(t *testing.T) {
	cfg := Default()
	cfg.WebsocketBaseURL = "ws://127.0.0.1:9443/"
	cfg.RESTBaseURL = "http://127.0.0.1:8080/"
	if got := cfg.WebsocketBase(); got != "ws://127.0.0.1:9443" {
		t.Fatalf("unexpected ws base %q", got)
	}
	if got := cfg.ListenKeyEndpoint(); got != "http://127.0.0.1:8080/fapi/v1/listenKey" {
		t.Fatalf("unexpected listen key endpoint %q", got)
	}
}

func TestValidateRejectsHalfCredentials(t *testing.T) {
	cfg := Default()
	cfg.Credentials.APIKey = "key-only"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for api key without secret")
	}
}

func TestValidateRejectsUnknownEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Endpoint = "staging"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown endpoint")
	}
	cfg.WebsocketBaseURL = "ws://127.0.0.1:9443"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("override should bypass endpoint table: %v", err)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	var cfg Config
	cfg = cfg.Normalize()
	if cfg.Endpoint != EndpointLive {
		t.Fatalf("unexpected endpoint %q", cfg.Endpoint)
	}
	if !cfg.ShouldReconnect() {
		t.Fatal("normalized zero config should reconnect")
	}
	if cfg.TokenValidity != 60*time.Minute {
		t.Fatalf("unexpected token validity %v", cfg.TokenValidity)
	}
	if cfg.TokenRenewFraction != 0.5 {
		t.Fatalf("unexpected renew fraction %v", cfg.TokenRenewFraction)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("FUSTREAM_ENDPOINT", "TESTNET")
	t.Setenv("FUSTREAM_RECONNECT", "false")
	t.Setenv("FUSTREAM_API_KEY", "k")
	t.Setenv("FUSTREAM_API_SECRET", "s")
	t.Setenv("FUSTREAM_READ_IDLE_TIMEOUT", "90s")

	cfg := FromEnv()
	if cfg.Endpoint != EndpointTestnet {
		t.Fatalf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.ShouldReconnect() {
		t.Fatal("reconnect override not applied")
	}
	if !cfg.Credentials.Configured() {
		t.Fatal("credentials not applied")
	}
	if cfg.ReadIdleTimeout != 90*time.Second {
		t.Fatalf("unexpected read idle timeout %v", cfg.ReadIdleTimeout)
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fustream.yaml")
	body := `
endpoint: testnet
reconnect: false
credentials:
  api_key: k
  api_secret: s
read_idle_timeout: 2m
queue_soft_cap: 1024
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Endpoint != EndpointTestnet {
		t.Fatalf("unexpected endpoint %q", cfg.Endpoint)
	}
	if cfg.ShouldReconnect() {
		t.Fatal("reconnect=false not honored")
	}
	if cfg.ReadIdleTimeout != 2*time.Minute {
		t.Fatalf("unexpected read idle timeout %v", cfg.ReadIdleTimeout)
	}
	if cfg.QueueSoftCap != 1024 {
		t.Fatalf("unexpected soft cap %d", cfg.QueueSoftCap)
	}
	if cfg.TokenValidity != 60*time.Minute {
		t.Fatal("defaults not layered under file values")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
