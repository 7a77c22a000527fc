package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSDKConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadSDKConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Preferences.LogLevel != "info" {
		t.Fatalf("log level = %q, want info", cfg.Preferences.LogLevel)
	}
}

func TestLoadSDKConfigMalformedJSONErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if _, err := LoadSDKConfig(path); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apex-sdk", "config.json")
	cfg := DefaultSDKConfig()
	cfg.DefaultChain = "Ethereum"
	cfg.DefaultEndpoint = "https://eth.llamarpc.com"
	cfg.Endpoints["polkadot"] = "wss://rpc.polkadot.io"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadSDKConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.DefaultChain != "Ethereum" {
		t.Fatalf("default chain = %q, want Ethereum", loaded.DefaultChain)
	}
	if loaded.Endpoints["polkadot"] != "wss://rpc.polkadot.io" {
		t.Fatalf("polkadot endpoint = %q, want wss://rpc.polkadot.io", loaded.Endpoints["polkadot"])
	}
}

func TestValidateRejectsNoEndpoints(t *testing.T) {
	cfg := DefaultSDKConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error with no default_endpoint and no endpoints")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	cfg := DefaultSDKConfig()
	cfg.DefaultEndpoint = "https://eth.llamarpc.com"
	cfg.Preferences.LogLevel = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unrecognized log level")
	}
}

func TestEndpointResolvesNamedOverDefault(t *testing.T) {
	cfg := DefaultSDKConfig()
	cfg.DefaultEndpoint = "https://default.example"
	cfg.Endpoints["evm"] = "https://evm.example"

	url, ok := cfg.Endpoint("evm")
	if !ok || url != "https://evm.example" {
		t.Fatalf("got (%q, %v), want (https://evm.example, true)", url, ok)
	}

	url, ok = cfg.Endpoint("")
	if !ok || url != "https://default.example" {
		t.Fatalf("got (%q, %v), want (https://default.example, true)", url, ok)
	}
}

func TestApplyEnvOverridesSetsNamedEndpoints(t *testing.T) {
	t.Setenv("SUBSTRATE_ENDPOINT", "wss://override.example")
	t.Setenv("EVM_ENDPOINT", "https://override.example")

	cfg := DefaultSDKConfig()
	cfg.ApplyEnvOverrides()

	if cfg.Endpoints["substrate"] != "wss://override.example" {
		t.Fatalf("substrate endpoint = %q, want override", cfg.Endpoints["substrate"])
	}
	if cfg.Endpoints["evm"] != "https://override.example" {
		t.Fatalf("evm endpoint = %q, want override", cfg.Endpoints["evm"])
	}
}

func TestLoadEnvSecretsParsesBooleans(t *testing.T) {
	t.Setenv("INTEGRATION_TESTS", "true")
	t.Setenv("REAL_TX_TESTS", "0")

	secrets := LoadEnvSecrets()
	if !secrets.IntegrationTests {
		t.Fatal("expected IntegrationTests true")
	}
	if secrets.RealTxTests {
		t.Fatal("expected RealTxTests false")
	}
}
