package config

import (
	"os"
	"testing"
	"time"
)

func withEnv(k, v string, fn func()) {
	old, had := os.LookupEnv(k)
	_ = os.Setenv(k, v)
	defer func() {
		if had {
			_ = os.Setenv(k, old)
		} else {
			_ = os.Unsetenv(k)
		}
	}()
	fn()
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
	if cfg.Match.TokenTTLSeconds != 300 {
		t.Errorf("TokenTTLSeconds = %d, want 300", cfg.Match.TokenTTLSeconds)
	}
	if cfg.Host.Port != 7777 {
		t.Errorf("Host.Port = %d, want 7777", cfg.Host.Port)
	}
	if cfg.TokenTTL() != 300*time.Second {
		t.Errorf("TokenTTL() = %v, want 300s", cfg.TokenTTL())
	}
	if cfg.HTTPAddr() != "0.0.0.0:8080" {
		t.Errorf("HTTPAddr() = %q", cfg.HTTPAddr())
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	withEnv("MATCHMAKER_PORT", "9090", func() {
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load() err = %v", err)
		}
		if cfg.Port != 9090 {
			t.Errorf("Port = %d, want env override 9090", cfg.Port)
		}
	})
}

func TestLoad_Redacted(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() err = %v", err)
	}
	view := cfg.Redacted()
	if _, leaked := view["tokenSecret"]; leaked {
		t.Error("Redacted() exposes the raw token secret")
	}
	if view["tokenSecretSet"] != true {
		t.Error("Redacted() should report the secret as set")
	}
}

func TestGameHost_SelectForClient(t *testing.T) {
	host := GameHost{Address: "203.0.113.1", InternalAddress: "10.0.0.1", PreferInternal: true, Port: 7777}

	tests := []struct {
		name      string
		public    string
		internal  string
		requester string
		want      string
	}{
		{"internal requester gets internal", "203.0.113.5", "10.0.0.5", "10.1.2.3", "10.0.0.5"},
		{"public requester gets public", "203.0.113.5", "10.0.0.5", "198.51.100.9", "203.0.113.5"},
		{"blank requester treated as internal", "203.0.113.5", "10.0.0.5", "", "10.0.0.5"},
		{"loopback requester gets internal", "203.0.113.5", "10.0.0.5", "127.0.0.1", "10.0.0.5"},
		{"missing internal falls back to public", "203.0.113.5", "", "10.1.2.3", "203.0.113.5"},
		{"missing public falls back to internal", "", "10.0.0.5", "198.51.100.9", "10.0.0.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := host.SelectForClient(tt.public, tt.internal, tt.requester)
			if sel.PreferredAddress != tt.want {
				t.Errorf("PreferredAddress = %q, want %q", sel.PreferredAddress, tt.want)
			}
		})
	}
}

func TestGameHost_PreferInternalDisabled(t *testing.T) {
	host := GameHost{Address: "203.0.113.1", InternalAddress: "10.0.0.1", Port: 7777}
	sel := host.SelectForClient("203.0.113.5", "10.0.0.5", "10.1.2.3")
	if sel.PreferredAddress != "203.0.113.5" {
		t.Errorf("PreferredAddress = %q, want public when preferInternal is off", sel.PreferredAddress)
	}
}

func TestGameHost_ResolvePort(t *testing.T) {
	host := GameHost{Port: 7777}
	if got := host.ResolvePort(8888); got != 7777 {
		t.Errorf("ResolvePort(8888) = %d, want configured 7777", got)
	}
	if got := host.ResolvePort(7777); got != 7777 {
		t.Errorf("ResolvePort(7777) = %d, want 7777", got)
	}
}
