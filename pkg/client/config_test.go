package client

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/lw3/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "device.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadOptionsDefaults(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadOptions(writeConfig(t, `host = "10.211.0.23"`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "10.211.0.23:6107" {
		t.Fatalf("address got=%q", cfg.Address)
	}
	if cfg.Timeout != 5*time.Second || cfg.DrainTimeout != 500*time.Millisecond {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Transport.Address != cfg.Address {
		t.Fatalf("transport address got=%q", cfg.Transport.Address)
	}
}

func TestLoadOptionsOverrides(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadOptions(writeConfig(t, strings.Join([]string{
		`address = "encoder.local:6108"`,
		`timeout = "2s"`,
		`dial_timeout = "750ms"`,
		`drain_timeout = "250ms"`,
		`max_frame_bytes = 4096`,
		`buffer_size = 1024`,
	}, "\n")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "encoder.local:6108" {
		t.Fatalf("address got=%q", cfg.Address)
	}
	if cfg.Timeout != 2*time.Second || cfg.DrainTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected timeouts: %+v", cfg)
	}
	if cfg.Transport.DialTimeout != 750*time.Millisecond || cfg.Transport.BufferSize != 1024 {
		t.Fatalf("unexpected transport options: %+v", cfg.Transport)
	}
	if cfg.MaxFrameBytes != 4096 {
		t.Fatalf("max frame bytes got=%d", cfg.MaxFrameBytes)
	}
}

func TestLoadOptionsHostAndPort(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadOptions(writeConfig(t, "host = \"10.0.0.5\"\nport = 6200\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address != "10.0.0.5:6200" {
		t.Fatalf("address got=%q", cfg.Address)
	}
}

func TestLoadOptionsRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"missing address": `timeout = "1s"`,
		"bad duration":    "host = \"a\"\ntimeout = \"soon\"",
		"unknown key":     "host = \"a\"\nretries = 3",
		"negative":        "host = \"a\"\ntimeout = \"-1s\"",
		"zero drain":      "host = \"a\"\ndrain_timeout = \"0s\"",
		"not toml":        "host = ",
	}
	for name, body := range cases {
		if _, err := LoadOptions(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDefaultOptionsPort(t *testing.T) {
	testlog.Start(t)
	if got := DefaultOptions("10.211.0.86").Address; got != "10.211.0.86:6107" {
		t.Fatalf("address got=%q", got)
	}
	if got := DefaultOptions("127.0.0.1:9000").Address; got != "127.0.0.1:9000" {
		t.Fatalf("address got=%q", got)
	}
}
