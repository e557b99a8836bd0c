package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("defaults should load: %v", err)
	}
	if cfg.Telemetry.Source != SourcePostgres {
		t.Fatalf("default source should be postgres, got %s", cfg.Telemetry.Source)
	}
	if cfg.Telemetry.MaxBodyBytes != 32<<20 {
		t.Fatalf("default response cap should be 32MiB, got %d", cfg.Telemetry.MaxBodyBytes)
	}
	th := cfg.Analytics.Thresholds()
	if th.DustDropMaxGap != 48*time.Hour {
		t.Fatalf("dust drop gap default should be 48h, got %s", th.DustDropMaxGap)
	}
	if th.StrongCorrelation != 0.7 || th.ModerateCorrelation != 0.4 {
		t.Fatalf("unexpected correlation bands %+v", th)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PANELTRENDS_ANALYTICS_DEFAULT_DAYS", "14")
	t.Setenv("PANELTRENDS_ANALYTICS_DUST_DROP_FRACTION", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load should succeed: %v", err)
	}
	if cfg.Analytics.DefaultDays != 14 {
		t.Fatalf("env override ignored, got %d", cfg.Analytics.DefaultDays)
	}
	if cfg.Analytics.DustDropFraction != 0.5 {
		t.Fatalf("env override ignored, got %v", cfg.Analytics.DustDropFraction)
	}
}

func TestLoadFileValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "telemetry:\n  source: http\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Fatalf("http source without base_url should fail, got %v", err)
	}
}

func TestLoadFileThresholdValidation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "analytics:\n  strong_correlation: 0.3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("strong band below moderate band should fail")
	}
}

func TestParseInterval(t *testing.T) {
	cases := map[string]time.Duration{
		"":      time.Hour,
		"hour":  time.Hour,
		"day":   24 * time.Hour,
		"Daily": 24 * time.Hour,
		"15m":   15 * time.Minute,
	}
	for in, want := range cases {
		got, err := ParseInterval(in)
		if err != nil {
			t.Fatalf("ParseInterval(%q) failed: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseInterval(%q) = %s, want %s", in, got, want)
		}
	}

	for _, bad := range []string{"week", "-1h", "0s"} {
		if _, err := ParseInterval(bad); err == nil {
			t.Fatalf("ParseInterval(%q) should fail", bad)
		}
	}
}

func TestResolveMaxPoints(t *testing.T) {
	cfg := &Config{Export: ExportConfig{MaxDataPoints: 100}}
	if cfg.ResolveMaxPoints(0) != 100 {
		t.Fatal("should fall back to config")
	}
	if cfg.ResolveMaxPoints(5) != 5 {
		t.Fatal("override should win")
	}
}
