package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type sample struct {
	HTTP struct {
		Port    int      `yaml:"port" env:"SAMPLE_HTTP_PORT"`
		Origins []string `yaml:"origins" env:"SAMPLE_HTTP_ORIGINS"`
	} `yaml:"http"`
	Live struct {
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		Tolerance    float64       `yaml:"tolerance"`
	} `yaml:"live" env:"SAMPLE_LIVE"`
	Debug bool `yaml:"debug" env:"SAMPLE_DEBUG"`
}

func TestLoadConfigReadsYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	body := "http:\n  port: 8080\n  origins: [\"http://a\"]\nlive:\n  writeTimeout: 2s\n  tolerance: 0.5\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(FileEnv, path)
	t.Setenv("SAMPLE_HTTP_PORT", "9090")
	t.Setenv("SAMPLE_LIVE_WRITETIMEOUT", "750ms")
	t.Setenv("SAMPLE_DEBUG", "true")

	var cfg sample
	if err := LoadConfig(&cfg); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Fatalf("port = %d, want env override 9090", cfg.HTTP.Port)
	}
	if len(cfg.HTTP.Origins) != 1 || cfg.HTTP.Origins[0] != "http://a" {
		t.Fatalf("origins = %v, want yaml value", cfg.HTTP.Origins)
	}
	if cfg.Live.WriteTimeout != 750*time.Millisecond {
		t.Fatalf("writeTimeout = %s", cfg.Live.WriteTimeout)
	}
	if cfg.Live.Tolerance != 0.5 {
		t.Fatalf("tolerance = %v", cfg.Live.Tolerance)
	}
	if !cfg.Debug {
		t.Fatal("debug flag not applied from env")
	}
}

func TestLoadConfigSplitsListsFromEnv(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("SAMPLE_HTTP_ORIGINS", "http://a, http://b,,")

	var cfg sample
	if err := LoadConfig(&cfg); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.HTTP.Origins) != 2 || cfg.HTTP.Origins[1] != "http://b" {
		t.Fatalf("origins = %v", cfg.HTTP.Origins)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv(FileEnv, "")
	t.Setenv("SAMPLE_HTTP_PORT", "eighty")

	var cfg sample
	if err := LoadConfig(&cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfigRequiresStructPointer(t *testing.T) {
	var cfg sample
	if err := LoadConfig(cfg); err == nil {
		t.Fatal("expected error for non-pointer target")
	}
	if err := LoadConfig(nil); err == nil {
		t.Fatal("expected error for nil target")
	}
}
