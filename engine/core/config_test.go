package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
[engine]
width = 800
height = 600
log_level = "debug"

[pool]
idle_eviction = "250ms"

[shader_cache]
fallback_policy = "default"

[batch]
motion_blur = true
`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Engine.Width != 800 || cfg.Engine.Height != 600 || cfg.Engine.LogLevel != "debug" {
		t.Fatalf("engine section:\nhave %+v", cfg.Engine)
	}
	if cfg.Pool.IdleEviction.Duration != 250*time.Millisecond {
		t.Fatalf("idle_eviction:\nhave %s\nwant 250ms", cfg.Pool.IdleEviction)
	}
	if cfg.ShaderCache.FallbackPolicy != "default" || !cfg.Batch.MotionBlur {
		t.Fatalf("fallback_policy/motion_blur:\nhave %q/%v\nwant \"default\"/true", cfg.ShaderCache.FallbackPolicy, cfg.Batch.MotionBlur)
	}
	// untouched keys keep their defaults
	def := DefaultConfig()
	if cfg.Batch.InstanceCapacity != def.Batch.InstanceCapacity || cfg.ShaderCache.RequestCapacity != def.ShaderCache.RequestCapacity {
		t.Fatalf("defaults lost:\nhave %d/%d\nwant %d/%d", cfg.Batch.InstanceCapacity, cfg.ShaderCache.RequestCapacity,
			def.Batch.InstanceCapacity, def.ShaderCache.RequestCapacity)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"zero width", func(c *Config) { c.Engine.Width = 0 }, "width"},
		{"negative eviction", func(c *Config) { c.Pool.IdleEviction.Duration = -time.Second }, "idle_eviction"},
		{"no request capacity", func(c *Config) { c.ShaderCache.RequestCapacity = 0 }, "request_capacity"},
		{"unknown policy", func(c *Config) { c.ShaderCache.FallbackPolicy = "magenta" }, "fallback_policy"},
		{"no instance capacity", func(c *Config) { c.Batch.InstanceCapacity = 0 }, "instance_capacity"},
		{"no cull workers", func(c *Config) { c.Jobs.CullWorkers = 0 }, "cull_workers"},
		{"no cull chunk", func(c *Config) { c.Jobs.CullChunk = 0 }, "cull_chunk"},
		{"no shadow map", func(c *Config) { c.Shadow.MapSize = 0 }, "map_size"},
		{"bad log level", func(c *Config) { c.Engine.LogLevel = "chatty" }, "engine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate:\nhave %v\nwant an error mentioning %q", err, tt.want)
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
}

func TestConfigEncodeRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pool.IdleEviction = Duration{1500 * time.Millisecond}
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `idle_eviction = '1.5s'`) && !strings.Contains(string(data), `idle_eviction = "1.5s"`) {
		t.Fatalf("encoded config does not carry the duration as text:\n%s", data)
	}
	back, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig(Encode()): %v", err)
	}
	if back.Pool.IdleEviction != cfg.Pool.IdleEviction {
		t.Fatalf("idle_eviction:\nhave %s\nwant %s", back.Pool.IdleEviction, cfg.Pool.IdleEviction)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !os.IsNotExist(err) {
		t.Fatalf("LoadConfig of a missing file:\nhave %v\nwant not-exist", err)
	}
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[pool]\nidle_eviction = \"soon\"\n"), 0o644)
	if _, err := LoadConfig(path); err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("LoadConfig of a bad duration:\nhave %v\nwant an error naming %s", err, path)
	}
}

func TestConfigWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frameforge.toml")
	if err := os.WriteFile(path, []byte("[engine]\nwidth = 640\nheight = 480\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cw, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatalf("NewConfigWatcher: %v", err)
	}
	defer cw.Close()

	// an invalid file is ignored
	os.WriteFile(path, []byte("[engine]\nwidth = 0\n"), 0o644)
	select {
	case cfg := <-cw.Updates():
		t.Fatalf("invalid config was published: %+v", cfg.Engine)
	case <-time.After(200 * time.Millisecond):
	}

	os.WriteFile(path, []byte("[engine]\nwidth = 1024\nheight = 768\n[batch]\nmotion_blur = true\n"), 0o644)
	select {
	case cfg := <-cw.Updates():
		if cfg.Engine.Width != 1024 || !cfg.Batch.MotionBlur {
			t.Fatalf("reloaded config:\nhave %+v %+v", cfg.Engine, cfg.Batch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload within 5s")
	}

	if err := cw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := cw.Close(); err == nil {
		t.Fatal("second Close succeeded")
	}
}
