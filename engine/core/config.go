package core

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that reads and writes as "5s", "250ms", ...
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type EngineConfig struct {
	// The application name used in logs.
	Name string `toml:"name"`
	// Framebuffer width.
	Width uint32 `toml:"width"`
	// Framebuffer height.
	Height uint32 `toml:"height"`
	// Frames per second the render loop is paced to. 0 disables pacing.
	TargetFPS uint32 `toml:"target_fps"`
	// Maximum number of frames to render before Run returns. 0 means unlimited.
	MaxFrames uint64 `toml:"max_frames"`
	LogLevel  string `toml:"log_level"`
	// Panics on invariant violations instead of ignoring them.
	DebugAssertions bool `toml:"debug_assertions"`
}

type PoolConfig struct {
	// Idle time after which an unused pooled resource is destroyed.
	IdleEviction Duration `toml:"idle_eviction"`
}

type ShaderCacheConfig struct {
	// Maximum number of compile requests waiting for the background worker.
	RequestCapacity int `toml:"request_capacity"`
	// What to draw when neither the variant nor its reduced fallback exist: "skip" or "default".
	FallbackPolicy string `toml:"fallback_policy"`
	// Optional WGSL source overriding the embedded forward shader.
	ShaderPath string `toml:"shader_path"`
}

type BatchConfig struct {
	// Maximum number of instances per draw call.
	InstanceCapacity int  `toml:"instance_capacity"`
	MotionBlur       bool `toml:"motion_blur"`
}

type JobsConfig struct {
	// Number of workers culling jobs in parallel.
	CullWorkers int `toml:"cull_workers"`
	// Number of jobs a single cull task tests.
	CullChunk int `toml:"cull_chunk"`
	// Initial capacity of each job list.
	InitialCapacity int `toml:"initial_capacity"`
}

type ShadowConfig struct {
	Enabled bool   `toml:"enabled"`
	MapSize uint32 `toml:"map_size"`
}

type Config struct {
	Engine      EngineConfig      `toml:"engine"`
	Pool        PoolConfig        `toml:"pool"`
	ShaderCache ShaderCacheConfig `toml:"shader_cache"`
	Batch       BatchConfig       `toml:"batch"`
	Jobs        JobsConfig        `toml:"jobs"`
	Shadow      ShadowConfig      `toml:"shadow"`
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Name:      "Frameforge",
			Width:     1280,
			Height:    720,
			TargetFPS: 60,
			LogLevel:  "info",
		},
		Pool: PoolConfig{
			IdleEviction: Duration{5 * time.Second},
		},
		ShaderCache: ShaderCacheConfig{
			RequestCapacity: 256,
			FallbackPolicy:  "skip",
		},
		Batch: BatchConfig{
			InstanceCapacity: 256,
		},
		Jobs: JobsConfig{
			CullWorkers:     runtime.GOMAXPROCS(0),
			CullChunk:       128,
			InitialCapacity: 1024,
		},
		Shadow: ShadowConfig{
			Enabled: true,
			MapSize: 2048,
		},
	}
}

// ParseConfig decodes TOML on top of the defaults, so a file only needs the
// keys it wants to change.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func (c *Config) Validate() error {
	if c.Engine.Width == 0 || c.Engine.Height == 0 {
		return fmt.Errorf("engine: width and height must be greater than 0")
	}
	if c.Pool.IdleEviction.Duration <= 0 {
		return fmt.Errorf("pool: idle_eviction must be positive, got %s", c.Pool.IdleEviction)
	}
	if c.ShaderCache.RequestCapacity <= 0 {
		return fmt.Errorf("shader_cache: request_capacity must be greater than 0")
	}
	switch c.ShaderCache.FallbackPolicy {
	case "skip", "default":
	default:
		return fmt.Errorf("shader_cache: unknown fallback_policy %q", c.ShaderCache.FallbackPolicy)
	}
	if c.Batch.InstanceCapacity <= 0 {
		return fmt.Errorf("batch: instance_capacity must be greater than 0")
	}
	if c.Jobs.CullWorkers <= 0 {
		return fmt.Errorf("jobs: cull_workers must be greater than 0")
	}
	if c.Jobs.CullChunk <= 0 {
		return fmt.Errorf("jobs: cull_chunk must be greater than 0")
	}
	if c.Jobs.InitialCapacity < 0 {
		return fmt.Errorf("jobs: initial_capacity cannot be negative")
	}
	if c.Shadow.Enabled && c.Shadow.MapSize == 0 {
		return fmt.Errorf("shadow: map_size must be greater than 0 when shadows are enabled")
	}
	if _, err := parseLevel(c.Engine.LogLevel); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	return nil
}
