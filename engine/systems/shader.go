package systems

import (
	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/renderer"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
	"github.com/spaghettifunk/frameforge/engine/renderer/shadercache"
)

/** @brief Configuration for the shader system. */
type ShaderSystemConfig struct {
	/** @brief Maximum number of compile requests waiting for the worker. */
	RequestCapacity int
	/** @brief "skip" or "default". */
	FallbackPolicy string
	/** @brief WGSL source overriding the embedded forward shader. Optional. */
	ShaderPath string
	/** @brief Permutations compiled ahead of the first frame. */
	Prewarm []metadata.PermutationMask
}

// ShaderSystem owns the variant cache and the compiler feeding it.
type ShaderSystem struct {
	config *ShaderSystemConfig
	cache  *shadercache.Cache
}

// NewShaderSystem builds the cache on a naga compiler. A nil compiler
// selects it; tests pass their own.
func NewShaderSystem(config *ShaderSystemConfig, device renderer.Device, compiler shadercache.Compiler) (*ShaderSystem, error) {
	policy, err := shadercache.ParseFallbackPolicy(config.FallbackPolicy)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	if compiler == nil {
		source, err := shadercache.LoadShaderSource(config.ShaderPath)
		if err != nil {
			core.LogError("%s", err)
			return nil, err
		}
		compiler = shadercache.NewNagaCompiler(device, source)
	}

	cache := shadercache.New(compiler, shadercache.Config{
		RequestCapacity: config.RequestCapacity,
		Policy:          policy,
	})
	// the reduced variants every fallback lands on
	cache.Prewarm(config.Prewarm...)

	return &ShaderSystem{
		config: config,
		cache:  cache,
	}, nil
}

func (ss *ShaderSystem) Cache() *shadercache.Cache {
	return ss.cache
}

func (ss *ShaderSystem) Shutdown() error {
	return ss.cache.Shutdown()
}
