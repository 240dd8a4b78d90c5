package systems

import (
	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/renderer"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
	"github.com/spaghettifunk/frameforge/engine/renderer/shadercache"
)

type SystemManager struct {
	CameraSystem   *CameraSystem
	JobSystem      *JobSystem
	MaterialSystem *MaterialSystem
	ShaderSystem   *ShaderSystem
	RendererSystem *RendererSystem
}

type system interface {
	Shutdown() error
}

// NewSystemManager builds every system from the configuration. A nil
// compiler selects the naga compiler on device. When a system fails to
// build, the ones already running are shut down again.
func NewSystemManager(cfg *core.Config, device renderer.Device, compiler shadercache.Compiler) (*SystemManager, error) {
	var built []system
	fail := func(err error) (*SystemManager, error) {
		for i := len(built) - 1; i >= 0; i-- {
			if serr := built[i].Shutdown(); serr != nil {
				core.LogWarn("unable to shut down a partially built system: %s", serr)
			}
		}
		return nil, err
	}

	js, err := NewJobSystem(cfg.Jobs.CullWorkers, cfg.Jobs.CullWorkers*2)
	if err != nil {
		return fail(err)
	}
	built = append(built, js)
	cs, err := NewCameraSystem(&CameraSystemConfig{
		MaxCameraCount: 100,
	})
	if err != nil {
		return fail(err)
	}
	built = append(built, cs)
	ms, err := NewMaterialSystem(&MaterialSystemConfig{
		MaxMaterialCount: 4096,
	})
	if err != nil {
		return fail(err)
	}
	built = append(built, ms)
	ss, err := NewShaderSystem(&ShaderSystemConfig{
		RequestCapacity: cfg.ShaderCache.RequestCapacity,
		FallbackPolicy:  cfg.ShaderCache.FallbackPolicy,
		ShaderPath:      cfg.ShaderCache.ShaderPath,
		Prewarm: []metadata.PermutationMask{
			metadata.DefaultMask,
			metadata.MaskInstancing,
			metadata.MaskSkinning,
			metadata.MaskInstancing | metadata.MaskSkinning,
		},
	}, device, compiler)
	if err != nil {
		return fail(err)
	}
	built = append(built, ss)
	rs, err := NewRendererSystem(&RendererSystemConfig{
		Width:            cfg.Engine.Width,
		Height:           cfg.Engine.Height,
		Debug:            cfg.Engine.DebugAssertions,
		IdleEviction:     cfg.Pool.IdleEviction.Duration,
		InstanceCapacity: cfg.Batch.InstanceCapacity,
		MotionBlur:       cfg.Batch.MotionBlur,
		InitialCapacity:  cfg.Jobs.InitialCapacity,
		CullChunk:        cfg.Jobs.CullChunk,
		ShadowEnabled:    cfg.Shadow.Enabled,
		ShadowMapSize:    cfg.Shadow.MapSize,
	}, device, ms, js, ss.Cache())
	if err != nil {
		return fail(err)
	}

	return &SystemManager{
		CameraSystem:   cs,
		JobSystem:      js,
		MaterialSystem: ms,
		ShaderSystem:   ss,
		RendererSystem: rs,
	}, nil
}

// Shutdown tears the systems down in reverse order of creation.
func (sm *SystemManager) Shutdown() error {
	if err := sm.RendererSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.ShaderSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.MaterialSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.CameraSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	return nil
}
