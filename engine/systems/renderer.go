package systems

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/math"
	"github.com/spaghettifunk/frameforge/engine/renderer"
	"github.com/spaghettifunk/frameforge/engine/renderer/batch"
	"github.com/spaghettifunk/frameforge/engine/renderer/jobqueue"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
	"github.com/spaghettifunk/frameforge/engine/renderer/pool"
	"github.com/spaghettifunk/frameforge/engine/renderer/shadercache"
	"github.com/spaghettifunk/frameforge/engine/renderer/views"
)

type TargetPool = pool.Pool[metadata.RenderTargetDescriptor, metadata.RenderTarget]

type acquiredTarget struct {
	desc   metadata.RenderTargetDescriptor
	target *metadata.RenderTarget
}

type RendererSystemConfig struct {
	Width  uint32
	Height uint32
	// Panics on job queue misuse instead of logging it.
	Debug            bool
	IdleEviction     time.Duration
	InstanceCapacity int
	MotionBlur       bool
	InitialCapacity  int
	CullChunk        int
	ShadowEnabled    bool
	ShadowMapSize    uint32
}

/**
 * @brief What the frame driver knows about the frame being drawn.
 */
type FrameInfo struct {
	/** @brief Time elapsed since the previous frame, used for pool eviction. */
	DeltaTime time.Duration
	/** @brief The camera position, used for depth sorting. */
	Eye math.Vec3
	/** @brief Optional visibility test. Nil draws every job. */
	Culler renderer.Culler
	/**
	 * @brief Optional, called once the jobs of this frame were swapped out.
	 * Jobs pushed from then on belong to the next frame, so the update of
	 * the next frame may start here while this one is drawn.
	 */
	AfterSwap func()
}

/**
 * @brief Sequences the passes of a frame: pool eviction, render target
 * acquisition, job swap, culling, batch assembly, variant resolution and
 * submission. A pass that cannot get its targets or variants is skipped;
 * only device loss aborts the frame.
 */
type RendererSystem struct {
	device    renderer.Device
	materials renderer.MaterialLibrary
	jobs      *JobSystem
	cache     *shadercache.Cache

	queue     *jobqueue.Queue
	targets   *TargetPool
	assembler *batch.Assembler

	shadow *views.ShadowView
	world  *views.WorldView
	alpha  *views.AlphaView
	passes []views.PassRenderer

	cullChunk   int
	frameNumber uint64

	// render goroutine scratch, reused every frame
	acquired map[string]acquiredTarget
	failed   map[string]error
	passJobs []metadata.RenderJob
}

func NewRendererSystem(config *RendererSystemConfig, device renderer.Device, materials renderer.MaterialLibrary, jobs *JobSystem, cache *shadercache.Cache) (*RendererSystem, error) {
	if device == nil {
		return nil, fmt.Errorf("func NewRendererSystem - a device is required")
	}
	if config.Width == 0 || config.Height == 0 {
		return nil, fmt.Errorf("func NewRendererSystem - invalid framebuffer size %dx%d", config.Width, config.Height)
	}

	r := &RendererSystem{
		device:    device,
		materials: materials,
		jobs:      jobs,
		cache:     cache,
		queue: jobqueue.New(jobqueue.Config{
			Debug:           config.Debug,
			InitialCapacity: config.InitialCapacity,
		}),
		assembler: batch.New(materials, batch.Config{
			InstanceCapacity: config.InstanceCapacity,
			MotionBlur:       config.MotionBlur,
		}),
		shadow:    views.NewShadowView(config.ShadowEnabled, config.ShadowMapSize),
		world:     views.NewWorldView(config.Width, config.Height, config.MotionBlur),
		alpha:     views.NewAlphaView(config.Width, config.Height),
		cullChunk: config.CullChunk,
		acquired:  make(map[string]acquiredTarget),
		failed:    make(map[string]error),
	}
	r.targets = pool.New(device.CreateRenderTarget, device.DestroyRenderTarget, config.IdleEviction)
	r.passes = []views.PassRenderer{r.shadow, r.world, r.alpha}
	return r, nil
}

// Push queues a job for the next frame. Safe to call from any goroutine.
func (r *RendererSystem) Push(job metadata.RenderJob, category metadata.JobCategory) error {
	return r.queue.Push(job, category)
}

// GetRenderer returns the renderer of a pass type, nil when unknown.
func (r *RendererSystem) GetRenderer(pass metadata.PassType) views.PassRenderer {
	for _, p := range r.passes {
		if p.Type() == pass {
			return p
		}
	}
	return nil
}

func (r *RendererSystem) FrameNumber() uint64 {
	return r.frameNumber
}

func (r *RendererSystem) OnResize(width, height uint32) {
	for _, p := range r.passes {
		p.Resize(width, height)
	}
}

// ApplyConfig applies the tunables that may change between frames.
func (r *RendererSystem) ApplyConfig(cfg *core.Config) {
	r.targets.SetIdleEviction(cfg.Pool.IdleEviction.Duration)
	r.assembler.SetMotionBlur(cfg.Batch.MotionBlur)
	r.world.SetMotionBlur(cfg.Batch.MotionBlur)
	r.shadow.SetEnabled(cfg.Shadow.Enabled)
}

/**
 * @brief Draws one frame. Must be called from the render goroutine only.
 * The returned error is either the context error or wraps
 * core.ErrDeviceLost.
 */
func (r *RendererSystem) DrawFrame(ctx context.Context, info FrameInfo) (core.FrameCounters, error) {
	var stats core.FrameCounters
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	r.frameNumber++

	stats.Evicted = r.targets.Tick(info.DeltaTime)
	defer r.releaseTargets()

	if err := r.acquireTargets(); err != nil {
		return stats, err
	}

	frame, err := r.queue.SwapAndDrain()
	if err != nil {
		core.LogWarn("frame %d: %s", r.frameNumber, err)
	}
	defer r.queue.Clear()
	if info.AfterSwap != nil {
		info.AfterSwap()
	}

	if info.Culler != nil {
		stats.Culled = r.cull(info.Culler, &frame)
	}

	for _, pass := range r.passes {
		if !pass.Enabled() {
			continue
		}
		if err := r.renderPass(pass, &frame, info.Eye, &stats); err != nil {
			return stats, err
		}
	}

	r.cache.DrainCompletions()
	return stats, nil
}

func (r *RendererSystem) acquireTargets() error {
	for _, pass := range r.passes {
		if !pass.Enabled() {
			continue
		}
		for _, a := range pass.Attachments() {
			if _, ok := r.acquired[a.Name]; ok {
				continue
			}
			if _, ok := r.failed[a.Name]; ok {
				continue
			}
			target, err := r.targets.Acquire(a.Descriptor)
			if err != nil {
				if errors.Is(err, core.ErrDeviceLost) {
					return err
				}
				r.failed[a.Name] = err
				continue
			}
			r.acquired[a.Name] = acquiredTarget{desc: a.Descriptor, target: target}
		}
	}
	return nil
}

func (r *RendererSystem) releaseTargets() {
	for name, at := range r.acquired {
		if err := r.targets.Release(at.desc, &at.target); err != nil {
			core.LogError("unable to release render target %s: %s", name, err)
		}
	}
	clear(r.acquired)
	clear(r.failed)
}

// cull marks the jobs failing the visibility test. Ranges are tested in
// parallel; each worker writes a disjoint part of the slice.
func (r *RendererSystem) cull(culler renderer.Culler, frame *jobqueue.FrameJobs) int {
	var culled atomic.Int64
	test := func(jobs []metadata.RenderJob) func(start, end int) {
		return func(start, end int) {
			n := int64(0)
			for i := start; i < end; i++ {
				if culler.Test(jobs[i].Bounds) == renderer.Culled {
					jobs[i].Culled = true
					n++
				}
			}
			culled.Add(n)
		}
	}
	for c := range frame {
		jobs := frame[c]
		if r.jobs == nil {
			test(jobs)(0, len(jobs))
			continue
		}
		r.jobs.Dispatch(len(jobs), r.cullChunk, test(jobs))
	}
	return int(culled.Load())
}

func (r *RendererSystem) material(handle metadata.MaterialHandle) *metadata.Material {
	if m, ok := r.materials.Material(handle); ok && m != nil {
		return m
	}
	return &metadata.Material{Handle: handle}
}

func (r *RendererSystem) renderPass(pass views.PassRenderer, frame *jobqueue.FrameJobs, eye math.Vec3, stats *core.FrameCounters) error {
	attachments := pass.Attachments()
	targets := make([]*metadata.RenderTarget, 0, len(attachments))
	for _, a := range attachments {
		at, ok := r.acquired[a.Name]
		if !ok {
			core.LogWarn("skipping %s pass: attachment %s unavailable: %v", pass.Name(), a.Name, r.failed[a.Name])
			stats.SkippedPasses++
			return nil
		}
		targets = append(targets, at.target)
	}

	// Casters outside the camera frustum still shadow what is inside it.
	// There is no light frustum, so the shadow pass ignores camera culling.
	shadow := pass.Type() == metadata.PassShadow
	r.passJobs = r.passJobs[:0]
	for c := range frame {
		for i := range frame[c] {
			job := &frame[c][i]
			if job.Culled && !shadow {
				continue
			}
			if pass.Accept(job, r.material(job.Material)) {
				r.passJobs = append(r.passJobs, *job)
				r.passJobs[len(r.passJobs)-1].Culled = false
			}
		}
	}

	groups := r.assembler.Build(pass.Type(), r.passJobs, eye)
	variants := make([]*metadata.PipelineVariant, len(groups))
	exact := make([]bool, len(groups))
	resolved := 0
	for i := range groups {
		variants[i], exact[i] = r.cache.Resolve(groups[i].Mask)
		if variants[i] != nil {
			resolved++
		}
	}
	if len(groups) > 0 && resolved == 0 {
		core.LogWarn("skipping %s pass: no pipeline variant available yet for %d groups", pass.Name(), len(groups))
		stats.SkippedPasses++
		for i := range groups {
			stats.Dropped += groupInstances(&groups[i])
		}
		return nil
	}

	if err := r.device.BeginPass(pass.Type(), targets); err != nil {
		if errors.Is(err, core.ErrDeviceLost) {
			return err
		}
		core.LogWarn("skipping %s pass: %s", pass.Name(), err)
		stats.SkippedPasses++
		return nil
	}

	for i := range groups {
		group := &groups[i]
		if variants[i] == nil {
			stats.Dropped += groupInstances(group)
			continue
		}
		if !exact[i] {
			stats.Fallbacks++
		}
		for _, b := range group.Batches {
			stats.Batches++
			for _, call := range r.assembler.Chunk(b) {
				call.Variant = variants[i]
				call.Fallback = !exact[i]
				if err := r.device.Submit(&call); err != nil {
					if errors.Is(err, core.ErrDeviceLost) {
						return err
					}
					core.LogWarn("%s pass: draw of geometry %d dropped: %s", pass.Name(), call.Geometry, err)
					stats.Dropped += call.InstanceCount()
					continue
				}
				stats.DrawCalls++
				stats.Instances += call.InstanceCount()
			}
		}
	}

	if err := r.device.EndPass(pass.Type()); err != nil {
		if errors.Is(err, core.ErrDeviceLost) {
			return err
		}
		core.LogWarn("%s pass: %s", pass.Name(), err)
	}
	return nil
}

func groupInstances(g *metadata.MaskGroup) int {
	n := 0
	for _, b := range g.Batches {
		n += len(b.Instances)
	}
	return n
}

// Cleanup drops the render side jobs. Called by the frame driver every frame.
func (r *RendererSystem) Cleanup() {
	r.queue.Clear()
}

// AllCleanup drops every queued job and every pooled render target. Only
// call it between frames, on scene teardown.
func (r *RendererSystem) AllCleanup() {
	r.queue.ClearAll()
	if n := r.targets.DestroyAll(); n > 0 {
		core.LogInfo("destroyed %d pooled render targets", n)
	}
}

func (r *RendererSystem) Shutdown() error {
	r.AllCleanup()
	return nil
}
