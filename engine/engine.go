package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/math"
	"github.com/spaghettifunk/frameforge/engine/renderer"
	"github.com/spaghettifunk/frameforge/engine/renderer/shadercache"
	"github.com/spaghettifunk/frameforge/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every system
	EngineStageShutdown
)

const suspendedPoll = 10 * time.Millisecond

type resize struct {
	width  uint32
	height uint32
}

type Engine struct {
	currentStage  Stage
	gameInstance  *Game
	config        *core.Config
	systemManager *systems.SystemManager
	metrics       *core.Metrics
	clock         *core.Clock
	width         uint32
	height        uint32
	isSuspended   bool
	frameCount    uint64

	// applied at the next frame boundary, newest wins
	reloads <-chan *core.Config
	resizes chan resize

	mutex sync.Mutex
}

// New builds every system for the game. A nil compiler compiles shader
// variants with naga on the device.
func New(g *Game, cfg *core.Config, device renderer.Device, compiler shadercache.Compiler) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("func New - a game is required")
	}
	if cfg == nil {
		cfg = core.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		core.LogError("%s", err)
		return nil, err
	}

	sm, err := systems.NewSystemManager(cfg, device, compiler)
	if err != nil {
		core.LogError("%s", err)
		return nil, err
	}
	g.SystemManager = sm

	return &Engine{
		currentStage:  EngineStageUninitialized,
		gameInstance:  g,
		config:        cfg,
		systemManager: sm,
		metrics:       core.NewMetrics(),
		clock:         core.NewClock(),
		width:         cfg.Engine.Width,
		height:        cfg.Engine.Height,
		resizes:       make(chan resize, 1),
	}, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// WatchConfig makes the engine apply the configurations received on updates
// between frames.
func (e *Engine) WatchConfig(updates <-chan *core.Config) {
	e.reloads = updates
}

// Resize can be called from any goroutine; the new size is applied before
// the next frame. A zero size suspends rendering until the next resize.
func (e *Engine) Resize(width, height uint32) {
	r := resize{width: width, height: height}
	select {
	case <-e.resizes:
	default:
	}
	select {
	case e.resizes <- r:
	default:
	}
}

func (e *Engine) Metrics() *core.Metrics {
	return e.metrics
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

// GetFramebufferSize returns the width and height (in this order) of the framebuffer
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

type updateRequest struct {
	delta  time.Duration
	aspect float32
}

// updateResult carries the camera as it was when the update finished, so
// the render side never reads state the next update is mutating.
type updateResult struct {
	err      error
	eye      math.Vec3
	viewProj math.Mat4
}

/**
 * @brief Runs frames until ctx is done, the configured frame limit is
 * reached or a frame fails. The game updates on its own goroutine. The
 * render loop waits for the update of frame N, swaps its jobs in and then
 * lets the update of frame N+1 run while frame N is drawn, so no job ever
 * crosses a frame boundary.
 * @return nil when stopped by ctx or the frame limit.
 */
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return fmt.Errorf("engine cannot run from stage %d", e.currentStage)
	}
	e.currentStage = EngineStageRunning

	ctx, cancel := context.WithCancel(ctx)

	requests := make(chan updateRequest, 1)
	results := make(chan updateResult)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.updateLoop(ctx, requests, results)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	e.clock.Start()
	e.clock.Update()
	lastTime := e.clock.Elapsed()
	lastUpdate := lastTime

	// at most one update is in flight, and only while a frame is drawn
	pending := false
	request := func() {
		e.clock.Update()
		now := e.clock.Elapsed()
		requests <- updateRequest{delta: now - lastUpdate, aspect: e.aspect()}
		lastUpdate = now
		pending = true
	}

	request()
	var update updateResult
	for {
		if pending {
			select {
			case update = <-results:
				pending = false
			case <-ctx.Done():
				return nil
			}
			if update.err != nil {
				core.LogError("game update failed, shutting down: %s", update.err)
				return update.err
			}
		}

		// the update goroutine is idle here
		e.applyPending()

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - lastTime
		lastTime = currentTime
		frameStart := time.Now()

		if e.isSuspended {
			if err := e.sleep(ctx, max(e.frameBudget(), suspendedPoll)); err != nil {
				return nil
			}
			continue
		}

		last := e.config.Engine.MaxFrames > 0 && e.frameCount+1 >= e.config.Engine.MaxFrames
		info := systems.FrameInfo{
			DeltaTime: delta,
			Eye:       update.eye,
			Culler:    renderer.NewFrustumCuller(update.viewProj),
		}
		if !last {
			info.AfterSwap = request
		}
		stats, err := e.systemManager.RendererSystem.DrawFrame(ctx, info)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			core.LogError("frame %d failed, shutting down: %s", e.frameCount+1, err)
			return err
		}
		e.frameCount++
		frameElapsed := time.Since(frameStart)
		e.metrics.Update(frameElapsed, stats)
		core.LogDebug("frame %d: %d draw calls, %d instances, %d batches, %d fallbacks, %d skipped passes, %d culled",
			e.frameCount, stats.DrawCalls, stats.Instances, stats.Batches, stats.Fallbacks, stats.SkippedPasses, stats.Culled)

		if last {
			core.LogInfo("rendered %d frames, stopping", e.frameCount)
			return nil
		}
		if !pending {
			request()
		}

		// If there is time left, give it back to the OS.
		if remaining := e.frameBudget() - frameElapsed; remaining > 0 {
			if err := e.sleep(ctx, remaining); err != nil {
				return nil
			}
		}
	}
}

func (e *Engine) updateLoop(ctx context.Context, requests <-chan updateRequest, results chan<- updateResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-requests:
			var res updateResult
			if e.gameInstance.FnUpdate != nil {
				res.err = e.gameInstance.FnUpdate(req.delta.Seconds(), e.systemManager.RendererSystem)
			}
			camera := e.systemManager.CameraSystem.GetDefault()
			res.eye = camera.GetPosition()
			res.viewProj = camera.ViewProjection(req.aspect)
			select {
			case results <- res:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (e *Engine) aspect() float32 {
	return float32(e.width) / float32(e.height)
}

func (e *Engine) frameBudget() time.Duration {
	if e.config.Engine.TargetFPS == 0 {
		return 0
	}
	return time.Second / time.Duration(e.config.Engine.TargetFPS)
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// applyPending applies config reloads and resizes received since the last frame.
func (e *Engine) applyPending() {
	if e.reloads != nil {
		select {
		case cfg, ok := <-e.reloads:
			if !ok {
				e.reloads = nil
			} else if cfg != nil {
				e.applyConfig(cfg)
			}
		default:
		}
	}
	select {
	case r := <-e.resizes:
		e.onResized(r.width, r.height)
	default:
	}
}

// applyConfig only takes the tunables that are safe to change between
// frames. Framebuffer size, workers and the shader cache keep their values.
func (e *Engine) applyConfig(cfg *core.Config) {
	if err := core.SetLogLevel(cfg.Engine.LogLevel); err != nil {
		core.LogWarn("ignoring log level from reloaded config: %s", err)
	}
	e.config.Engine.LogLevel = cfg.Engine.LogLevel
	e.config.Engine.TargetFPS = cfg.Engine.TargetFPS
	e.config.Engine.MaxFrames = cfg.Engine.MaxFrames
	e.config.Pool = cfg.Pool
	e.config.Batch.MotionBlur = cfg.Batch.MotionBlur
	e.config.Shadow.Enabled = cfg.Shadow.Enabled
	e.systemManager.RendererSystem.ApplyConfig(e.config)
	core.LogInfo("applied reloaded configuration at frame %d", e.frameCount)
}

func (e *Engine) onResized(width, height uint32) {
	if width == e.width && height == e.height && !e.isSuspended {
		return
	}
	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Framebuffer minimized, suspending rendering.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Framebuffer restored, resuming rendering.")
		e.isSuspended = false
	}
	e.width = width
	e.height = height
	core.LogDebug("Framebuffer resize: %d, %d", width, height)

	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("%s", err)
		}
	}
	e.systemManager.RendererSystem.OnResize(width, height)
}

// Shutdown releases every system. Call it after Run returned.
func (e *Engine) Shutdown() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("%s", err)
		}
	}
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	e.currentStage = EngineStageShutdown
	return nil
}
