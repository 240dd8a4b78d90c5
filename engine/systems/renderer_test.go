package systems

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/math"
	"github.com/spaghettifunk/frameforge/engine/renderer"
	"github.com/spaghettifunk/frameforge/engine/renderer/headless"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
	"github.com/spaghettifunk/frameforge/engine/renderer/shadercache"
)

// testCompiler builds variants instantly, except for masks held back by
// hold until release is called.
type testCompiler struct {
	next atomic.Uint64
	hold func(mask metadata.PermutationMask) bool
	gate chan struct{}
	once sync.Once
}

func newTestCompiler(hold func(mask metadata.PermutationMask) bool) *testCompiler {
	return &testCompiler{hold: hold, gate: make(chan struct{})}
}

func (tc *testCompiler) Compile(mask metadata.PermutationMask) (*metadata.PipelineVariant, error) {
	if tc.hold != nil && tc.hold(mask) {
		<-tc.gate
	}
	module := metadata.ShaderModuleHandle(tc.next.Add(1))
	return &metadata.PipelineVariant{
		VertexProgram: metadata.ProgramHandle{Module: module, EntryPoint: shadercache.VertexEntryPoint},
	}, nil
}

func (tc *testCompiler) release() {
	tc.once.Do(func() { close(tc.gate) })
}

type fixture struct {
	sm       *SystemManager
	r        *RendererSystem
	device   *headless.Device
	compiler *testCompiler
	plain    metadata.MaterialHandle
	textured metadata.MaterialHandle
}

func newFixture(t *testing.T, tweak func(cfg *core.Config), hold func(mask metadata.PermutationMask) bool) *fixture {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Engine.Width = 640
	cfg.Engine.Height = 480
	cfg.Shadow.Enabled = false
	cfg.Jobs.CullWorkers = 2
	cfg.Jobs.CullChunk = 16
	if tweak != nil {
		tweak(cfg)
	}

	device := headless.New()
	compiler := newTestCompiler(hold)
	sm, err := NewSystemManager(cfg, device, compiler)
	if err != nil {
		t.Fatalf("NewSystemManager: %v", err)
	}
	t.Cleanup(func() {
		compiler.release()
		sm.Shutdown()
	})

	plain, err := sm.MaterialSystem.Register(metadata.Material{Name: "plain", CastsShadows: true})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	textured := metadata.Material{Name: "textured"}
	textured.Textures[metadata.TextureSlotDiffuse] = true
	texturedHandle, _ := sm.MaterialSystem.Register(textured)

	return &fixture{
		sm:       sm,
		r:        sm.RendererSystem,
		device:   device,
		compiler: compiler,
		plain:    plain,
		textured: texturedHandle,
	}
}

// settle waits until no mask is pending compilation.
func (f *fixture) settle(t *testing.T, masks ...metadata.PermutationMask) {
	t.Helper()
	cache := f.sm.ShaderSystem.Cache()
	cache.Prewarm(masks...)
	deadline := time.Now().Add(5 * time.Second)
	for {
		cache.DrainCompletions()
		pending := false
		for _, m := range masks {
			if cache.State(m) != metadata.VariantValid {
				pending = true
			}
		}
		if !pending {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("variants %v not valid after 5s", masks)
		}
		time.Sleep(time.Millisecond)
	}
}

func (f *fixture) push(t *testing.T, n int, material metadata.MaterialHandle, x float32) {
	t.Helper()
	for i := 0; i < n; i++ {
		world := math.NewMat4Translation(math.NewVec3(x, 0, float32(-i)))
		job := metadata.NewStaticJob(1, material, world, world, math.Sphere{Center: world.Position(), Radius: 1})
		if err := f.r.Push(job, metadata.JobCategoryStatic); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
}

func (f *fixture) frame(t *testing.T, info FrameInfo) core.FrameCounters {
	t.Helper()
	stats, err := f.r.DrawFrame(context.Background(), info)
	if err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	return stats
}

func opaqueCalls(t *testing.T, device *headless.Device) []metadata.DrawCall {
	t.Helper()
	for _, p := range device.TakePasses() {
		if p.Pass == metadata.PassOpaque {
			return p.Calls
		}
	}
	t.Fatal("no opaque pass recorded")
	return nil
}

func TestFrameSplitsLargeBatch(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.settle(t, metadata.MaskInstancing)

	f.push(t, 300, f.plain, 0)
	stats := f.frame(t, FrameInfo{})

	if stats.DrawCalls != 2 || stats.Instances != 300 || stats.Batches != 1 {
		t.Fatalf("stats:\nhave %+v\nwant 2 draw calls, 300 instances, 1 batch", stats)
	}
	calls := opaqueCalls(t, f.device)
	if len(calls) != 2 {
		t.Fatalf("opaque draw calls:\nhave %d\nwant 2", len(calls))
	}
	if calls[0].InstanceCount() != 256 || calls[1].InstanceCount() != 44 {
		t.Fatalf("instances per call:\nhave %d+%d\nwant 256+44", calls[0].InstanceCount(), calls[1].InstanceCount())
	}
}

func TestFallbackUpgradesAfterCompile(t *testing.T) {
	want := metadata.MaskDiffuseMap | metadata.MaskInstancing
	f := newFixture(t, nil, func(mask metadata.PermutationMask) bool { return mask == want })
	f.settle(t, metadata.MaskInstancing)

	f.push(t, 10, f.textured, 0)
	stats := f.frame(t, FrameInfo{})
	if stats.Fallbacks != 1 || stats.DrawCalls != 1 {
		t.Fatalf("first frame stats:\nhave %+v\nwant 1 fallback draw", stats)
	}
	calls := opaqueCalls(t, f.device)
	if !calls[0].Fallback || calls[0].Variant.Mask != metadata.MaskInstancing {
		t.Fatalf("first frame draw: fallback=%v mask=%s", calls[0].Fallback, calls[0].Variant.Mask)
	}

	f.compiler.release()
	f.settle(t, want)
	f.push(t, 10, f.textured, 0)
	stats = f.frame(t, FrameInfo{})
	if stats.Fallbacks != 0 || stats.DrawCalls != 1 {
		t.Fatalf("second frame stats:\nhave %+v\nwant 1 exact draw", stats)
	}
	calls = opaqueCalls(t, f.device)
	if calls[0].Fallback || calls[0].Variant.Mask != want {
		t.Fatalf("second frame draw: fallback=%v mask=%s", calls[0].Fallback, calls[0].Variant.Mask)
	}
}

func TestPassWithoutVariantIsSkipped(t *testing.T) {
	// the instancing variant every textured batch falls back to is held back
	f := newFixture(t, nil, func(mask metadata.PermutationMask) bool {
		return mask.Has(metadata.MaskInstancing)
	})

	f.push(t, 5, f.textured, 0)
	stats := f.frame(t, FrameInfo{})
	if stats.SkippedPasses != 1 || stats.Dropped != 5 || stats.DrawCalls != 0 {
		t.Fatalf("stats:\nhave %+v\nwant 1 skipped pass, 5 dropped", stats)
	}
	for _, p := range f.device.TakePasses() {
		if p.Pass == metadata.PassOpaque {
			t.Fatalf("skipped pass reached the device: %+v", p)
		}
	}

	// the next frame is unaffected by the skip
	f.compiler.release()
	f.settle(t, metadata.MaskInstancing)
	f.push(t, 5, f.textured, 0)
	if stats := f.frame(t, FrameInfo{}); stats.DrawCalls != 1 {
		t.Fatalf("frame after release:\nhave %+v\nwant 1 draw call", stats)
	}
}

func TestTargetsAreReusedAcrossFrames(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.settle(t, metadata.MaskInstancing)

	for i := 0; i < 5; i++ {
		f.push(t, 3, f.plain, 0)
		f.frame(t, FrameInfo{DeltaTime: 16 * time.Millisecond})
	}
	// color and depth, shared by the opaque and alpha passes
	if s := f.device.Stats(); s.TargetsCreated != 2 {
		t.Fatalf("targets created:\nhave %d\nwant 2", s.TargetsCreated)
	}
	if f.r.targets.InUse() != 0 {
		t.Fatalf("targets still checked out after the frame: %d", f.r.targets.InUse())
	}
}

func TestStaleTargetsAreEvicted(t *testing.T) {
	f := newFixture(t, func(cfg *core.Config) {
		cfg.Pool.IdleEviction = core.Duration{Duration: time.Second}
	}, nil)

	f.frame(t, FrameInfo{})
	f.r.OnResize(320, 240)
	f.frame(t, FrameInfo{})
	if f.device.LiveTargets() != 4 {
		t.Fatalf("live targets after resize:\nhave %d\nwant 4", f.device.LiveTargets())
	}

	if stats := f.frame(t, FrameInfo{DeltaTime: 600 * time.Millisecond}); stats.Evicted != 0 {
		t.Fatalf("evicted before the threshold: %d", stats.Evicted)
	}
	if stats := f.frame(t, FrameInfo{DeltaTime: 600 * time.Millisecond}); stats.Evicted != 2 {
		t.Fatalf("evicted after the threshold:\nhave %d\nwant 2", stats.Evicted)
	}
	if f.device.LiveTargets() != 2 {
		t.Fatalf("live targets:\nhave %d\nwant 2", f.device.LiveTargets())
	}
}

func TestTargetFailureSkipsOnlyThatPass(t *testing.T) {
	f := newFixture(t, func(cfg *core.Config) {
		cfg.Shadow.Enabled = true
		cfg.Shadow.MapSize = 1024
	}, nil)
	f.device.FailTargets(func(desc metadata.RenderTargetDescriptor) error {
		if desc.Width == 1024 {
			return errors.New("out of device memory")
		}
		return nil
	})
	f.settle(t, metadata.MaskInstancing)

	f.push(t, 4, f.plain, 0)
	stats := f.frame(t, FrameInfo{})
	if stats.SkippedPasses != 1 || stats.DrawCalls != 1 {
		t.Fatalf("stats:\nhave %+v\nwant shadow skipped and one opaque draw", stats)
	}
	for _, p := range f.device.TakePasses() {
		if p.Pass == metadata.PassShadow {
			t.Fatal("shadow pass reached the device")
		}
	}
}

func TestDeviceLossAbortsFrame(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.frame(t, FrameInfo{})

	f.device.Lose()
	f.push(t, 1, f.plain, 0)
	if _, err := f.r.DrawFrame(context.Background(), FrameInfo{}); !errors.Is(err, core.ErrDeviceLost) {
		t.Fatalf("DrawFrame on a lost device:\nhave %v\nwant %v", err, core.ErrDeviceLost)
	}
}

type halfSpaceCuller struct{}

// culls everything left of the origin
func (halfSpaceCuller) Test(bounds math.Sphere) renderer.Visibility {
	if bounds.Center.X+bounds.Radius < 0 {
		return renderer.Culled
	}
	return renderer.Visible
}

func TestCulledJobsAreSkipped(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.settle(t, metadata.MaskInstancing)

	f.push(t, 100, f.plain, 10)
	f.push(t, 50, f.plain, -10)
	stats := f.frame(t, FrameInfo{Culler: halfSpaceCuller{}})
	if stats.Culled != 50 || stats.Instances != 100 {
		t.Fatalf("stats:\nhave %+v\nwant 50 culled, 100 drawn", stats)
	}
}

func passInstances(passes []headless.PassRecord, pass metadata.PassType) int {
	n := 0
	for i := range passes {
		if passes[i].Pass == pass {
			n += passes[i].Instances()
		}
	}
	return n
}

func TestShadowPassKeepsOffscreenCasters(t *testing.T) {
	f := newFixture(t, func(cfg *core.Config) {
		cfg.Shadow.Enabled = true
		cfg.Shadow.MapSize = 512
	}, nil)
	f.settle(t, metadata.MaskInstancing, metadata.MaskDepthOnly|metadata.MaskInstancing)

	f.push(t, 30, f.plain, 10)
	f.push(t, 20, f.plain, -10)
	stats := f.frame(t, FrameInfo{Culler: halfSpaceCuller{}})
	if stats.Culled != 20 {
		t.Fatalf("culled:\nhave %d\nwant 20", stats.Culled)
	}

	passes := f.device.TakePasses()
	if n := passInstances(passes, metadata.PassShadow); n != 50 {
		t.Fatalf("shadow pass instances:\nhave %d\nwant 50", n)
	}
	if n := passInstances(passes, metadata.PassOpaque); n != 30 {
		t.Fatalf("opaque pass instances:\nhave %d\nwant 30", n)
	}
}

func TestJobsPushedAfterSwapWaitForNextFrame(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.settle(t, metadata.MaskInstancing)

	f.push(t, 10, f.plain, 0)
	swaps := 0
	stats := f.frame(t, FrameInfo{AfterSwap: func() {
		swaps++
		f.push(t, 5, f.plain, 0)
	}})
	if swaps != 1 || stats.Instances != 10 {
		t.Fatalf("first frame:\nhave %d swaps, %d instances\nwant 1 swap, 10 instances", swaps, stats.Instances)
	}

	stats = f.frame(t, FrameInfo{})
	if stats.Instances != 5 {
		t.Fatalf("second frame instances:\nhave %d\nwant 5", stats.Instances)
	}
}

func TestFrustumCulling(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.settle(t, metadata.DefaultMask, metadata.MaskInstancing)

	camera, _ := f.sm.CameraSystem.Acquire("main")
	camera.SetPosition(math.NewVec3(0, 0, 10))
	camera.LookAt(math.NewVec3Zero())
	culler := renderer.NewFrustumCuller(camera.ViewProjection(640.0 / 480.0))

	f.push(t, 1, f.plain, 0)
	// behind the camera
	behind := math.NewMat4Translation(math.NewVec3(0, 0, 50))
	f.r.Push(metadata.NewStaticJob(1, f.plain, behind, behind, math.Sphere{Center: behind.Position(), Radius: 1}), metadata.JobCategoryStatic)

	stats := f.frame(t, FrameInfo{Eye: camera.GetPosition(), Culler: culler})
	if stats.Culled != 1 || stats.Instances != 1 {
		t.Fatalf("stats:\nhave %+v\nwant 1 culled, 1 drawn", stats)
	}
}

func TestAllCleanupDropsQueuedJobs(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.settle(t, metadata.MaskInstancing)

	f.frame(t, FrameInfo{})
	f.push(t, 10, f.plain, 0)
	f.r.AllCleanup()
	if f.device.LiveTargets() != 0 {
		t.Fatalf("live targets after AllCleanup:\nhave %d\nwant 0", f.device.LiveTargets())
	}
	if stats := f.frame(t, FrameInfo{}); stats.Instances != 0 {
		t.Fatalf("jobs survived AllCleanup: %+v", stats)
	}
}

func TestGetRenderer(t *testing.T) {
	f := newFixture(t, nil, nil)
	for _, pass := range []metadata.PassType{metadata.PassShadow, metadata.PassOpaque, metadata.PassAlpha} {
		if r := f.r.GetRenderer(pass); r == nil || r.Type() != pass {
			t.Fatalf("GetRenderer(%s) = %v", pass, r)
		}
	}
	if f.r.GetRenderer(metadata.PassTypeCount) != nil {
		t.Fatal("GetRenderer returned a renderer for an unknown pass")
	}
}

func TestDrawFrameHonoursContext(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.r.DrawFrame(ctx, FrameInfo{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("DrawFrame with a canceled context:\nhave %v\nwant %v", err, context.Canceled)
	}
}
