package headless

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic = 0x07230203

// PassRecord is everything submitted between BeginPass and EndPass.
type PassRecord struct {
	Pass    metadata.PassType
	Targets []string
	Calls   []metadata.DrawCall
}

// Instances returns the number of instances drawn in the pass.
func (pr *PassRecord) Instances() int {
	n := 0
	for i := range pr.Calls {
		n += pr.Calls[i].InstanceCount()
	}
	return n
}

type Stats struct {
	TargetsCreated   int
	TargetsDestroyed int
	ShaderModules    int
	InputLayouts     int
	Submissions      int
}

/**
 * @brief A Device that records what it is asked to do instead of talking to
 * a GPU. Used by the demo driver and the tests. Failures can be injected.
 */
type Device struct {
	mutex      sync.Mutex
	nextHandle uint64
	targets    map[uint64]*metadata.RenderTarget
	stats      Stats

	passes  []PassRecord
	current *PassRecord
	// 0 keeps every pass
	history int

	targetFailure func(desc metadata.RenderTargetDescriptor) error
	lost          bool
}

func New() *Device {
	return &Device{
		targets: make(map[uint64]*metadata.RenderTarget),
	}
}

// FailTargets makes CreateRenderTarget fail whenever fn returns an error.
// A nil fn removes the failure.
func (d *Device) FailTargets(fn func(desc metadata.RenderTargetDescriptor) error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.targetFailure = fn
}

// SetPassHistory keeps only the n most recent passes. Long running drivers
// that never call TakePasses use it to bound memory.
func (d *Device) SetPassHistory(n int) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.history = n
	d.trim()
}

func (d *Device) trim() {
	if d.history > 0 && len(d.passes) > d.history {
		n := copy(d.passes, d.passes[len(d.passes)-d.history:])
		clear(d.passes[n:])
		d.passes = d.passes[:n]
	}
}

// Lose makes every following call fail with core.ErrDeviceLost.
func (d *Device) Lose() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.lost = true
}

func (d *Device) CreateRenderTarget(desc metadata.RenderTargetDescriptor) (*metadata.RenderTarget, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.lost {
		return nil, core.ErrDeviceLost
	}
	if d.targetFailure != nil {
		if err := d.targetFailure(desc); err != nil {
			return nil, err
		}
	}
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("invalid render target size %dx%d", desc.Width, desc.Height)
	}

	d.nextHandle++
	target := &metadata.RenderTarget{
		Name:       fmt.Sprintf("target_%s", uuid.NewString()),
		Descriptor: desc,
		Handle:     d.nextHandle,
	}
	d.targets[target.Handle] = target
	d.stats.TargetsCreated++
	return target, nil
}

func (d *Device) DestroyRenderTarget(target *metadata.RenderTarget) {
	if target == nil {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if _, ok := d.targets[target.Handle]; !ok {
		core.LogWarn("headless: destroying unknown render target %s", target.Name)
		return
	}
	delete(d.targets, target.Handle)
	d.stats.TargetsDestroyed++
}

func (d *Device) CreateShaderModule(label string, spirv []uint32) (metadata.ShaderModuleHandle, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.lost {
		return 0, core.ErrDeviceLost
	}
	if len(spirv) == 0 || spirv[0] != SPIRVMagic {
		return 0, fmt.Errorf("shader module %s: invalid SPIR-V", label)
	}
	d.nextHandle++
	d.stats.ShaderModules++
	return metadata.ShaderModuleHandle(d.nextHandle), nil
}

func (d *Device) CreateInputLayout(mask metadata.PermutationMask) (metadata.InputLayoutHandle, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.lost {
		return 0, core.ErrDeviceLost
	}
	d.nextHandle++
	d.stats.InputLayouts++
	return metadata.InputLayoutHandle(d.nextHandle), nil
}

func (d *Device) BeginPass(pass metadata.PassType, targets []*metadata.RenderTarget) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.lost {
		return core.ErrDeviceLost
	}
	if d.current != nil {
		return fmt.Errorf("begin %s pass while the %s pass is open", pass, d.current.Pass)
	}
	record := PassRecord{Pass: pass}
	for _, t := range targets {
		if _, ok := d.targets[t.Handle]; !ok {
			return fmt.Errorf("%s pass: render target %s is not alive", pass, t.Name)
		}
		record.Targets = append(record.Targets, t.Name)
	}
	d.current = &record
	return nil
}

func (d *Device) Submit(call *metadata.DrawCall) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.lost {
		return core.ErrDeviceLost
	}
	if d.current == nil {
		return fmt.Errorf("submit outside of a pass")
	}
	if call.Variant == nil || !call.Variant.Valid {
		return fmt.Errorf("submit without a valid pipeline variant")
	}
	recorded := *call
	recorded.Instances = append([]metadata.InstanceData(nil), call.Instances...)
	d.current.Calls = append(d.current.Calls, recorded)
	d.stats.Submissions++
	return nil
}

func (d *Device) EndPass(pass metadata.PassType) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.lost {
		return core.ErrDeviceLost
	}
	if d.current == nil || d.current.Pass != pass {
		return fmt.Errorf("end of %s pass that was not begun", pass)
	}
	d.passes = append(d.passes, *d.current)
	d.current = nil
	d.trim()
	return nil
}

// TakePasses returns the passes recorded since the last call and forgets them.
func (d *Device) TakePasses() []PassRecord {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	passes := d.passes
	d.passes = nil
	return passes
}

func (d *Device) Stats() Stats {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.stats
}

// LiveTargets returns the number of render targets not yet destroyed.
func (d *Device) LiveTargets() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.targets)
}
