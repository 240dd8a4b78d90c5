package batch

import (
	"cmp"

	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/math"
	"github.com/spaghettifunk/frameforge/engine/renderer"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
	"golang.org/x/exp/slices"
)

// DefaultInstanceCapacity is the number of instances a single draw call carries.
const DefaultInstanceCapacity = 256

type Config struct {
	InstanceCapacity int
	MotionBlur       bool
}

type batchKey struct {
	geometry metadata.GeometryHandle
	material metadata.MaterialHandle
	skinned  bool
}

// defaultMaterial stands in for handles the material library does not know.
var defaultMaterial = metadata.Material{Name: "default"}

/**
 * @brief Turns the jobs of a pass into instance batches grouped by the
 * permutation they need. Build is not safe for concurrent use.
 */
type Assembler struct {
	materials  renderer.MaterialLibrary
	capacity   int
	motionBlur bool

	index map[batchKey]int
}

func New(materials renderer.MaterialLibrary, cfg Config) *Assembler {
	if cfg.InstanceCapacity <= 0 {
		cfg.InstanceCapacity = DefaultInstanceCapacity
	}
	return &Assembler{
		materials:  materials,
		capacity:   cfg.InstanceCapacity,
		motionBlur: cfg.MotionBlur,
		index:      make(map[batchKey]int),
	}
}

func (a *Assembler) InstanceCapacity() int {
	return a.capacity
}

func (a *Assembler) SetMotionBlur(enabled bool) {
	a.motionBlur = enabled
}

func (a *Assembler) material(handle metadata.MaterialHandle) *metadata.Material {
	if m, ok := a.materials.Material(handle); ok && m != nil {
		return m
	}
	core.LogDebug("batch: unknown material %d, using the default material", handle)
	return &defaultMaterial
}

/**
 * @brief Builds the mask groups of a pass. Culled jobs are skipped. Opaque
 * and shadow groups hold their instanced batches in submission order
 * followed by single draws sorted front to back. Alpha batches are sorted
 * back to front as a whole and grouped in runs of equal masks so blending
 * order holds across groups.
 */
func (a *Assembler) Build(pass metadata.PassType, jobs []metadata.RenderJob, eye math.Vec3) []metadata.MaskGroup {
	batches := a.group(pass, jobs, eye)
	if len(batches) == 0 {
		return nil
	}
	if pass == metadata.PassAlpha {
		return groupRuns(batches)
	}
	return groupByMask(batches)
}

func (a *Assembler) group(pass metadata.PassType, jobs []metadata.RenderJob, eye math.Vec3) []*metadata.InstanceBatch {
	clear(a.index)
	batches := make([]*metadata.InstanceBatch, 0, 16)

	for i := range jobs {
		job := &jobs[i]
		if job.Culled {
			continue
		}
		key := batchKey{geometry: job.Geometry, material: job.Material, skinned: job.Skinned}
		idx, ok := a.index[key]
		if !ok {
			idx = len(batches)
			a.index[key] = idx
			batches = append(batches, &metadata.InstanceBatch{
				Representative: job,
				Pass:           pass,
				Geometry:       job.Geometry,
				Material:       job.Material,
				Skinned:        job.Skinned,
				Depth:          job.Bounds.Center.DistanceSquared(eye),
			})
		}
		b := batches[idx]
		b.Instances = append(b.Instances, metadata.InstanceData{
			World:      job.World,
			PrevWorld:  job.PrevWorld,
			SkinStream: job.SkinStream,
		})
	}

	for _, b := range batches {
		b.Mask = a.mask(pass, b)
	}
	return batches
}

// mask computes the permutation a batch needs in a pass.
func (a *Assembler) mask(pass metadata.PassType, b *metadata.InstanceBatch) metadata.PermutationMask {
	var mask metadata.PermutationMask
	switch pass {
	case metadata.PassShadow:
		mask = metadata.MaskDepthOnly
	case metadata.PassAlpha:
		mask = a.material(b.Material).FeatureMask() | metadata.MaskAlphaBlend
	default:
		mask = a.material(b.Material).FeatureMask()
	}
	if b.Instanced() {
		mask |= metadata.MaskInstancing
	}
	if b.Skinned {
		mask |= metadata.MaskSkinning
	}
	if a.motionBlur && pass != metadata.PassShadow {
		mask |= metadata.MaskMotionBlur
	}
	return mask
}

func groupByMask(batches []*metadata.InstanceBatch) []metadata.MaskGroup {
	groups := make([]metadata.MaskGroup, 0, 4)
	index := make(map[metadata.PermutationMask]int, 4)
	for _, b := range batches {
		idx, ok := index[b.Mask]
		if !ok {
			idx = len(groups)
			index[b.Mask] = idx
			groups = append(groups, metadata.MaskGroup{Mask: b.Mask})
		}
		groups[idx].Batches = append(groups[idx].Batches, b)
	}

	for i := range groups {
		g := &groups[i]
		// instanced first, in submission order; singles front to back
		slices.SortStableFunc(g.Batches, func(x, y *metadata.InstanceBatch) int {
			xi, yi := x.Instanced(), y.Instanced()
			switch {
			case xi && yi:
				return 0
			case xi:
				return -1
			case yi:
				return 1
			}
			return cmp.Compare(x.Depth, y.Depth)
		})
	}
	return groups
}

func groupRuns(batches []*metadata.InstanceBatch) []metadata.MaskGroup {
	slices.SortStableFunc(batches, func(x, y *metadata.InstanceBatch) int {
		return cmp.Compare(y.Depth, x.Depth)
	})

	groups := make([]metadata.MaskGroup, 0, 4)
	for _, b := range batches {
		if n := len(groups); n > 0 && groups[n-1].Mask == b.Mask {
			groups[n-1].Batches = append(groups[n-1].Batches, b)
			continue
		}
		groups = append(groups, metadata.MaskGroup{Mask: b.Mask, Batches: []*metadata.InstanceBatch{b}})
	}
	return groups
}

/**
 * @brief Splits a batch into draw calls of at most InstanceCapacity
 * instances, in order. A single instance is a plain draw without
 * instance data.
 */
func (a *Assembler) Chunk(b *metadata.InstanceBatch) []metadata.DrawCall {
	n := len(b.Instances)
	if n == 0 {
		return nil
	}
	if n == 1 {
		inst := b.Instances[0]
		return []metadata.DrawCall{{
			Pass:       b.Pass,
			Mask:       b.Mask,
			Geometry:   b.Geometry,
			Material:   b.Material,
			World:      inst.World,
			PrevWorld:  inst.PrevWorld,
			SkinStream: inst.SkinStream,
		}}
	}

	calls := make([]metadata.DrawCall, 0, (n+a.capacity-1)/a.capacity)
	for start := 0; start < n; start += a.capacity {
		end := min(start+a.capacity, n)
		calls = append(calls, metadata.DrawCall{
			Pass:      b.Pass,
			Mask:      b.Mask,
			Geometry:  b.Geometry,
			Material:  b.Material,
			Instanced: true,
			Instances: b.Instances[start:end:end],
		})
	}
	return calls
}
