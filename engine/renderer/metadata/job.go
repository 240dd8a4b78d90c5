package metadata

import "github.com/spaghettifunk/frameforge/engine/math"

/** @brief Identifies a geometry (vertex + index buffers) owned by the geometry system. */
type GeometryHandle uint32

/** @brief Identifies a material owned by the material system. */
type MaterialHandle uint32

/** @brief Identifies the skinning palette stream of a skinned instance. */
type SkinStreamID uint32

/**
 * @brief Selects which job list a draw request is pushed to. Each category
 * is double buffered independently.
 */
type JobCategory uint8

const (
	/** @brief Rigid meshes. */
	JobCategoryStatic JobCategory = iota
	/** @brief Meshes deformed by a skin stream. */
	JobCategorySkinned
	/** @brief The number of job categories. */
	JobCategoryCount
)

func (c JobCategory) String() string {
	switch c {
	case JobCategoryStatic:
		return "static"
	case JobCategorySkinned:
		return "skinned"
	default:
		return "unknown"
	}
}

/**
 * @brief One immutable draw request produced by the scene traversal. The
 * only field written after Push is Culled, and only by the render side.
 */
type RenderJob struct {
	/** @brief The geometry to draw. */
	Geometry GeometryHandle
	/** @brief The material applied to the geometry. */
	Material MaterialHandle
	/** @brief The world matrix of this frame. */
	World math.Mat4
	/** @brief The world matrix of the previous frame, used for motion vectors. */
	PrevWorld math.Mat4
	/** @brief World space bounds used for culling and depth sorting. */
	Bounds math.Sphere
	/** @brief The skin stream, only meaningful when Skinned is set. */
	SkinStream SkinStreamID
	/** @brief Indicates a skinned job. */
	Skinned bool
	/** @brief Set by the visibility pass. Culled jobs are skipped by the assembler. */
	Culled bool
}

func NewStaticJob(geometry GeometryHandle, material MaterialHandle, world, prevWorld math.Mat4, bounds math.Sphere) RenderJob {
	return RenderJob{
		Geometry:  geometry,
		Material:  material,
		World:     world,
		PrevWorld: prevWorld,
		Bounds:    bounds,
	}
}

func NewSkinnedJob(geometry GeometryHandle, material MaterialHandle, world, prevWorld math.Mat4, bounds math.Sphere, skin SkinStreamID) RenderJob {
	return RenderJob{
		Geometry:   geometry,
		Material:   material,
		World:      world,
		PrevWorld:  prevWorld,
		Bounds:     bounds,
		SkinStream: skin,
		Skinned:    true,
	}
}

// Category returns the job list the job belongs to.
func (j *RenderJob) Category() JobCategory {
	if j.Skinned {
		return JobCategorySkinned
	}
	return JobCategoryStatic
}

/** @brief Per-instance data uploaded for instanced draws. */
type InstanceData struct {
	World      math.Mat4
	PrevWorld  math.Mat4
	SkinStream SkinStreamID
}

/**
 * @brief Jobs sharing geometry and material, rebuilt every frame.
 */
type InstanceBatch struct {
	/** @brief The first job of the batch. Its material and bounds stand for the whole batch. */
	Representative *RenderJob
	Pass           PassType
	Geometry       GeometryHandle
	Material       MaterialHandle
	Skinned        bool
	/** @brief The permutation the batch needs. */
	Mask PermutationMask
	/** @brief Instance data in submission order. */
	Instances []InstanceData
	/** @brief Squared distance from the eye to the representative bounds. */
	Depth float32
}

// Instanced reports whether the batch is drawn with per-instance data.
func (b *InstanceBatch) Instanced() bool {
	return len(b.Instances) > 1
}

/**
 * @brief Batches sharing a permutation, resolved against one pipeline variant.
 */
type MaskGroup struct {
	Mask    PermutationMask
	Batches []*InstanceBatch
}
