package components

import (
	"github.com/spaghettifunk/frameforge/engine/math"
)

/**
 * @brief Represents a perspective camera. The view matrix is rebuilt lazily
 * after the position or target changed.
 */
type Camera struct {
	/** @brief The position of this camera. Use SetPosition so the view matrix is rebuilt. */
	Position math.Vec3
	/** @brief The point the camera looks at. */
	Target math.Vec3
	Up     math.Vec3

	FovRadians float32
	Near       float32
	Far        float32

	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty    bool
	ViewMatrix math.Mat4
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.NewVec3(0, 0, 10)
	c.Target = math.NewVec3Zero()
	c.Up = math.NewVec3(0, 1, 0)
	c.FovRadians = math.DegToRad(45)
	c.Near = 0.1
	c.Far = 1000
	c.IsDirty = true
}

func (c *Camera) GetPosition() math.Vec3 {
	return c.Position
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
	c.IsDirty = true
}

func (c *Camera) LookAt(target math.Vec3) {
	c.Target = target
	c.IsDirty = true
}

func (c *Camera) GetView() math.Mat4 {
	if c.IsDirty {
		c.ViewMatrix = math.NewMat4LookAt(c.Position, c.Target, c.Up)
		c.IsDirty = false
	}
	return c.ViewMatrix
}

// ViewProjection returns view then projection for the given aspect ratio.
func (c *Camera) ViewProjection(aspect float32) math.Mat4 {
	proj := math.NewMat4Perspective(c.FovRadians, aspect, c.Near, c.Far)
	return c.GetView().Mul(proj)
}
