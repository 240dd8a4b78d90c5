package math

// Plane is ax + by + cz + d = 0 with (a, b, c) the normal; the positive
// half-space is inside the frustum.
type Plane struct {
	Normal   Vec3
	Distance float32
}

// Frustum represents the six planes of a view frustum for culling.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

const (
	FrustumLeft = iota
	FrustumRight
	FrustumBottom
	FrustumTop
	FrustumNear
	FrustumFar
)

// NewFrustumFromMatrix extracts the planes of a view-projection matrix using
// the Gribb/Hartmann method.
func NewFrustumFromMatrix(viewProj Mat4) Frustum {
	d := viewProj.Data
	row := func(r int) Vec4 {
		return Vec4{d[0+r], d[4+r], d[8+r], d[12+r]}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)

	var f Frustum
	f.Planes[FrustumLeft] = planeFrom(r3.X+r0.X, r3.Y+r0.Y, r3.Z+r0.Z, r3.W+r0.W)
	f.Planes[FrustumRight] = planeFrom(r3.X-r0.X, r3.Y-r0.Y, r3.Z-r0.Z, r3.W-r0.W)
	f.Planes[FrustumBottom] = planeFrom(r3.X+r1.X, r3.Y+r1.Y, r3.Z+r1.Z, r3.W+r1.W)
	f.Planes[FrustumTop] = planeFrom(r3.X-r1.X, r3.Y-r1.Y, r3.Z-r1.Z, r3.W-r1.W)
	f.Planes[FrustumNear] = planeFrom(r3.X+r2.X, r3.Y+r2.Y, r3.Z+r2.Z, r3.W+r2.W)
	f.Planes[FrustumFar] = planeFrom(r3.X-r2.X, r3.Y-r2.Y, r3.Z-r2.Z, r3.W-r2.W)
	return f
}

func planeFrom(a, b, c, d float32) Plane {
	p := Plane{Normal: Vec3{a, b, c}, Distance: d}
	length := p.Normal.Length()
	if length > 0 {
		inv := 1.0 / length
		p.Normal = p.Normal.MulScalar(inv)
		p.Distance *= inv
	}
	return p
}

// IntersectsSphere reports whether any part of s lies inside the frustum.
func (f *Frustum) IntersectsSphere(s Sphere) bool {
	for i := range f.Planes {
		p := &f.Planes[i]
		if p.Normal.Dot(s.Center)+p.Distance < -s.Radius {
			return false
		}
	}
	return true
}
