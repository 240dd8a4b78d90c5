package renderer

import (
	"sync"

	"github.com/spaghettifunk/frameforge/engine/math"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

// MaterialTable is an in-memory MaterialLibrary.
type MaterialTable struct {
	mutex     sync.RWMutex
	materials map[metadata.MaterialHandle]*metadata.Material
}

func NewMaterialTable(materials ...*metadata.Material) *MaterialTable {
	mt := &MaterialTable{
		materials: make(map[metadata.MaterialHandle]*metadata.Material, len(materials)),
	}
	for _, m := range materials {
		mt.Register(m)
	}
	return mt
}

// Register adds or replaces the material stored under m.Handle.
func (mt *MaterialTable) Register(m *metadata.Material) {
	mt.mutex.Lock()
	defer mt.mutex.Unlock()
	mt.materials[m.Handle] = m
}

func (mt *MaterialTable) Material(handle metadata.MaterialHandle) (*metadata.Material, bool) {
	mt.mutex.RLock()
	defer mt.mutex.RUnlock()
	m, ok := mt.materials[handle]
	return m, ok
}

func (mt *MaterialTable) Len() int {
	mt.mutex.RLock()
	defer mt.mutex.RUnlock()
	return len(mt.materials)
}

// FrustumCuller culls bounds lying entirely outside a view frustum. The
// frustum is immutable once built, so Test needs no locking.
type FrustumCuller struct {
	frustum math.Frustum
}

func NewFrustumCuller(viewProj math.Mat4) *FrustumCuller {
	return &FrustumCuller{frustum: math.NewFrustumFromMatrix(viewProj)}
}

func (fc *FrustumCuller) Test(bounds math.Sphere) Visibility {
	if fc.frustum.IntersectsSphere(bounds) {
		return Visible
	}
	return Culled
}
