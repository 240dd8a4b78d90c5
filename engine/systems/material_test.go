package systems

import (
	"testing"

	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

func TestMaterialSystemRegister(t *testing.T) {
	ms, err := NewMaterialSystem(&MaterialSystemConfig{MaxMaterialCount: 3})
	if err != nil {
		t.Fatalf("NewMaterialSystem: %v", err)
	}
	if d := ms.GetDefault(); d == nil || d.Name != DefaultMaterialName || d.Handle != 0 {
		t.Fatalf("GetDefault:\nhave %+v\nwant the default material at handle 0", d)
	}

	brick := metadata.Material{Name: "brick"}
	brick.Textures[metadata.TextureSlotDiffuse] = true
	h, err := ms.Register(brick)
	if err != nil || h != 1 {
		t.Fatalf("Register(brick):\nhave %d, %v\nwant 1, nil", h, err)
	}
	if got, ok := ms.Acquire("brick"); !ok || got != h {
		t.Fatalf("Acquire(brick):\nhave %d, %v\nwant %d, true", got, ok, h)
	}

	// re-registering keeps the handle and replaces the material
	brick.Blend = metadata.BlendModeAlphaTest
	if again, _ := ms.Register(brick); again != h {
		t.Fatalf("re-Register(brick):\nhave %d\nwant %d", again, h)
	}
	if m, _ := ms.Material(h); m.Blend != metadata.BlendModeAlphaTest {
		t.Fatalf("material blend after re-register:\nhave %v\nwant %v", m.Blend, metadata.BlendModeAlphaTest)
	}

	if _, err := ms.Register(metadata.Material{Name: "glass"}); err != nil {
		t.Fatalf("Register(glass): %v", err)
	}
	if _, err := ms.Register(metadata.Material{Name: "steel"}); err == nil {
		t.Fatal("Register past the material limit succeeded")
	}
	if _, err := ms.Register(metadata.Material{}); err == nil {
		t.Fatal("Register of an unnamed material succeeded")
	}
	if _, ok := ms.Material(42); ok {
		t.Fatal("Material(42) found an unregistered handle")
	}
}

func TestCameraSystemRefCounting(t *testing.T) {
	cs, err := NewCameraSystem(&CameraSystemConfig{MaxCameraCount: 1})
	if err != nil {
		t.Fatalf("NewCameraSystem: %v", err)
	}
	if c, _ := cs.Acquire(DefaultCameraName); c != cs.GetDefault() {
		t.Fatal("Acquire(default) did not return the default camera")
	}

	a, _ := cs.Acquire("orbit")
	b, _ := cs.Acquire("orbit")
	if a != b {
		t.Fatal("Acquire returned two cameras for the same name")
	}
	if _, err := cs.Acquire("chase"); err == nil {
		t.Fatal("Acquire past the camera limit succeeded")
	}

	cs.Release("orbit")
	if c, _ := cs.Acquire("orbit"); c != a {
		t.Fatal("camera dropped while still referenced")
	}
	cs.Release("orbit")
	cs.Release("orbit")
	if c, _ := cs.Acquire("orbit"); c == a {
		t.Fatal("camera kept after its last release")
	}
}
