package views

import (
	"testing"

	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

func TestPassesAcceptByBlendMode(t *testing.T) {
	opaque := &metadata.Material{CastsShadows: true}
	glass := &metadata.Material{Blend: metadata.BlendModeAlphaBlend, CastsShadows: true}
	job := &metadata.RenderJob{}

	shadow := NewShadowView(true, 1024)
	world := NewWorldView(640, 480, false)
	alpha := NewAlphaView(640, 480)

	for _, tc := range []struct {
		pass     PassRenderer
		material *metadata.Material
		want     bool
	}{
		{shadow, opaque, true},
		{shadow, glass, false},
		{shadow, &metadata.Material{}, false},
		{world, opaque, true},
		{world, glass, false},
		{alpha, opaque, false},
		{alpha, glass, true},
	} {
		if have := tc.pass.Accept(job, tc.material); have != tc.want {
			t.Fatalf("%s.Accept(%+v):\nhave %v\nwant %v", tc.pass.Name(), tc.material, have, tc.want)
		}
	}
}

func TestAlphaSharesWorldAttachments(t *testing.T) {
	world := NewWorldView(640, 480, true)
	alpha := NewAlphaView(640, 480)

	names := make(map[string]metadata.RenderTargetDescriptor)
	for _, a := range world.Attachments() {
		names[a.Name] = a.Descriptor
	}
	if _, ok := names[AttachmentVelocity]; !ok {
		t.Fatal("world pass has no velocity attachment with motion blur on")
	}
	for _, a := range alpha.Attachments() {
		if desc, ok := names[a.Name]; !ok || desc != a.Descriptor {
			t.Fatalf("alpha attachment %s does not match the world pass", a.Name)
		}
	}

	world.Resize(1920, 1080)
	if d := world.Attachments()[0].Descriptor; d.Width != 1920 || d.Height != 1080 {
		t.Fatalf("size after Resize:\nhave %dx%d\nwant 1920x1080", d.Width, d.Height)
	}
}

func TestShadowDisabled(t *testing.T) {
	if NewShadowView(false, 2048).Enabled() {
		t.Fatal("disabled shadow pass reports enabled")
	}
	if NewShadowView(true, 0).Enabled() {
		t.Fatal("shadow pass without a map size reports enabled")
	}
}
