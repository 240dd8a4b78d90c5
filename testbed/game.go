package testbed

import (
	"fmt"
	gomath "math"
	"sync"

	"github.com/spaghettifunk/frameforge/engine"
	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/math"
	"github.com/spaghettifunk/frameforge/engine/renderer/components"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

const (
	geometryCrate metadata.GeometryHandle = iota + 1
	geometryPane
	geometryCharacter
)

const (
	crateGridSize   = 16
	crateSpacing    = 3.0
	characterCount  = 48
	characterGroups = 4
	paneCount       = 8
	orbitRadius     = 40.0
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	WorldCamera *components.Camera

	width  uint32
	height uint32

	elapsed float64

	brick     metadata.MaterialHandle
	glass     metadata.MaterialHandle
	character metadata.MaterialHandle

	// previous frame transforms, for motion vectors
	crates     []math.Mat4
	characters []math.Mat4
}

func NewTestGame() (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			State: &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers ")
	}

	state := g.State.(*gameState)
	state.WorldCamera = g.SystemManager.CameraSystem.GetDefault()
	state.WorldCamera.SetPosition(math.NewVec3(0, 8, orbitRadius))
	state.WorldCamera.LookAt(math.NewVec3Zero())

	brick := metadata.Material{Name: "brick", CastsShadows: true, ReceivesShadows: true}
	brick.Textures[metadata.TextureSlotDiffuse] = true
	brick.Textures[metadata.TextureSlotNormal] = true

	glass := metadata.Material{Name: "glass", Blend: metadata.BlendModeAlphaBlend}
	glass.Textures[metadata.TextureSlotOpacity] = true

	character := metadata.Material{Name: "character", CastsShadows: true, ReceivesShadows: true, VertexColor: true}
	character.Textures[metadata.TextureSlotDiffuse] = true

	for _, m := range []struct {
		material metadata.Material
		handle   *metadata.MaterialHandle
	}{
		{brick, &state.brick},
		{glass, &state.glass},
		{character, &state.character},
	} {
		h, err := g.SystemManager.MaterialSystem.Register(m.material)
		if err != nil {
			return err
		}
		*m.handle = h
	}

	state.crates = make([]math.Mat4, crateGridSize*crateGridSize)
	for i := range state.crates {
		state.crates[i] = crateTransform(i, 0)
	}
	state.characters = make([]math.Mat4, characterCount)
	for i := range state.characters {
		state.characters[i] = characterTransform(i, 0)
	}
	return nil
}

func crateTransform(i int, elapsed float64) math.Mat4 {
	x := float32(i%crateGridSize)*crateSpacing - crateGridSize*crateSpacing/2
	z := float32(i/crateGridSize)*crateSpacing - crateGridSize*crateSpacing/2
	y := float32(0.5 * gomath.Sin(elapsed+float64(i)*0.1))
	return math.NewMat4Translation(math.NewVec3(x, y, z))
}

func characterTransform(i int, elapsed float64) math.Mat4 {
	angle := elapsed*0.3 + float64(i)*2*gomath.Pi/characterCount
	r := 0.4 * orbitRadius
	return math.NewMat4Translation(math.NewVec3(float32(r*gomath.Cos(angle)), 0, float32(r*gomath.Sin(angle))))
}

func (g *TestGame) Update(deltaTime float64, submitter engine.Submitter) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime

	// orbit the camera around the scene
	angle := state.elapsed * 0.2
	state.WorldCamera.SetPosition(math.NewVec3(float32(orbitRadius*gomath.Sin(angle)), 8, float32(orbitRadius*gomath.Cos(angle))))
	state.WorldCamera.LookAt(math.NewVec3Zero())

	for i := range state.crates {
		world := crateTransform(i, state.elapsed)
		job := metadata.NewStaticJob(geometryCrate, state.brick, world, state.crates[i], math.Sphere{Center: world.Position(), Radius: 0.9})
		if err := submitter.Push(job, metadata.JobCategoryStatic); err != nil {
			return err
		}
		state.crates[i] = world
	}

	for i := 0; i < paneCount; i++ {
		world := math.NewMat4Translation(math.NewVec3(float32(i-paneCount/2)*4, 2, 0))
		job := metadata.NewStaticJob(geometryPane, state.glass, world, world, math.Sphere{Center: world.Position(), Radius: 1.5})
		if err := submitter.Push(job, metadata.JobCategoryStatic); err != nil {
			return err
		}
	}

	// characters are animated in parallel, each group pushing its own jobs
	var wg sync.WaitGroup
	errs := make([]error, characterGroups)
	per := characterCount / characterGroups
	for grp := 0; grp < characterGroups; grp++ {
		wg.Add(1)
		go func(grp int) {
			defer wg.Done()
			for i := grp * per; i < (grp+1)*per; i++ {
				world := characterTransform(i, state.elapsed)
				job := metadata.NewSkinnedJob(geometryCharacter, state.character, world, state.characters[i],
					math.Sphere{Center: world.Position(), Radius: 1.2}, metadata.SkinStreamID(i))
				if err := submitter.Push(job, metadata.JobCategorySkinned); err != nil {
					errs[grp] = err
					return
				}
				state.characters[i] = world
			}
		}(grp)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogDebug("TestGame Shutdown fn....")
	return nil
}
