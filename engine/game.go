package engine

import (
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
	"github.com/spaghettifunk/frameforge/engine/systems"
)

// Submitter receives the render jobs produced while updating a frame. It is
// safe to call from any goroutine the game spawns during FnUpdate.
type Submitter interface {
	Push(job metadata.RenderJob, category metadata.JobCategory) error
}

type Game struct {
	// Set by the engine before FnInitialize is called.
	SystemManager *systems.SystemManager
	State         interface{}
	FnInitialize  Initialize
	FnUpdate      Update
	FnOnResize    OnResize
	FnShutdown    Shutdown
}

type Initialize func() error
type Update func(deltaTime float64, submitter Submitter) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
