package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/renderer/components"
)

/** @brief The name of the default camera. */
const DefaultCameraName string = "default"

type cameraLookup struct {
	referenceCount uint16
	camera         *components.Camera
}

/** @brief The camera system configuration. */
type CameraSystemConfig struct {
	/** @brief The maximum number of cameras that can be managed by the system. */
	MaxCameraCount uint16
}

type CameraSystem struct {
	config  *CameraSystemConfig
	mutex   sync.Mutex
	cameras map[string]*cameraLookup
	// A default, non-registered camera that always exists as a fallback.
	defaultCamera *components.Camera
}

func NewCameraSystem(config *CameraSystemConfig) (*CameraSystem, error) {
	if config.MaxCameraCount == 0 {
		err := fmt.Errorf("func NewCameraSystem - config.MaxCameraCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}
	return &CameraSystem{
		config:        config,
		cameras:       make(map[string]*cameraLookup, config.MaxCameraCount),
		defaultCamera: components.NewCamera(),
	}, nil
}

func (cs *CameraSystem) Shutdown() error {
	cs.mutex.Lock()
	defer cs.mutex.Unlock()
	clear(cs.cameras)
	return nil
}

/**
 * @brief Acquires a camera by name, creating it on first use. The internal
 * reference counter is incremented.
 */
func (cs *CameraSystem) Acquire(name string) (*components.Camera, error) {
	if name == DefaultCameraName {
		return cs.defaultCamera, nil
	}
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	lookup, ok := cs.cameras[name]
	if !ok {
		if len(cs.cameras) >= int(cs.config.MaxCameraCount) {
			err := fmt.Errorf("func CameraSystemAcquire failed to acquire new slot. Adjust camera system config to allow more")
			core.LogError("%s", err)
			return nil, err
		}
		core.LogDebug("Creating new camera named '%s'...", name)
		lookup = &cameraLookup{camera: components.NewCamera()}
		cs.cameras[name] = lookup
	}
	lookup.referenceCount++
	return lookup.camera, nil
}

/**
 * @brief Releases a camera. When the reference counter reaches 0 the
 * camera is dropped.
 */
func (cs *CameraSystem) Release(name string) {
	if name == DefaultCameraName {
		core.LogDebug("Cannot release default camera. Nothing was done.")
		return
	}
	cs.mutex.Lock()
	defer cs.mutex.Unlock()

	lookup, ok := cs.cameras[name]
	if !ok {
		core.LogWarn("CameraSystemRelease failed lookup. Nothing was done.")
		return
	}
	lookup.referenceCount--
	if lookup.referenceCount < 1 {
		delete(cs.cameras, name)
	}
}

func (cs *CameraSystem) GetDefault() *components.Camera {
	return cs.defaultCamera
}
