package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/renderer"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

type MaterialSystemConfig struct {
	/** @brief The maximum number of materials that can be registered. */
	MaxMaterialCount uint32
}

/**
 * @brief Hands out material handles and answers texture presence and blend
 * state queries for the frame pipeline. Safe for concurrent use.
 */
type MaterialSystem struct {
	config *MaterialSystemConfig
	table  *renderer.MaterialTable

	mutex  sync.Mutex
	lookup map[string]metadata.MaterialHandle
	next   metadata.MaterialHandle
}

func NewMaterialSystem(config *MaterialSystemConfig) (*MaterialSystem, error) {
	if config.MaxMaterialCount == 0 {
		err := fmt.Errorf("func NewMaterialSystem - config.MaxMaterialCount must be > 0")
		core.LogError("%s", err)
		return nil, err
	}
	ms := &MaterialSystem{
		config: config,
		table:  renderer.NewMaterialTable(),
		lookup: make(map[string]metadata.MaterialHandle),
	}
	// handle 0 is the default material
	if _, err := ms.Register(metadata.Material{Name: DefaultMaterialName, CastsShadows: true}); err != nil {
		return nil, err
	}
	return ms, nil
}

/**
 * @brief Registers a material under its name and returns its handle.
 * Registering a known name replaces the material and keeps the handle.
 */
func (ms *MaterialSystem) Register(m metadata.Material) (metadata.MaterialHandle, error) {
	if m.Name == "" {
		return 0, fmt.Errorf("material name cannot be empty")
	}
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	handle, ok := ms.lookup[m.Name]
	if !ok {
		if uint32(ms.next) >= ms.config.MaxMaterialCount {
			return 0, fmt.Errorf("unable to register material '%s': limit of %d reached", m.Name, ms.config.MaxMaterialCount)
		}
		handle = ms.next
		ms.next++
		ms.lookup[m.Name] = handle
	}
	m.Handle = handle
	ms.table.Register(&m)
	return handle, nil
}

func (ms *MaterialSystem) Acquire(name string) (metadata.MaterialHandle, bool) {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	handle, ok := ms.lookup[name]
	return handle, ok
}

func (ms *MaterialSystem) Material(handle metadata.MaterialHandle) (*metadata.Material, bool) {
	return ms.table.Material(handle)
}

func (ms *MaterialSystem) GetDefault() *metadata.Material {
	m, _ := ms.table.Material(0)
	return m
}

func (ms *MaterialSystem) Shutdown() error {
	return nil
}
