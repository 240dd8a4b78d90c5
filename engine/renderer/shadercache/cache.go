package shadercache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/frameforge/engine/containers"
	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

// Compiler builds the pipeline variant of a permutation. It is only ever
// called from the compile worker.
type Compiler interface {
	Compile(mask metadata.PermutationMask) (*metadata.PipelineVariant, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(mask metadata.PermutationMask) (*metadata.PipelineVariant, error)

func (f CompilerFunc) Compile(mask metadata.PermutationMask) (*metadata.PipelineVariant, error) {
	return f(mask)
}

// FallbackPolicy decides what Resolve returns when neither the requested
// variant nor its reduced variant can be used yet.
type FallbackPolicy uint8

const (
	// FallbackSkip returns nil, the caller skips the draw.
	FallbackSkip FallbackPolicy = iota
	// FallbackDefault returns the variant of the default mask when it is valid.
	FallbackDefault
)

func ParseFallbackPolicy(s string) (FallbackPolicy, error) {
	switch s {
	case "", "skip":
		return FallbackSkip, nil
	case "default":
		return FallbackDefault, nil
	default:
		return FallbackSkip, fmt.Errorf("unknown fallback policy %q", s)
	}
}

func (p FallbackPolicy) String() string {
	if p == FallbackDefault {
		return "default"
	}
	return "skip"
}

const DefaultRequestCapacity = 256

type Config struct {
	// Maximum number of compile requests waiting for the worker.
	RequestCapacity int
	Policy          FallbackPolicy
}

type completion struct {
	mask    metadata.PermutationMask
	variant *metadata.PipelineVariant
	err     error
}

type entry struct {
	state   metadata.VariantState
	variant *metadata.PipelineVariant
}

/**
 * @brief Resolves permutation masks to pipeline variants. Missing variants
 * are compiled by a background worker and published once per frame by
 * DrainCompletions; until then Resolve serves a fallback.
 *
 * Resolve, DrainCompletions, Prewarm, State and Len must be called from the
 * render goroutine only. The variant map is never touched by the worker.
 */
type Cache struct {
	compiler Compiler
	policy   FallbackPolicy

	requests    *containers.BlockingQueue[metadata.PermutationMask]
	completions chan completion
	done        chan struct{}
	wg          sync.WaitGroup

	mutex    sync.Mutex
	isClosed bool

	// render goroutine only
	entries map[metadata.PermutationMask]*entry
}

func New(compiler Compiler, cfg Config) *Cache {
	if cfg.RequestCapacity <= 0 {
		cfg.RequestCapacity = DefaultRequestCapacity
	}
	c := &Cache{
		compiler:    compiler,
		policy:      cfg.Policy,
		requests:    containers.NewBlockingQueue[metadata.PermutationMask](cfg.RequestCapacity),
		completions: make(chan completion, cfg.RequestCapacity),
		done:        make(chan struct{}),
		entries:     make(map[metadata.PermutationMask]*entry),
	}
	c.wg.Add(1)
	go c.work()
	return c
}

func (c *Cache) work() {
	defer c.wg.Done()
	for {
		mask, ok := c.requests.Pop()
		if !ok {
			return
		}
		select {
		case <-c.done:
			return
		default:
		}
		variant, err := c.compiler.Compile(mask)
		if err == nil && variant == nil {
			err = errors.New("compiler returned no variant")
		}
		if err != nil {
			err = &core.CompileError{Mask: uint32(mask), Err: err}
			variant = nil
		}
		select {
		case c.completions <- completion{mask: mask, variant: variant, err: err}:
		case <-c.done:
			return
		}
	}
}

/**
 * @brief Returns the variant for mask. The boolean is true when the variant
 * is the exact one requested, false when it is a fallback. A nil variant
 * means nothing can be drawn for mask this frame. Once the exact variant
 * was returned it is returned for good.
 */
func (c *Cache) Resolve(mask metadata.PermutationMask) (*metadata.PipelineVariant, bool) {
	e := c.lookup(mask)
	switch e.state {
	case metadata.VariantValid:
		return e.variant, true
	case metadata.VariantAbsent:
		c.request(mask, e)
	}
	return c.fallback(mask), false
}

func (c *Cache) fallback(mask metadata.PermutationMask) *metadata.PipelineVariant {
	if reduced := mask.Reduced(); reduced != mask {
		e := c.lookup(reduced)
		switch e.state {
		case metadata.VariantValid:
			return e.variant
		case metadata.VariantAbsent:
			c.request(reduced, e)
		}
	}

	if c.policy == FallbackDefault && mask != metadata.DefaultMask {
		e := c.lookup(metadata.DefaultMask)
		switch e.state {
		case metadata.VariantValid:
			return e.variant
		case metadata.VariantAbsent:
			c.request(metadata.DefaultMask, e)
		}
	}
	return nil
}

func (c *Cache) lookup(mask metadata.PermutationMask) *entry {
	e, ok := c.entries[mask]
	if !ok {
		e = &entry{}
		c.entries[mask] = e
	}
	return e
}

// request hands mask to the worker. When the request queue is full the
// entry stays absent and the next Resolve tries again.
func (c *Cache) request(mask metadata.PermutationMask, e *entry) {
	if err := c.requests.TryPush(mask); err != nil {
		core.LogDebug("shader cache: compile request for %s deferred: %s", mask, err)
		return
	}
	e.state = metadata.VariantPending
}

/**
 * @brief Publishes every variant the worker finished since the last call
 * and returns how many were processed. A failed permutation is marked
 * invalid for good and reported once.
 */
func (c *Cache) DrainCompletions() int {
	n := 0
	for {
		select {
		case cm := <-c.completions:
			c.publish(cm)
			n++
		default:
			return n
		}
	}
}

func (c *Cache) publish(cm completion) {
	e := c.lookup(cm.mask)
	if e.state != metadata.VariantPending {
		return
	}
	if cm.err != nil {
		e.state = metadata.VariantInvalid
		core.LogError("shader cache: %s, falling back to %s", cm.err, cm.mask.Reduced())
		return
	}
	cm.variant.Mask = cm.mask
	cm.variant.Valid = true
	e.variant = cm.variant
	e.state = metadata.VariantValid
}

// Prewarm requests the compilation of every absent mask.
func (c *Cache) Prewarm(masks ...metadata.PermutationMask) {
	for _, mask := range masks {
		if e := c.lookup(mask); e.state == metadata.VariantAbsent {
			c.request(mask, e)
		}
	}
}

func (c *Cache) State(mask metadata.PermutationMask) metadata.VariantState {
	if e, ok := c.entries[mask]; ok {
		return e.state
	}
	return metadata.VariantAbsent
}

// Len returns the number of valid variants.
func (c *Cache) Len() int {
	n := 0
	for _, e := range c.entries {
		if e.state == metadata.VariantValid {
			n++
		}
	}
	return n
}

func (c *Cache) Policy() FallbackPolicy {
	return c.policy
}

/**
 * @brief Stops the worker. A compile in progress finishes but is not
 * published. Queued requests are dropped.
 */
func (c *Cache) Shutdown() error {
	c.mutex.Lock()
	if c.isClosed {
		c.mutex.Unlock()
		return core.ErrCacheClosed
	}
	c.isClosed = true
	c.mutex.Unlock()

	close(c.done)
	c.requests.Close()
	c.wg.Wait()
	return nil
}
