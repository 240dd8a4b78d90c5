package pool

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/frameforge/engine/core"
)

// DefaultIdleEviction is the idle time after which an unused resource is destroyed.
const DefaultIdleEviction = 5 * time.Second

// Factory builds a new resource matching the descriptor.
type Factory[D comparable, T any] func(desc D) (*T, error)

// Destructor releases the device object behind a resource.
type Destructor[T any] func(res *T)

type entry[T any] struct {
	id       uuid.UUID
	resource *T
	inUse    bool
	idle     time.Duration
}

// Pool lends out resources keyed by descriptor and reclaims them after they
// stayed unused for longer than the idle threshold. It grows without bound;
// eviction is what keeps the steady state small.
type Pool[D comparable, T any] struct {
	mutex        sync.Mutex
	buckets      map[D][]*entry[T]
	factory      Factory[D, T]
	destroy      Destructor[T]
	idleEviction time.Duration
}

func New[D comparable, T any](factory Factory[D, T], destroy Destructor[T], idleEviction time.Duration) *Pool[D, T] {
	if idleEviction <= 0 {
		idleEviction = DefaultIdleEviction
	}
	return &Pool[D, T]{
		buckets:      make(map[D][]*entry[T]),
		factory:      factory,
		destroy:      destroy,
		idleEviction: idleEviction,
	}
}

// Acquire returns the first idle resource stored under desc, or creates one.
// The factory runs without the pool lock held, so a slow creation never
// stalls other callers. A factory failure is returned as a
// *core.ResourceCreationError and leaves the pool unchanged.
func (p *Pool[D, T]) Acquire(desc D) (*T, error) {
	p.mutex.Lock()
	for _, e := range p.buckets[desc] {
		if !e.inUse {
			e.inUse = true
			e.idle = 0
			p.mutex.Unlock()
			return e.resource, nil
		}
	}
	p.mutex.Unlock()

	res, err := p.factory(desc)
	if err != nil {
		return nil, &core.ResourceCreationError{Descriptor: desc, Err: err}
	}
	if res == nil {
		return nil, &core.ResourceCreationError{Descriptor: desc, Err: core.ErrNilResource}
	}
	e := &entry[T]{
		id:       uuid.New(),
		resource: res,
		inUse:    true,
	}

	p.mutex.Lock()
	p.buckets[desc] = append(p.buckets[desc], e)
	p.mutex.Unlock()

	core.LogDebug("pool: created resource %s for %+v", e.id, desc)
	return res, nil
}

// Release hands the resource back and clears the caller's handle so it
// cannot be used again.
func (p *Pool[D, T]) Release(desc D, res **T) error {
	if res == nil || *res == nil {
		return core.ErrNilResource
	}

	p.mutex.Lock()
	defer p.mutex.Unlock()

	for _, e := range p.buckets[desc] {
		if e.resource != *res {
			continue
		}
		if !e.inUse {
			// double release
			return core.ErrUnknownResource
		}
		e.inUse = false
		e.idle = 0
		*res = nil
		return nil
	}
	return core.ErrUnknownResource
}

// Tick ages every idle resource by dt and destroys those whose idle time
// exceeds the threshold. It returns the number of resources destroyed.
func (p *Pool[D, T]) Tick(dt time.Duration) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	evicted := 0
	for desc, bucket := range p.buckets {
		kept := bucket[:0]
		for _, e := range bucket {
			if e.inUse {
				kept = append(kept, e)
				continue
			}
			e.idle += dt
			if e.idle > p.idleEviction {
				core.LogDebug("pool: evicting resource %s idle for %s", e.id, e.idle)
				if p.destroy != nil {
					p.destroy(e.resource)
				}
				evicted++
				continue
			}
			kept = append(kept, e)
		}
		// clear the tail so evicted entries can be collected
		for i := len(kept); i < len(bucket); i++ {
			bucket[i] = nil
		}
		if len(kept) == 0 {
			delete(p.buckets, desc)
		} else {
			p.buckets[desc] = kept
		}
	}
	return evicted
}

// Len returns the number of resources owned by the pool, idle or not.
func (p *Pool[D, T]) Len() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := 0
	for _, bucket := range p.buckets {
		n += len(bucket)
	}
	return n
}

// InUse returns the number of resources currently checked out.
func (p *Pool[D, T]) InUse() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := 0
	for _, bucket := range p.buckets {
		for _, e := range bucket {
			if e.inUse {
				n++
			}
		}
	}
	return n
}

// InUseFor returns the number of resources checked out for desc.
func (p *Pool[D, T]) InUseFor(desc D) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := 0
	for _, e := range p.buckets[desc] {
		if e.inUse {
			n++
		}
	}
	return n
}

func (p *Pool[D, T]) IdleEviction() time.Duration {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.idleEviction
}

func (p *Pool[D, T]) SetIdleEviction(d time.Duration) {
	if d <= 0 {
		return
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.idleEviction = d
}

// DestroyAll destroys every resource, including checked out ones. Only
// call it when nothing references pooled resources anymore.
func (p *Pool[D, T]) DestroyAll() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	n := 0
	for desc, bucket := range p.buckets {
		for _, e := range bucket {
			if e.inUse {
				core.LogWarn("pool: destroying resource %s still in use", e.id)
			}
			if p.destroy != nil {
				p.destroy(e.resource)
			}
			n++
		}
		delete(p.buckets, desc)
	}
	return n
}
