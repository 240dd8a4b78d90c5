package jobqueue

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/frameforge/engine/core"
	"github.com/spaghettifunk/frameforge/engine/renderer/metadata"
)

type State uint8

const (
	// Idle: nothing pushed since the last swap and the render side is empty.
	StateIdle State = iota
	// Accepting: the update side holds jobs for the next swap.
	StateAccepting
	// Draining: the render side holds swapped jobs that were not cleared yet.
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccepting:
		return "accepting"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

type Config struct {
	// Panics on misuse instead of returning core.ErrQueueMisuse.
	Debug bool
	// Initial capacity of every job list.
	InitialCapacity int
}

// FrameJobs holds the render side jobs of one frame, indexed by category.
type FrameJobs [metadata.JobCategoryCount][]metadata.RenderJob

// Len returns the number of jobs over every category.
func (fj *FrameJobs) Len() int {
	n := 0
	for i := range fj {
		n += len(fj[i])
	}
	return n
}

/**
 * @brief Double buffered job lists, one pair per category. The update
 * goroutine pushes into the update side, the render goroutine reads the
 * render side without locking. Swap is the only synchronization point.
 */
type Queue struct {
	debug bool

	// guards buffers[c][update] and the update index for category c
	locks   [metadata.JobCategoryCount]sync.Mutex
	buffers [metadata.JobCategoryCount][2][]metadata.RenderJob
	update  int

	// render side bookkeeping, owned by the render goroutine
	swapped bool
	cleared bool
	drained [metadata.JobCategoryCount]bool
}

func New(cfg Config) *Queue {
	q := &Queue{
		debug:   cfg.Debug,
		cleared: true,
	}
	for c := range q.buffers {
		for i := range q.buffers[c] {
			q.buffers[c][i] = make([]metadata.RenderJob, 0, cfg.InitialCapacity)
		}
	}
	return q
}

func (q *Queue) misuse(format string, args ...interface{}) error {
	core.Assert(q.debug, false, format, args...)
	return fmt.Errorf("%w: %s", core.ErrQueueMisuse, fmt.Sprintf(format, args...))
}

/**
 * @brief Appends a job to the update side of its category. Safe to call
 * from any number of goroutines.
 */
func (q *Queue) Push(job metadata.RenderJob, category metadata.JobCategory) error {
	if category >= metadata.JobCategoryCount {
		return q.misuse("push to unknown job category %d", category)
	}
	q.locks[category].Lock()
	q.buffers[category][q.update] = append(q.buffers[category][q.update], job)
	q.locks[category].Unlock()
	return nil
}

// PushJob pushes the job into the category it belongs to.
func (q *Queue) PushJob(job metadata.RenderJob) error {
	return q.Push(job, job.Category())
}

/**
 * @brief Flips the update and render sides. Must be called once per frame
 * from the render goroutine, after the previous frame was cleared. In
 * release mode a missing Clear is reported and the stale jobs are dropped.
 */
func (q *Queue) Swap() error {
	var err error
	if !q.cleared {
		err = q.misuse("swap before the render side of the previous frame was cleared")
	}

	for c := range q.locks {
		q.locks[c].Lock()
	}
	q.update = 1 - q.update
	for c := range q.buffers {
		// the new update side is the old render side
		q.buffers[c][q.update] = q.buffers[c][q.update][:0]
		q.drained[c] = false
	}
	for c := len(q.locks) - 1; c >= 0; c-- {
		q.locks[c].Unlock()
	}

	q.swapped = true
	q.cleared = false
	return err
}

/**
 * @brief Returns the render side jobs of a category. A category drains
 * once per swap, a second call returns an empty slice. The slice stays
 * valid until Clear.
 */
func (q *Queue) Drain(category metadata.JobCategory) ([]metadata.RenderJob, error) {
	if category >= metadata.JobCategoryCount {
		return nil, q.misuse("drain of unknown job category %d", category)
	}
	if !q.swapped {
		return nil, q.misuse("drain of %s jobs before any swap", category)
	}
	if q.drained[category] {
		return nil, nil
	}
	q.drained[category] = true
	return q.buffers[category][1-q.update], nil
}

// SwapAndDrain swaps and drains every category. A misuse reported by Swap
// is returned along with the jobs.
func (q *Queue) SwapAndDrain() (FrameJobs, error) {
	var jobs FrameJobs
	swapErr := q.Swap()
	for c := metadata.JobCategory(0); c < metadata.JobCategoryCount; c++ {
		drained, err := q.Drain(c)
		if err != nil {
			return jobs, err
		}
		jobs[c] = drained
	}
	return jobs, swapErr
}

// Clear empties the render side once the frame consumed it.
func (q *Queue) Clear() {
	render := 1 - q.update
	for c := range q.buffers {
		clear(q.buffers[c][render])
		q.buffers[c][render] = q.buffers[c][render][:0]
		q.drained[c] = true
	}
	q.cleared = true
}

// ClearAll empties both sides. Used on scene teardown.
func (q *Queue) ClearAll() {
	for c := range q.locks {
		q.locks[c].Lock()
	}
	for c := range q.buffers {
		for i := range q.buffers[c] {
			clear(q.buffers[c][i])
			q.buffers[c][i] = q.buffers[c][i][:0]
		}
		q.drained[c] = true
	}
	for c := len(q.locks) - 1; c >= 0; c-- {
		q.locks[c].Unlock()
	}
	q.cleared = true
}

// Pending returns the number of jobs waiting on the update side.
func (q *Queue) Pending() int {
	n := 0
	for c := range q.locks {
		q.locks[c].Lock()
		n += len(q.buffers[c][q.update])
		q.locks[c].Unlock()
	}
	return n
}

func (q *Queue) State() State {
	if !q.cleared {
		return StateDraining
	}
	if q.Pending() > 0 {
		return StateAccepting
	}
	return StateIdle
}
