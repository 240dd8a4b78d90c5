package core

import (
	"errors"
	"fmt"
)

var (
	ErrResourceCreation = errors.New("resource creation failed")
	ErrCompileFailed    = errors.New("pipeline variant compilation failed")
	ErrQueueMisuse      = errors.New("frame job queue misuse")
	ErrDeviceLost       = errors.New("device lost")
	ErrUnknownResource  = errors.New("resource does not belong to the pool")
	ErrNilResource      = errors.New("nil resource handle")
	ErrCacheClosed      = errors.New("shader variant cache is shut down")
	ErrQueueFull        = errors.New("queue is full")
	ErrQueueEmpty       = errors.New("queue is empty")
	ErrQueueClosed      = errors.New("queue is closed")
)

// ResourceCreationError is returned when a pool miss cannot be satisfied by
// the resource factory. It is fatal for the requesting pass only.
type ResourceCreationError struct {
	Descriptor interface{}
	Err        error
}

func (e *ResourceCreationError) Error() string {
	return fmt.Sprintf("unable to create resource for descriptor %+v: %v", e.Descriptor, e.Err)
}

func (e *ResourceCreationError) Unwrap() error {
	return e.Err
}

func (e *ResourceCreationError) Is(target error) bool {
	return target == ErrResourceCreation
}

// CompileError reports a permutation that could not be built. The mask is
// kept as a plain integer to avoid an import cycle with metadata.
type CompileError struct {
	Mask uint32
	Err  error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile of permutation 0x%06x failed: %v", e.Mask, e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func (e *CompileError) Is(target error) bool {
	return target == ErrCompileFailed
}
