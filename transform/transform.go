// Package transform composes reversible string transforms into a
// pipeline. A vault applies the pipeline to its serialized record set
// before every write and reverses it after every read.
//
// Links are folded head to tail on Apply and tail to head on Reverse,
// so for any set of well behaved links Reverse(Apply(x)) == x. The
// composition never changes after a pipeline is built.
package transform

import (
	"errors"
	"fmt"
)

// ErrPipeline is matched by every error returned from
// Pipeline.Apply or Pipeline.Reverse
var ErrPipeline = errors.New("transform pipeline failed")

// Link is one stage of a pipeline
type Link interface {
	// Forward transforms text on its way to storage
	Forward(text string) (string, error)
	// Backward undoes Forward
	Backward(text string) (string, error)
}

// LinkFuncs adapts a pair of functions to the Link interface
type LinkFuncs struct {
	Fwd func(text string) (string, error)
	Bwd func(text string) (string, error)
}

// Forward implements Link.Forward
func (link LinkFuncs) Forward(text string) (string, error) {
	if link.Fwd == nil {
		return text, nil
	}

	return link.Fwd(text)
}

// Backward implements Link.Backward
func (link LinkFuncs) Backward(text string) (string, error) {
	if link.Bwd == nil {
		return text, nil
	}

	return link.Bwd(text)
}

// Direction is the direction a pipeline runs in
type Direction int

const (
	// Forward is the write direction
	Forward Direction = iota
	// Backward is the read direction
	Backward
)

func (direction Direction) String() string {
	if direction == Forward {
		return "forward"
	}

	return "backward"
}

// Error describes a link failure
type Error struct {
	Direction Direction
	// Index is the position of the failing link in the pipeline
	Index int
	Err   error
}

func (err *Error) Error() string {
	return fmt.Sprintf("transform link %d failed in %s direction: %s", err.Index, err.Direction, err.Err)
}

// Unwrap returns the link's error
func (err *Error) Unwrap() error {
	return err.Err
}

// Is makes every *Error match ErrPipeline
func (err *Error) Is(target error) bool {
	return target == ErrPipeline
}
