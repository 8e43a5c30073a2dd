package ecs

import "errors"

// Wiring errors. They are returned while a World is being set up and are
// never produced by a correctly wired World at run time.
var (
	ErrUnknownSet            = errors.New("unknown system set")
	ErrDuplicateSet          = errors.New("duplicate system set")
	ErrUnknownStep           = errors.New("unknown step")
	ErrDuplicateStep         = errors.New("duplicate step")
	ErrReservedStepName      = errors.New("step name uses a reserved lane prefix")
	ErrInvalidPlacement      = errors.New("invalid step placement")
	ErrStepKind              = errors.New("system does not fit step kind")
	ErrUnregisteredComponent = errors.New("component type not registered")
	ErrUnregisteredQueue     = errors.New("queue type not registered")
)
