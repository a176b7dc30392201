package decimater

import (
	"errors"
	"fmt"
)

var (
	ErrNotInitialized          = errors.New("decimater: not initialized")
	ErrNoPriorityModule        = errors.New("decimater: no priority module installed")
	ErrMultiplePriorityModules = errors.New("decimater: more than one priority module installed")
	ErrModuleInit              = errors.New("decimater: module initialization failed")
)

// ModuleInitError reports which module refused to initialize.
type ModuleInitError struct {
	Module string
	Err    error
}

func (e *ModuleInitError) Error() string {
	return fmt.Sprintf("decimater: module %s: %v", e.Module, e.Err)
}

func (e *ModuleInitError) Unwrap() []error {
	return []error{ErrModuleInit, e.Err}
}
