package backend

import (
	"errors"
	"fmt"
)

// ErrIncompletePlatform is returned by New when a collaborator is missing.
// Nothing has been acquired when it is returned.
var ErrIncompletePlatform = errors.New("backend: platform is missing a collaborator")

// StageError reports the initialization stage whose acquisition failed. Every
// resource acquired by earlier stages has been released when it is returned.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("backend initialization failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ScanError wraps a failed connector scan. It is logged, never returned by New.
type ScanError struct {
	Err error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("display scan failed: %v", e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
