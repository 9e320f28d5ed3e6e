package loader

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a load is started while another one is in progress.
	ErrBusy = errors.New("loader is busy")
	// ErrReleased is returned when a load is started on a released loader.
	ErrReleased = errors.New("loader is released")
)

// UnexpectedLoaderError wraps a panic raised by a loadable or a callback.
type UnexpectedLoaderError struct {
	Cause any
}

func (e *UnexpectedLoaderError) Error() string {
	return fmt.Sprintf("unexpected loader error: %v", e.Cause)
}

func (e *UnexpectedLoaderError) Unwrap() error {
	if err, ok := e.Cause.(error); ok {
		return err
	}
	return nil
}
