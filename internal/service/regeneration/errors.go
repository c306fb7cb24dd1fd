package regeneration

import (
	"errors"
	"fmt"
)

var (
	// ErrPastPlanDate is returned when a run targets a date before today.
	ErrPastPlanDate = errors.New("cannot regenerate a plan for a past date")

	// ErrPersistence indicates a plan or task store operation failed during a run.
	ErrPersistence = errors.New("plan persistence failed")

	// ErrGenerationBackend indicates the text generator failed during a run.
	ErrGenerationBackend = errors.New("plan generation failed")

	// ErrRunTimeout indicates the run exceeded its time budget. It also
	// matches ErrGenerationBackend.
	ErrRunTimeout = fmt.Errorf("%w: run timed out", ErrGenerationBackend)

	// ErrInvalidTransition indicates the run machine rejected an event.
	ErrInvalidTransition = errors.New("invalid run state transition")
)
