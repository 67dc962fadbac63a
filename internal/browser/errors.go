package browser

import "fmt"

// DriverErrorKind categorises failures to create a session
type DriverErrorKind int

const (
	UnsupportedEngine DriverErrorKind = iota
	LaunchFailed
)

func (k DriverErrorKind) String() string {
	switch k {
	case UnsupportedEngine:
		return "unsupported-engine"
	case LaunchFailed:
		return "launch-failed"
	default:
		return "driver-error"
	}
}

// DriverError is fatal to the whole run: no session exists afterwards.
type DriverError struct {
	Kind   DriverErrorKind
	Engine string
	Err    error
}

func (e *DriverError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %q: %v", e.Kind, e.Engine, e.Err)
	}
	if e.Kind == UnsupportedEngine {
		return fmt.Sprintf("%s %q (supported: %s)", e.Kind, e.Engine, supportedList())
	}
	return fmt.Sprintf("%s %q", e.Kind, e.Engine)
}

func (e *DriverError) Unwrap() error {
	return e.Err
}
