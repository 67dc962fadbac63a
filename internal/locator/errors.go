package locator

import "fmt"

// ConfigErrorKind categorises malformed or missing script fields
type ConfigErrorKind int

const (
	MalformedLocator ConfigErrorKind = iota
	UnknownStrategy
	InvalidIndex
	MissingField
	InvalidValue
)

func (k ConfigErrorKind) String() string {
	switch k {
	case MalformedLocator:
		return "malformed-locator"
	case UnknownStrategy:
		return "unknown-strategy"
	case InvalidIndex:
		return "invalid-index"
	case MissingField:
		return "missing-field"
	case InvalidValue:
		return "invalid-value"
	default:
		return "config-error"
	}
}

// ConfigError reports a script field that is malformed or missing.
// It is fatal only to the action that carries it.
type ConfigError struct {
	Kind  ConfigErrorKind
	Input string // raw token or value, if any
	Field string // script field name, if any
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case MalformedLocator:
		return fmt.Sprintf("%s: %q needs exactly one non-empty key and one non-empty value separated by '='", e.Kind, e.Input)
	case UnknownStrategy:
		return fmt.Sprintf("%s: %q (supported: id, tag, class, css, name)", e.Kind, e.Input)
	case InvalidIndex:
		return fmt.Sprintf("%s: %q index must be a non-negative integer", e.Kind, e.Input)
	case MissingField:
		return fmt.Sprintf("%s: %q is required", e.Kind, e.Field)
	default:
		if e.Field != "" {
			return fmt.Sprintf("%s: field %q has invalid value %q", e.Kind, e.Field, e.Input)
		}
		return fmt.Sprintf("%s: %q", e.Kind, e.Input)
	}
}

// Is matches any *ConfigError of the same kind, so callers can write
// errors.Is(err, &ConfigError{Kind: MalformedLocator}).
func (e *ConfigError) Is(target error) bool {
	t, ok := target.(*ConfigError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
