package registry

import "fmt"

// #region registration-error

// RegistrationError reports a rejected registration: duplicate id, unknown
// target, or a selector that does not terminate in a choice function. It is
// fatal to the registration call that produced it.
type RegistrationError struct {
	Op     string // "choice function", "implementation", "rule", ...
	Name   string
	Reason string
}

func (e *RegistrationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("register %s: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("register %s %q: %s", e.Op, e.Name, e.Reason)
}

func regErr(op, name, format string, args ...any) error {
	return &RegistrationError{Op: op, Name: name, Reason: fmt.Sprintf(format, args...)}
}

// #endregion registration-error
