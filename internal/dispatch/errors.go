package dispatch

import (
	"fmt"
	"strings"
)

// #region ambiguous

// AmbiguousRuleError reports two or more matching rules tied at the winning
// specificity with no tie-break. The engine never silently picks one.
type AmbiguousRuleError struct {
	Function    string
	Specificity int
	Selectors   []string
}

func (e *AmbiguousRuleError) Error() string {
	return fmt.Sprintf("ambiguous rules for %s at specificity %d: %s",
		e.Function, e.Specificity, strings.Join(e.Selectors, " | "))
}

// #endregion ambiguous

// #region dynamic-rule-error

// DynamicRuleError reports a capture function failure. It propagates to the
// caller of the choice function; it is never treated as a skip.
type DynamicRuleError struct {
	Function string
	Selector string
	Err      error
}

func (e *DynamicRuleError) Error() string {
	return fmt.Sprintf("dynamic rule [%s] for %s: %v", e.Selector, e.Function, e.Err)
}

func (e *DynamicRuleError) Unwrap() error {
	return e.Err
}

// #endregion dynamic-rule-error
