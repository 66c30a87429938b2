// Package trace records resolved choice invocations as a nested forest and
// serializes finished sessions in the wire schema external tools consume.
package trace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// #region matched-rule

// MatchedRule describes one rule that matched during a resolution, in the form
// the wire schema carries: the selector string, the rule's implementation id,
// the merged captures, and the rendered override values.
type MatchedRule struct {
	Selector string
	Impl     string
	Captures map[string]string
	Vals     string
}

// #endregion matched-rule

// #region node

// Node is one resolved invocation. Items hold the invocations nested inside
// the implementation this node wraps.
type Node struct {
	Func         uuid.UUID
	FuncName     string
	Impl         uuid.UUID
	ImplName     string
	Rules        []MatchedRule
	StackInfo    []string
	Args         []string
	Kwargs       map[string]string
	ChoiceKwargs map[string]string
	Items        []*Node

	parent *Node
}

// #endregion node

// #region registry-snapshot

// ImplementationInfo is the wire form of one implementation.
type ImplementationInfo struct {
	ID       string            `json:"id"`
	Func     string            `json:"func"`
	Defaults map[string]string `json:"defaults"`
}

// RuleInfo is the wire form of one registered rule.
type RuleInfo struct {
	Selector string `json:"selector"`
	Impl     string `json:"impl"`
	Vals     string `json:"vals"`
}

// FunctionSnapshot is the wire form of one choice function with its
// implementations and rules.
type FunctionSnapshot struct {
	ID        string                        `json:"id"`
	Interface ImplementationInfo            `json:"interface"`
	Funcs     map[string]ImplementationInfo `json:"funcs"`
	Rules     []RuleInfo                    `json:"rules"`
}

// Snapshot maps choice function id to its wire form.
type Snapshot map[string]FunctionSnapshot

// #endregion registry-snapshot

// #region session

// Session is the result of a stopped trace: the root forest plus the registry
// snapshot taken at stop time.
type Session struct {
	Roots    []*Node
	Registry Snapshot
}

// #endregion session

// #region formatting

// FormatValue renders any value the way the wire schema expects: its plain
// string form.
func FormatValue(v any) string {
	if v == nil {
		return "None"
	}
	return fmt.Sprint(v)
}

// FormatArgs renders positional arguments in order.
func FormatArgs(args []any) []string {
	out := make([]string, len(args))
	for i, a := range args {
		out[i] = FormatValue(a)
	}
	return out
}

// FormatMap renders a map's values as strings.
func FormatMap(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = FormatValue(v)
	}
	return out
}

// FormatVals renders override values as a stable "k=v, k=v" string, the form
// the wire schema uses for rule payloads.
func FormatVals(m map[string]any) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%s", k, FormatValue(m[k]))
	}
	return strings.Join(parts, ", ")
}

// #endregion formatting
