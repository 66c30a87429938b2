package registry

import (
	"github.com/danielpatrickdp/choicepoint/internal/trace"
)

// #region snapshot

// Snapshot captures every choice function, its implementations, and its rules
// in the wire form a stopped trace session embeds.
func (r *Registry) Snapshot() trace.Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(trace.Snapshot, len(r.functions))
	for id, cf := range r.functions {
		fs := trace.FunctionSnapshot{
			ID:        id.String(),
			Interface: implInfo(cf.Interface),
			Funcs:     make(map[string]trace.ImplementationInfo, len(cf.byName)),
			Rules:     make([]trace.RuleInfo, 0, len(cf.Rules())),
		}
		for name, impl := range cf.byName {
			fs.Funcs[name] = implInfo(impl)
		}
		for _, rule := range cf.Rules() {
			fs.Rules = append(fs.Rules, ruleInfo(rule))
		}
		out[id.String()] = fs
	}
	return out
}

func implInfo(impl *Implementation) trace.ImplementationInfo {
	return trace.ImplementationInfo{
		ID:       impl.ID.String(),
		Func:     impl.Name,
		Defaults: trace.FormatMap(impl.Defaults),
	}
}

func ruleInfo(rule *Rule) trace.RuleInfo {
	info := trace.RuleInfo{
		Selector: rule.Selector.String(),
		Impl:     "None",
	}
	if rule.Impl != nil {
		info.Impl = rule.Impl.ID.String()
	}
	if rule.Dynamic() {
		info.Vals = "(dynamic)"
	} else {
		info.Vals = trace.FormatVals(rule.Overrides)
	}
	return info
}

// #endregion snapshot
