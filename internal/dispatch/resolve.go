package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/choicepoint/internal/execctx"
	"github.com/danielpatrickdp/choicepoint/internal/frame"
	"github.com/danielpatrickdp/choicepoint/internal/match"
	"github.com/danielpatrickdp/choicepoint/internal/registry"
	"github.com/danielpatrickdp/choicepoint/internal/trace"
)

// #region invoke

// Invoke dispatches a choice function call: it pushes the call's own frame,
// finds the single most specific applicable rule, merges keyword arguments
// (explicit call kwargs over rule overrides over the implementation's declared
// defaults), records a trace node while a session is open, and runs the chosen
// implementation. Implementation errors propagate unmodified.
func (e *Engine) Invoke(ctx context.Context, fn uuid.UUID, args []any, kwargs map[string]any) (any, error) {
	cf, ok := e.reg.Function(fn)
	if !ok {
		return nil, fmt.Errorf("invoke: unknown choice function %s", fn)
	}
	ctx, st := execctx.Ensure(ctx)

	explicit := bindExplicit(cf.Params, args, kwargs)
	token := st.Stack.Push(frame.CallSite(cf.ID, cf.Name, explicit))
	defer st.Stack.MustPop(token)

	stack := st.Stack.Snapshot()

	var matches []matched
	for _, r := range cf.Rules() {
		if caps, ok := match.Match(r.Selector, stack, e.reg); ok {
			matches = append(matches, matched{rule: r, captures: caps})
		}
	}

	winner, recorded, err := e.pickWinner(cf, matches)
	if err != nil {
		return nil, err
	}

	impl := cf.Interface
	var overrides map[string]any
	if winner != nil {
		if winner.impl != nil {
			impl = winner.impl
		}
		overrides = winner.overrides
		e.log.Debug("resolved choice",
			zap.String("func", cf.Name),
			zap.String("impl", impl.Name),
			zap.String("rule", winner.m.rule.Selector.String()),
			zap.Int("specificity", winner.m.rule.Specificity),
		)
	} else {
		e.log.Debug("resolved choice",
			zap.String("func", cf.Name),
			zap.String("impl", impl.Name),
			zap.String("rule", "default"),
		)
	}

	merged := mergeKwargs(impl, cf.Params, len(args), overrides, kwargs)

	if e.rec.Active() {
		node := &trace.Node{
			Func:         cf.ID,
			FuncName:     cf.Name,
			Impl:         impl.ID,
			ImplName:     impl.Name,
			Rules:        recorded,
			StackInfo:    describeStack(stack),
			Args:         trace.FormatArgs(args),
			Kwargs:       trace.FormatMap(kwargs),
			ChoiceKwargs: trace.FormatMap(merged),
		}
		if cursor, ok := e.rec.Begin(st.Cursor, node); ok {
			st.Cursor = cursor
			defer func() { st.Cursor = e.rec.End(cursor) }()
		}
	}

	return impl.Fn(ctx, args, merged)
}

// #endregion invoke

// #region winner

type matched struct {
	rule     *registry.Rule
	captures []frame.Args
}

type candidate struct {
	m         matched
	impl      *registry.Implementation // nil = keep current
	overrides map[string]any
	vals      string
}

// pickWinner walks the matches (already in descending specificity order).
// Dynamic rules at a level are evaluated; a skip removes the rule from
// consideration. More than one survivor at the winning level is ambiguous.
// Every non-skipped match is recorded for the trace, winner first.
func (e *Engine) pickWinner(cf *registry.ChoiceFunction, matches []matched) (*candidate, []trace.MatchedRule, error) {
	var recorded []trace.MatchedRule
	var winner *candidate

	i := 0
	for i < len(matches) {
		level := matches[i].rule.Specificity
		var survivors []*candidate
		for ; i < len(matches) && matches[i].rule.Specificity == level; i++ {
			m := matches[i]
			if winner != nil {
				// Level below the decision: record the raw rule payload.
				recorded = append(recorded, rawRecord(m))
				continue
			}
			c, skip, err := e.evaluate(cf, m)
			if err != nil {
				return nil, nil, err
			}
			if skip {
				continue
			}
			survivors = append(survivors, c)
			recorded = append(recorded, candidateRecord(c))
		}
		if winner == nil && len(survivors) > 0 {
			if len(survivors) > 1 {
				sels := make([]string, len(survivors))
				for k, s := range survivors {
					sels[k] = s.m.rule.Selector.String()
				}
				return nil, nil, &AmbiguousRuleError{
					Function:    cf.Name,
					Specificity: level,
					Selectors:   sels,
				}
			}
			winner = survivors[0]
		}
	}
	return winner, recorded, nil
}

// evaluate produces a candidate from a matched rule, running the capture
// function for dynamic rules. A capture error or a bad decision implementation
// surfaces as DynamicRuleError, never as a skip.
func (e *Engine) evaluate(cf *registry.ChoiceFunction, m matched) (*candidate, bool, error) {
	if !m.rule.Dynamic() {
		return &candidate{
			m:         m,
			impl:      m.rule.Impl,
			overrides: m.rule.Overrides,
			vals:      trace.FormatVals(m.rule.Overrides),
		}, false, nil
	}

	dec, err := m.rule.Capture(m.captures)
	if err != nil {
		return nil, false, &DynamicRuleError{
			Function: cf.Name,
			Selector: m.rule.Selector.String(),
			Err:      err,
		}
	}
	if dec.Skip {
		return nil, true, nil
	}

	c := &candidate{
		m:         m,
		overrides: dec.Overrides,
		vals:      trace.FormatVals(dec.Overrides),
	}
	if dec.Impl != uuid.Nil {
		impl, ok := e.reg.Implementation(dec.Impl)
		if !ok || impl.Implements != cf.ID {
			return nil, false, &DynamicRuleError{
				Function: cf.Name,
				Selector: m.rule.Selector.String(),
				Err:      fmt.Errorf("decision implementation %s does not implement %s", dec.Impl, cf.Name),
			}
		}
		c.impl = impl
	}
	return c, false, nil
}

// #endregion winner

// #region merge

// mergeKwargs builds the final keyword map. Parameters already bound
// positionally are left out entirely; for the rest, explicit kwargs beat rule
// overrides beat the implementation's declared defaults.
func mergeKwargs(impl *registry.Implementation, params []string, npos int, overrides, kwargs map[string]any) map[string]any {
	positional := make(map[string]bool, npos)
	for i := 0; i < npos && i < len(params); i++ {
		positional[params[i]] = true
	}

	merged := make(map[string]any, len(impl.Defaults)+len(overrides)+len(kwargs))
	for k, v := range impl.Defaults {
		if !positional[k] {
			merged[k] = v
		}
	}
	for k, v := range overrides {
		if !positional[k] {
			merged[k] = v
		}
	}
	for k, v := range kwargs {
		merged[k] = v
	}
	return merged
}

// #endregion merge

// #region trace-records

func describeStack(stack []frame.CallFrame) []string {
	out := make([]string, len(stack))
	for i, f := range stack {
		out[i] = f.Describe()
	}
	return out
}

func candidateRecord(c *candidate) trace.MatchedRule {
	return trace.MatchedRule{
		Selector: c.m.rule.Selector.String(),
		Impl:     ruleImplID(c.m.rule),
		Captures: mergeCaptures(c.m.captures),
		Vals:     c.vals,
	}
}

func rawRecord(m matched) trace.MatchedRule {
	vals := "(dynamic)"
	if !m.rule.Dynamic() {
		vals = trace.FormatVals(m.rule.Overrides)
	}
	return trace.MatchedRule{
		Selector: m.rule.Selector.String(),
		Impl:     ruleImplID(m.rule),
		Captures: mergeCaptures(m.captures),
		Vals:     vals,
	}
}

func ruleImplID(r *registry.Rule) string {
	if r.Impl == nil {
		return "None"
	}
	return r.Impl.ID.String()
}

// mergeCaptures flattens the per-element snapshots into the single string map
// the wire schema carries; later elements win on key collisions.
func mergeCaptures(captures []frame.Args) map[string]string {
	out := make(map[string]string)
	for _, c := range captures {
		for k, v := range c {
			out[k] = trace.FormatValue(v)
		}
	}
	return out
}

// #endregion trace-records
