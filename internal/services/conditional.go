package services

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/soaringjerry/dronerecon/internal/config"
)

// RuleView is the client-side description of a conditional rule: which questions the parent
// field reveals and under what condition.
type RuleView struct {
	Questions []string `json:"questions"`
	When      string   `json:"when"`
}

// ConditionalRules decides whether a dependent form field is shown. Rules come from
// configuration only and are compiled once, against an env holding every parent field as a
// boolean.
type ConditionalRules struct {
	rules    []config.ConditionalRule
	programs []*vm.Program
	base     map[string]any
	byTarget map[string][]int
}

func NewConditionalRules(rules []config.ConditionalRule) (*ConditionalRules, error) {
	base := map[string]any{}
	for _, r := range rules {
		base[r.Parent] = false
	}
	c := &ConditionalRules{rules: rules, base: base, byTarget: map[string][]int{}}
	for i, r := range rules {
		program, err := expr.Compile(r.When, expr.Env(base), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("conditional rule %q: %w", r.Parent, err)
		}
		c.programs = append(c.programs, program)
		for _, target := range r.Targets {
			c.byTarget[target] = append(c.byTarget[target], i)
		}
	}
	return c, nil
}

// Visible reports whether target is shown given the parsed answers in env. Fields that no
// rule governs are always visible. A governed field is visible when any rule whose parent
// was answered evaluates true.
func (c *ConditionalRules) Visible(target string, env map[string]any) (bool, error) {
	idx, governed := c.byTarget[target]
	if !governed {
		return true, nil
	}
	var input map[string]any
	for _, i := range idx {
		r := c.rules[i]
		if _, answered := env[r.Parent]; !answered {
			continue
		}
		if input == nil {
			input = c.input(env)
		}
		ok, err := run(c.programs[i], input)
		if err != nil {
			return false, fmt.Errorf("conditional rule %q: %w", r.Parent, err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// input overlays the answered parents on the compile-time env so every variable a rule
// names is bound to a boolean.
func (c *ConditionalRules) input(env map[string]any) map[string]any {
	out := make(map[string]any, len(c.base))
	for k, v := range c.base {
		out[k] = v
	}
	for k := range c.base {
		if v, ok := env[k].(bool); ok {
			out[k] = v
		}
	}
	return out
}

// Governs reports whether any rule controls target.
func (c *ConditionalRules) Governs(target string) bool {
	_, ok := c.byTarget[target]
	return ok
}

// Describe returns the rules keyed by parent field for the frontend.
func (c *ConditionalRules) Describe(parents ...string) map[string]RuleView {
	want := map[string]bool{}
	for _, p := range parents {
		want[p] = true
	}
	out := map[string]RuleView{}
	for _, r := range c.rules {
		if len(want) > 0 && !want[r.Parent] {
			continue
		}
		view := out[r.Parent]
		view.Questions = append(view.Questions, r.Targets...)
		if view.When == "" {
			view.When = r.When
		} else {
			view.When = "(" + view.When + ") || (" + r.When + ")"
		}
		out[r.Parent] = view
	}
	return out
}

func run(program *vm.Program, input map[string]any) (bool, error) {
	out, err := expr.Run(program, input)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("rule returned %T, not bool", out)
	}
	return b, nil
}
