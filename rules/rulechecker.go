package rules

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/xdbsoft/gript"

	"github.com/xdbsoft/docstore/api"
)

// Checker evaluates rules against requests
type Checker struct {
	rules []Rule
}

func NewChecker(rules []Rule) Checker {
	return Checker{rules: rules}
}

func isVariable(s string) (bool, string) {

	if len(s) >= 3 {
		if s[0] == '{' && s[len(s)-1] == '}' {
			return true, s[1 : len(s)-1]
		}
	}
	return false, ""
}

func checkCondition(condition string, variables map[string]interface{}) (bool, error) {
	if len(condition) == 0 {
		return true, nil
	}
	r, err := gript.Eval(condition, variables)
	if err != nil {
		return false, errors.Wrapf(err, "invalid condition '%s'", condition)
	}
	result, ok := r.(bool)
	if !ok {
		return false, errors.New("Invalid condition: result is not boolean")
	}
	return result, nil
}

// match returns the path variables when the rule path matches target
func match(rulePath string, target api.ObjectRef) (map[string]interface{}, bool) {

	path := strings.Split(rulePath, "/")
	if len(path) != len(target) {
		return nil, false
	}

	pathVariables := make(map[string]interface{})
	for i := range path {
		if isVar, name := isVariable(path[i]); isVar {
			pathVariables[name] = target[i]
		} else if path[i] != target[i] {
			return nil, false
		}
	}

	return pathVariables, true
}

// Check tells whether user may apply method to target. The first rule whose
// path matches decides: access is granted when one of its allows lists the
// method and its condition holds. Without any matching rule access is granted.
func (c Checker) Check(target api.ObjectRef, user api.User, method Method) (bool, error) {

	docTarget := target
	if !docTarget.IsRecord() {
		docTarget = api.ObjectRef{target.Collection(), "*"}
	}

	for _, rule := range c.rules {

		pathVariables, ok := match(rule.Path, docTarget)
		if !ok {
			continue
		}

		variables := map[string]interface{}{
			"path": pathVariables,
			"user": map[string]interface{}{
				"id":    user.ID,
				"name":  user.Name,
				"email": user.Email,
			},
			"method": string(method),
		}

		for _, a := range rule.Allow {
			if !a.permits(method) {
				continue
			}
			ok, err := checkCondition(a.If, variables)
			if err != nil || ok {
				return ok, err
			}
		}

		return false, nil
	}

	return true, nil
}

func (a Allow) permits(method Method) bool {
	for _, m := range a.Methods {
		if m == method {
			return true
		}
	}
	return false
}
