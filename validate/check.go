package validate

import (
	"fmt"
	"github.com/parbatch/parbatch/util"
	"strings"
)

//Violation one failed rule inside a validation report
type Violation struct {
	Name    string
	Message string
}

//Error aggregated validation report for one call. The string form lists the
//function signature followed by one line per violation, in the order the
//argument descriptors were declared.
type Error struct {
	Signature  string
	Violations []Violation
}

func (e *Error) Error() string {
	lines := make([]string, 0, len(e.Violations)+1)
	lines = append(lines, e.Signature+":")
	for _, v := range e.Violations {
		lines = append(lines, v.Message)
	}
	return strings.Join(lines, "\n")
}

//Check evaluate every descriptor against the call arguments and aggregate all
//violations into a single report. Descriptors resolve their value by keyword
//name first, then by positional slot. A nil return means the call passed.
func Check(signature string, args []Argument, positional []interface{}, keyword map[string]interface{}) error {
	var violations []Violation
	for _, arg := range args {
		if arg.name == "" && arg.index < 0 {
			panic("validate: argument descriptor needs a name or a position")
		}
		val, found := resolve(arg, positional, keyword)
		if !found {
			if arg.required {
				violations = append(violations, Violation{
					Name:    arg.label(),
					Message: fmt.Sprintf("%s: missing required argument", arg.label()),
				})
			}
			continue
		}
		if len(arg.kinds) > 0 && !kindMatch(val, arg.kinds) {
			violations = append(violations, Violation{
				Name:    arg.label(),
				Message: fmt.Sprintf("%s: %s is not %s", arg.label(), repr(val), kindNames(arg.kinds)),
			})
		}
		if len(arg.values) > 0 && !inValues(val, arg.values) {
			violations = append(violations, Violation{
				Name:    arg.label(),
				Message: fmt.Sprintf("%s: %s not in %s", arg.label(), repr(val), reprSet(arg.values)),
			})
		}
	}
	if len(violations) > 0 {
		return &Error{Signature: signature, Violations: violations}
	}
	return nil
}

func resolve(a Argument, positional []interface{}, keyword map[string]interface{}) (interface{}, bool) {
	if a.name != "" {
		if v, ok := keyword[a.name]; ok {
			return v, true
		}
	}
	if a.index >= 0 && a.index < len(positional) {
		return positional[a.index], true
	}
	return nil, false
}

func kindMatch(v interface{}, kinds []Kind) bool {
	k := KindOf(v)
	for _, want := range kinds {
		if k == want {
			return true
		}
	}
	return false
}

//inValues compare against the value set. Collection values never match, which
//also keeps the comparison free of panics on uncomparable types.
func inValues(v interface{}, values []interface{}) bool {
	k := KindOf(v)
	if k == List || k == Mapping {
		return false
	}
	return util.Contains(values, v)
}

func repr(v interface{}) string {
	if v == nil {
		return "nil"
	}
	if s, ok := v.(string); ok {
		return "'" + s + "'"
	}
	return fmt.Sprintf("%v", v)
}

func reprSet(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = repr(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func kindNames(kinds []Kind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, "|")
}
