// Package expression evaluates page-condition expressions.
//
// The language is deliberately small: literals (strings, numbers, true, false,
// null, undefined), lookups rooted at `dataLayer` using `.name` or `["key"]`,
// comparisons (== != === !== < <= > >=), boolean composition (&& || !) and
// parentheses. Expressions are parsed into a typed AST and walked by a
// recursive evaluator; there are no function calls, assignments, loops or
// identifiers other than dataLayer, so nothing outside the supplied context is
// reachable.
//
//	dataLayer["my-site.inputData.index.formData.hasCert"] == "yes" && dataLayer.age >= 18
package expression

import (
	"strings"
)

// Program is a parsed expression that can be evaluated many times.
type Program struct {
	source string
	root   node
}

// Compile parses an expression. Syntax errors are returned, never panicked.
func Compile(expression string) (*Program, error) {
	trimmed := strings.TrimSpace(expression)
	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	root, err := parse(tokens)
	if err != nil {
		return nil, err
	}
	return &Program{source: trimmed, root: root}, nil
}

// Source returns the trimmed expression text.
func (p *Program) Source() string {
	return p.source
}

// Eval evaluates the program with dataLayer bound to context.
// Unresolved lookups evaluate to nil.
func (p *Program) Eval(context map[string]any) (any, error) {
	if context == nil {
		context = map[string]any{}
	}
	v, err := p.root.eval(context)
	if err != nil {
		return nil, err
	}
	if _, ok := v.(undefined); ok {
		return nil, nil
	}
	return v, nil
}

// Evaluate compiles and evaluates expression against a flat context.
// Callers must treat any error as "condition not matched".
func Evaluate(expression string, context map[string]any) (any, error) {
	program, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return program.Eval(context)
}

// EvaluateWithFlattening flattens obj under prefix and evaluates expression against it.
func EvaluateWithFlattening(expression string, obj map[string]any, prefix string) (any, error) {
	return Evaluate(expression, Flatten(obj, prefix))
}

// Flatten walks a nested object and returns a single-level map whose keys are
// the dotted paths to each leaf. Arrays are leaves and are not descended into;
// empty nested objects contribute no keys.
func Flatten(obj map[string]any, prefix string) map[string]any {
	out := make(map[string]any)
	flattenInto(out, obj, prefix)
	return out
}

func flattenInto(out map[string]any, obj map[string]any, prefix string) {
	for key, value := range obj {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flattenInto(out, v, path)
		case map[string]string:
			for k, s := range v {
				out[path+"."+k] = s
			}
		default:
			out[path] = value
		}
	}
}
