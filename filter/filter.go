package filter

import (
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/s0up4200/mircrew/mircrew"
)

// Filter is a compiled boolean expression over a search result
type Filter struct {
	expression string
	program    *vm.Program
}

// Compile compiles an expression into an executable filter. The expression
// sees the result fields ID, Title and URL plus the helper functions.
func Compile(expression string) (*Filter, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "empty expression",
		}
	}

	// Compile against a placeholder environment for type checking
	program, err := expr.Compile(expression,
		expr.Env(newEnvironment(mircrew.SearchResult{})),
		expr.AsBool(), // Ensure boolean result
	)
	if err != nil {
		return nil, &CompilationError{
			Expression: expression,
			Reason:     "failed to compile expression",
			Err:        err,
		}
	}

	return &Filter{
		expression: expression,
		program:    program,
	}, nil
}

// Match evaluates the filter against a single result
func (f *Filter) Match(result mircrew.SearchResult) (bool, error) {
	out, err := expr.Run(f.program, newEnvironment(result))
	if err != nil {
		return false, &EvaluationError{
			Expression: f.expression,
			ResultID:   result.ID,
			Reason:     "failed to evaluate expression",
			Err:        err,
		}
	}

	// Result is guaranteed to be bool due to AsBool() option during compilation
	return out.(bool), nil
}

// Apply returns the results matching the filter, in their original order
func (f *Filter) Apply(results []mircrew.SearchResult) ([]mircrew.SearchResult, error) {
	matched := make([]mircrew.SearchResult, 0, len(results))
	for _, result := range results {
		ok, err := f.Match(result)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, result)
		}
	}
	return matched, nil
}

// String returns the original expression
func (f *Filter) String() string {
	return f.expression
}
