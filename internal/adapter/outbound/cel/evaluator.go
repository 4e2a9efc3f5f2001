// Package cel provides a CEL-based product filter evaluator.
package cel

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/SoleStyle/solestyle/internal/domain/catalog"
)

// maxExpressionLength is the maximum allowed length for filter expressions.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit per product evaluation.
const maxCostBudget = 100_000

// maxNestingDepth is the maximum allowed parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a whole filter run over the catalog.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context cancellation is checked.
const interruptCheckFreq = 100

var stringSliceType = reflect.TypeOf([]string{})

// ErrInvalidExpression wraps every compile-time rejection.
var ErrInvalidExpression = errors.New("invalid filter expression")

// Evaluator compiles and evaluates CEL expressions against products.
type Evaluator struct {
	env *cel.Env
}

// NewEvaluator creates a new CEL evaluator with the product environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewProductEnvironment()
	if err != nil {
		return nil, fmt.Errorf("failed to create product environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile validates, parses and type-checks expression, returning a program.
func (e *Evaluator) Compile(expression string) (cel.Program, error) {
	if err := validateShape(expression); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidExpression, err)
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: compilation failed: %v", ErrInvalidExpression, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: expression must return bool, got %s", ErrInvalidExpression, ast.OutputType())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

func validateShape(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// Filter returns the products for which expression is true, in input order.
func (e *Evaluator) Filter(ctx context.Context, expression string, products []catalog.Product) ([]catalog.Product, error) {
	prg, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	out := make([]catalog.Product, 0)
	for _, p := range products {
		result, _, err := prg.ContextEval(ctx, BuildActivation(p))
		if err != nil {
			return nil, fmt.Errorf("evaluation failed for product %s: %w", p.ID, err)
		}
		match, ok := result.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
		}
		if match {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}
