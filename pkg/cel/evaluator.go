package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"textanalysis/pkg/models"
)

// Evaluator compiles boolean expressions over processed updates. Available
// variables mirror the output message fields.
type Evaluator struct {
	env *cel.Env
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("user_id", cel.StringType),
		cel.Variable("original_text", cel.StringType),
		cel.Variable("timestamp", cel.StringType),
		cel.Variable("processing_time", cel.DoubleType),
		cel.Variable("toxicity_score", cel.IntType),
		cel.Variable("is_toxic", cel.BoolType),
		cel.Variable("processed_at", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateFilterExpression(expression string) error {
	_, err := e.compile(expression)
	return err
}

func (e *Evaluator) compile(expression string) (*cel.Ast, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("filter expression must return bool, got %v", ast.OutputType())
	}

	return ast, nil
}

// Filter is a compiled expression. The zero-expression filter matches
// everything.
type Filter struct {
	expression string
	program    cel.Program
}

// CompileFilter compiles expression once for repeated evaluation. An empty
// expression yields a filter that always matches.
func (e *Evaluator) CompileFilter(expression string) (*Filter, error) {
	if expression == "" {
		return &Filter{}, nil
	}

	ast, err := e.compile(expression)
	if err != nil {
		return nil, err
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	return &Filter{expression: expression, program: program}, nil
}

func (f *Filter) Expression() string {
	return f.expression
}

func (f *Filter) Match(ctx context.Context, record *models.UpdateRecord) (bool, error) {
	if f.program == nil {
		return true, nil
	}

	result, _, err := f.program.ContextEval(ctx, recordVars(record))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// recordVars flattens the record; nil optional strings become "".
func recordVars(r *models.UpdateRecord) map[string]interface{} {
	return map[string]interface{}{
		"id":              r.ID,
		"user_id":         deref(r.UserID),
		"original_text":   r.OriginalText,
		"timestamp":       deref(r.Timestamp),
		"processing_time": r.ProcessingTime,
		"toxicity_score":  int64(r.ToxicityScore),
		"is_toxic":        r.IsToxic,
		"processed_at":    r.ProcessedAt,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
