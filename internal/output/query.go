package output

import (
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/itchyny/gojq"

	"github.com/dmitriimaksimovdevelop/netwhy/internal/model"
)

// Query is a compiled jq filter applied to the JSON form of a report.
type Query struct {
	code *gojq.Code
}

// ParseQuery compiles a jq expression. An empty expression is ".".
func ParseQuery(expr string) (*Query, error) {
	if expr == "" {
		expr = "."
	}
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	return &Query{code: code}, nil
}

// Run evaluates the query against the report and returns every emitted
// value. halt stops the stream; halt_error fails it.
func (q *Query) Run(ctx context.Context, report *model.Report) ([]interface{}, error) {
	input, err := toGeneric(report)
	if err != nil {
		return nil, err
	}

	var outputs []interface{}
	iter := q.code.RunWithContext(ctx, input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if halt, ok := v.(*gojq.HaltError); ok {
			if halt.ExitCode() == 0 {
				break
			}
			return nil, fmt.Errorf("query halted: %w", halt)
		} else if err, ok := v.(error); ok {
			return nil, fmt.Errorf("query: %w", err)
		}
		outputs = append(outputs, v)
	}
	return outputs, nil
}

// WriteQuery runs q against the report and writes each result as JSON.
func WriteQuery(ctx context.Context, w io.Writer, q *Query, report *model.Report) error {
	results, err := q.Run(ctx, report)
	if err != nil {
		return err
	}
	for _, v := range results {
		if err := EncodeJSON(w, v); err != nil {
			return err
		}
	}
	return nil
}

// toGeneric converts the report into the map/slice/float64 form gojq
// operates on.
func toGeneric(report *model.Report) (interface{}, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return v, nil
}
